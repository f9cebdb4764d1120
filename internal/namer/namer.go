// Package namer picks local file names that do not collide with existing files
// by appending "(1)", "(2)", ... before the extension.
package namer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxAttempts bounds the suffix search so a broken predicate cannot spin forever.
const maxAttempts = 100000

// ErrExhausted is returned when no free candidate was found within maxAttempts.
var ErrExhausted = errors.New("namer: no free name")

// Candidate returns the n-th alternative for path: "out.csv" -> "out(n).csv".
// n == 0 returns path unchanged.
func Candidate(path string, n int) string {
	if n == 0 {
		return path
	}
	ext := filepath.Ext(path)
	// A leading dot names a hidden file, not an extension.
	if ext == filepath.Base(path) {
		ext = ""
	}
	return fmt.Sprintf("%s(%d)%s", strings.TrimSuffix(path, ext), n, ext)
}

// Disambiguate returns path if exists reports it free, otherwise the first
// free Candidate(path, n) for n = 1, 2, ...
func Disambiguate(path string, exists func(string) bool) string {
	for n := 0; n < maxAttempts; n++ {
		candidate := Candidate(path, n)
		if !exists(candidate) {
			return candidate
		}
	}
	return Candidate(path, maxAttempts)
}

// FileExists is the filesystem predicate for Disambiguate.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// Claimer atomically reserves a name. Claim returns false when the name is
// already taken, and an error only when the check itself failed.
type Claimer interface {
	Claim(ctx context.Context, path string) (bool, error)
	// Release gives a claimed name back, e.g. after a failed download.
	Release(ctx context.Context, path string) error
}

// Resolve walks the same candidates as Disambiguate but reserves the winner
// through c, so concurrent callers never receive the same name.
func Resolve(ctx context.Context, path string, c Claimer) (string, error) {
	for n := 0; n < maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := Candidate(path, n)
		ok, err := c.Claim(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("claim %s: %w", candidate, err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrExhausted, path)
}

// FileClaimer claims a name by creating an empty file with O_EXCL, which the
// filesystem guarantees is exclusive.
type FileClaimer struct{}

func (FileClaimer) Claim(_ context.Context, path string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, f.Close()
}

func (FileClaimer) Release(_ context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryClaimer claims names against an existence predicate plus an in-process
// set. Nothing is written to disk, which makes it suitable for planning runs.
type MemoryClaimer struct {
	exists  func(string) bool
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewMemoryClaimer returns a MemoryClaimer; a nil exists treats every name as free.
func NewMemoryClaimer(exists func(string) bool) *MemoryClaimer {
	if exists == nil {
		exists = func(string) bool { return false }
	}
	return &MemoryClaimer{exists: exists, claimed: make(map[string]struct{})}
}

func (m *MemoryClaimer) Claim(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.claimed[path]; taken || m.exists(path) {
		return false, nil
	}
	m.claimed[path] = struct{}{}
	return true, nil
}

func (m *MemoryClaimer) Release(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.claimed, path)
	m.mu.Unlock()
	return nil
}
