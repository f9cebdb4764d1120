package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of a stream is buffered for content-type detection.
const sniffLen = 3072

// detectFileType returns the MIME type of the file at path, falling back to
// application/octet-stream when detection fails.
func detectFileType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}

// sniffReader detects the content type from the head of r and returns a reader
// that still yields the full stream.
func sniffReader(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, err
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// openLocal opens srcPath for upload and returns its size.
func openLocal(srcPath string) (*os.File, int64, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%s is a directory", srcPath)
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// writeLocal streams r into destPath, creating parent directories.
func writeLocal(destPath string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed opening %s: %w", destPath, err)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
