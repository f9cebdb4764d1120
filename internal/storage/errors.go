package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for storage failures. Backends wrap one of these in *Error
// so callers can branch with errors.Is.
var (
	// ErrNotFound indicates the requested local file or remote object does not exist
	ErrNotFound = errors.New("storage: not found")

	// ErrTransfer indicates an I/O, network or permission fault while moving bytes
	ErrTransfer = errors.New("storage: transfer failed")
)

// ErrorKind classifies a failure at the storage boundary.
type ErrorKind string

const (
	KindNone     ErrorKind = ""
	KindNotFound ErrorKind = "not_found"
	KindTransfer ErrorKind = "transfer"
	KindTimeout  ErrorKind = "timeout"
	KindCanceled ErrorKind = "canceled"
)

// Error carries the operation and object that failed.
type Error struct {
	// Op is the operation that failed (e.g. "upload", "download", "list")
	Op string

	Bucket string
	Key    string

	// Err wraps ErrNotFound or ErrTransfer together with the backend cause
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("storage.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("storage.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	case e.Key != "":
		return fmt.Sprintf("storage.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func notFound(op, bucket, key string, cause error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: wrapCause(ErrNotFound, cause)}
}

func transferFailed(op, bucket, key string, cause error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: wrapCause(ErrTransfer, cause)}
}

func wrapCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// localFailure classifies a failed stat/open/write of a local path.
func localFailure(op, bucket, key string, err error) *Error {
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(op, bucket, key, err)
	}
	return transferFailed(op, bucket, key, err)
}

// IsNotFound reports whether err indicates a missing local file or remote object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KindOf maps err onto the failure taxonomy used by batch reports.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindTransfer
}
