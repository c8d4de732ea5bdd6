// Package objectstore abstracts the object storage operations the LFS server
// needs: existence probes, presigned transfer URLs and multipart uploads.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stefando/lfsS3/internal/lfs"
)

// ErrNotFound is returned by HeadObject when the key does not exist
var ErrNotFound = errors.New("object not found")

// Error wraps a failed object store call
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ObjectStore is a bucket-scoped object storage backend.
// Presigning never performs I/O against the bucket; it is deterministic for a
// given operation, key, validity and signing time.
type ObjectStore interface {
	// HeadObject probes for key. It returns ErrNotFound (possibly wrapped) when absent.
	HeadObject(ctx context.Context, key string) error

	PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignPutObject(ctx context.Context, key, contentType string, expires time.Duration) (string, error)

	// CreateMultipartUpload starts a multipart upload and returns its upload id
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, upload lfs.CompletedMultipartUpload) error

	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// Provider hands out stores bound to a named bucket. Event-driven callers
// learn the bucket from the notification rather than from configuration.
type Provider interface {
	Bucket(name string) ObjectStore
}

// Exists reports whether key is present, translating ErrNotFound into false
func Exists(ctx context.Context, store ObjectStore, key string) (bool, error) {
	err := store.HeadObject(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
