// Package completion finalises multipart uploads when a client uploads the
// completion sentinel object next to the target key.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/stefando/lfsS3/internal/lfs"
	"github.com/stefando/lfsS3/internal/metrics"
	"github.com/stefando/lfsS3/internal/objectstore"
)

// ParseError is returned when a sentinel body is not a valid completion notification
type ParseError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse object contents of s3://%s/%s as JSON: %v", e.Bucket, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Handler completes multipart uploads announced by sentinel objects
type Handler struct {
	buckets  objectstore.Provider
	suffix   *regexp.Regexp
	observer *metrics.Observer
}

// Option configures a Handler
type Option func(*Handler)

// WithSuffix overrides the sentinel suffix
func WithSuffix(suffix string) Option {
	return func(h *Handler) {
		if suffix != "" {
			h.suffix = suffixPattern(suffix)
		}
	}
}

// WithObserver counts completions
func WithObserver(o *metrics.Observer) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

func suffixPattern(suffix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(suffix) + "$")
}

// NewHandler creates a Handler resolving notification buckets through buckets
func NewHandler(buckets objectstore.Provider, opts ...Option) *Handler {
	h := &Handler{
		buckets: buckets,
		suffix:  suffixPattern(lfs.DefaultCompletionSuffix),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TargetKey strips the sentinel suffix from the end of key
func (h *Handler) TargetKey(key string) string {
	return h.suffix.ReplaceAllLiteralString(key, "")
}

// HandleS3Event completes every upload in the event concurrently. Keys
// without the sentinel suffix are skipped. It waits for all records and
// returns the first error; finished uploads are kept.
func (h *Handler) HandleS3Event(ctx context.Context, event events.S3Event) error {
	var g errgroup.Group
	for _, record := range event.Records {
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			key = record.S3.Object.Key
		}
		bucket := record.S3.Bucket.Name
		if !h.suffix.MatchString(key) {
			slog.DebugContext(ctx, "Ignoring notification for non-sentinel key", "bucket", bucket, "key", key)
			continue
		}
		g.Go(func() error {
			err := h.Complete(ctx, bucket, key)
			h.observer.RecordCompletion(err)
			return err
		})
	}
	return g.Wait()
}

// Complete reads the sentinel at bucket/key, completes the upload it names and
// deletes the sentinel
func (h *Handler) Complete(ctx context.Context, bucket, key string) error {
	store := h.buckets.Bucket(bucket)

	body, err := store.GetObject(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to retrieve completion notification", "bucket", bucket, "key", key, "error", err)
		return err
	}

	var notification lfs.CompletionNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return &ParseError{Bucket: bucket, Key: key, Err: err}
	}

	target := h.TargetKey(key)
	if err := store.CompleteMultipartUpload(ctx, target, notification.UploadID, notification.MultipartUpload); err != nil {
		slog.ErrorContext(ctx, "Failed to complete multipart upload",
			"bucket", bucket,
			"key", target,
			"uploadId", notification.UploadID,
			"error", err)
		return err
	}

	if err := store.DeleteObject(ctx, key); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Completed multipart upload",
		"bucket", bucket,
		"key", target,
		"uploadId", notification.UploadID,
		"parts", len(notification.MultipartUpload.Parts))
	return nil
}
