// Package batch answers Git LFS batch requests by presigning S3 URLs.
// It never moves object data itself.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stefando/lfsS3/internal/lfs"
	"github.com/stefando/lfsS3/internal/metrics"
	"github.com/stefando/lfsS3/internal/objectstore"
)

// presignLimit bounds the goroutines presigning parts of a single object
const presignLimit = 64

// Engine resolves batch requests against a single bucket
type Engine struct {
	store    objectstore.ObjectStore
	now      func() time.Time
	suffix   string
	observer *metrics.Observer
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock used for expires_at
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithCompletionSuffix overrides the sentinel suffix signed into multipart plans
func WithCompletionSuffix(suffix string) Option {
	return func(e *Engine) {
		if suffix != "" {
			e.suffix = suffix
		}
	}
}

// WithObserver records per-object outcomes and batch latency
func WithObserver(o *metrics.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an Engine presigning against store
func NewEngine(store objectstore.ObjectStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		suffix: lfs.DefaultCompletionSuffix,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Batch validates req and resolves every object concurrently. The response
// lists objects in request order. Any upstream failure fails the whole batch.
func (e *Engine) Batch(ctx context.Context, req *lfs.BatchRequest) (*lfs.BatchResponse, error) {
	if req == nil {
		return nil, lfs.ErrMissingBody
	}
	transfer, err := Validate(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		e.observer.RecordBatch(transfer, time.Since(start))
	}()

	slog.DebugContext(ctx, "Processing batch",
		"operation", req.Operation,
		"transfer", transfer,
		"objects", len(req.Objects))

	results := make([]lfs.ObjectResult, len(req.Objects))
	g, gctx := errgroup.WithContext(ctx)
	for i, obj := range req.Objects {
		g.Go(func() error {
			var (
				res lfs.ObjectResult
				err error
			)
			switch {
			case req.Operation == lfs.OperationDownload:
				res, err = e.download(gctx, obj)
			case transfer == lfs.TransferMultipart:
				res, err = e.multipartUpload(gctx, obj)
			default:
				res, err = e.basicUpload(gctx, obj)
			}
			if err != nil {
				return fmt.Errorf("object %s: %w", obj.OID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Batch request failed", "error", err)
		return nil, err
	}

	return &lfs.BatchResponse{Transfer: transfer, Objects: results}, nil
}

func (e *Engine) download(ctx context.Context, obj lfs.ObjectSpec) (lfs.ObjectResult, error) {
	res := lfs.ObjectResult{OID: obj.OID, Size: obj.Size}

	exists, err := objectstore.Exists(ctx, e.store, obj.OID)
	if err != nil {
		return res, err
	}
	if !exists {
		e.observer.RecordBatchObject(lfs.OperationDownload, metrics.ResultMissing)
		res.Error = &lfs.ObjectError{Code: 404, Message: "Object does not exist"}
		return res, nil
	}

	expiresAt := lfs.ExpiryString(e.now())
	href, err := e.store.PresignGetObject(ctx, obj.OID, lfs.URLExpiry)
	if err != nil {
		return res, err
	}

	e.observer.RecordBatchObject(lfs.OperationDownload, metrics.ResultDownload)
	res.Authenticated = true
	res.Actions = &lfs.Actions{
		Download: &lfs.Action{Href: href, ExpiresAt: expiresAt},
	}
	return res, nil
}

func (e *Engine) basicUpload(ctx context.Context, obj lfs.ObjectSpec) (lfs.ObjectResult, error) {
	res := lfs.ObjectResult{OID: obj.OID, Size: obj.Size}

	exists, err := objectstore.Exists(ctx, e.store, obj.OID)
	if err != nil {
		return res, err
	}
	if exists {
		e.observer.RecordBatchObject(lfs.OperationUpload, metrics.ResultNoop)
		return res, nil
	}

	expiresAt := lfs.ExpiryString(e.now())
	href, err := e.store.PresignPutObject(ctx, obj.OID, lfs.OctetStream, lfs.URLExpiry)
	if err != nil {
		return res, err
	}

	e.observer.RecordBatchObject(lfs.OperationUpload, metrics.ResultUpload)
	res.Authenticated = true
	res.Actions = &lfs.Actions{
		Upload: &lfs.Action{
			Href:      href,
			Header:    map[string]string{"Content-Type": lfs.OctetStream},
			ExpiresAt: expiresAt,
		},
	}
	return res, nil
}

// multipartUpload starts an S3 multipart upload and presigns every part plus
// the completion sentinel. The plan is JSON-encoded into the upload href.
func (e *Engine) multipartUpload(ctx context.Context, obj lfs.ObjectSpec) (lfs.ObjectResult, error) {
	res := lfs.ObjectResult{OID: obj.OID, Size: obj.Size}

	exists, err := objectstore.Exists(ctx, e.store, obj.OID)
	if err != nil {
		return res, err
	}
	if exists {
		e.observer.RecordBatchObject(lfs.OperationUpload, metrics.ResultNoop)
		return res, nil
	}

	expiresAt := lfs.ExpiryString(e.now())
	uploadID, err := e.store.CreateMultipartUpload(ctx, obj.OID, lfs.OctetStream)
	if err != nil {
		return res, err
	}

	partSize := PartSize(obj.Size)
	urls := make([]string, PartCount(obj.Size, partSize))
	var completionURL string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(presignLimit)
	g.Go(func() error {
		var err error
		completionURL, err = e.store.PresignPutObject(gctx, obj.OID+e.suffix, lfs.OctetStream, lfs.URLExpiry)
		return err
	})
	for i := range urls {
		g.Go(func() error {
			// part numbers are 1-based
			u, err := e.store.PresignUploadPart(gctx, obj.OID, uploadID, int32(i+1), lfs.URLExpiry)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	href, err := encodeHref(lfs.MultipartHref{
		CompletionURL: completionURL,
		PresignedURLs: urls,
		UploadID:      uploadID,
	})
	if err != nil {
		return res, err
	}

	slog.InfoContext(ctx, "Created multipart upload",
		"oid", obj.OID,
		"uploadId", uploadID,
		"parts", len(urls),
		"partSize", partSize)

	e.observer.RecordBatchObject(lfs.OperationUpload, metrics.ResultMultipart)
	res.Authenticated = true
	res.Actions = &lfs.Actions{
		Upload: &lfs.Action{
			Href:      href,
			Header:    map[string]string{"Content-Type": lfs.OctetStream},
			ExpiresAt: expiresAt,
		},
	}
	return res, nil
}
