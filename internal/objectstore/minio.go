package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stefando/lfsS3/internal/lfs"
)

// MinioConfig describes how to reach a MinIO (or other S3 compatible) server
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioStore implements ObjectStore with minio-go. It backs the standalone
// server when no AWS account is involved.
type MinioStore struct {
	core   *minio.Core
	bucket string
}

// NewMinioStore connects to the server described by cfg and binds bucket
func NewMinioStore(cfg MinioConfig, bucket string) (*MinioStore, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, &Error{Op: "Connect", Key: cfg.Endpoint, Err: err}
	}
	return &MinioStore{core: core, bucket: bucket}, nil
}

// Bucket returns a store sharing this store's client but bound to name
func (m *MinioStore) Bucket(name string) ObjectStore {
	return &MinioStore{core: m.core, bucket: name}
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func (m *MinioStore) HeadObject(ctx context.Context, key string) error {
	_, err := m.core.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return &Error{Op: "HeadObject", Key: key, Err: ErrNotFound}
		}
		return &Error{Op: "HeadObject", Key: key, Err: err}
	}
	return nil
}

func (m *MinioStore) PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := m.core.PresignedGetObject(ctx, m.bucket, key, expires, url.Values{})
	if err != nil {
		return "", &Error{Op: "PresignGetObject", Key: key, Err: err}
	}
	return u.String(), nil
}

func (m *MinioStore) PresignPutObject(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	u, err := m.core.PresignHeader(ctx, http.MethodPut, m.bucket, key, expires, url.Values{}, headers)
	if err != nil {
		return "", &Error{Op: "PresignPutObject", Key: key, Err: err}
	}
	return u.String(), nil
}

func (m *MinioStore) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := m.core.NewMultipartUpload(ctx, m.bucket, key, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", &Error{Op: "CreateMultipartUpload", Key: key, Err: err}
	}
	return uploadID, nil
}

func (m *MinioStore) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(int(partNumber)))
	params.Set("uploadId", uploadID)

	u, err := m.core.Presign(ctx, http.MethodPut, m.bucket, key, expires, params)
	if err != nil {
		return "", &Error{Op: "PresignUploadPart", Key: key, Err: err}
	}
	return u.String(), nil
}

func (m *MinioStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, upload lfs.CompletedMultipartUpload) error {
	parts := make([]minio.CompletePart, len(upload.Parts))
	for i, part := range upload.Parts {
		parts[i] = minio.CompletePart{
			PartNumber:     int(part.PartNumber),
			ETag:           part.ETag,
			ChecksumCRC32:  part.ChecksumCRC32,
			ChecksumCRC32C: part.ChecksumCRC32C,
			ChecksumSHA1:   part.ChecksumSHA1,
			ChecksumSHA256: part.ChecksumSHA256,
		}
	}

	_, err := m.core.CompleteMultipartUpload(ctx, m.bucket, key, uploadID, parts, minio.PutObjectOptions{})
	if err != nil {
		return &Error{Op: "CompleteMultipartUpload", Key: key, Err: err}
	}
	return nil
}

func (m *MinioStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.core.Client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &Error{Op: "GetObject", Key: key, Err: err}
	}
	defer obj.Close()

	// the request is sent on first read, so a missing key surfaces here
	body, err := io.ReadAll(obj)
	if err != nil {
		if isMinioNotFound(err) {
			err = ErrNotFound
		}
		return nil, &Error{Op: "GetObject", Key: key, Err: err}
	}
	return body, nil
}

func (m *MinioStore) DeleteObject(ctx context.Context, key string) error {
	if err := m.core.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &Error{Op: "DeleteObject", Key: key, Err: err}
	}
	return nil
}
