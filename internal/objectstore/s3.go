package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/stefando/lfsS3/internal/lfs"
)

// S3Store implements ObjectStore on Amazon S3 (or any S3 compatible endpoint)
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

type s3Options struct {
	signingCredentials aws.CredentialsProvider
	endpoint           string
}

// S3Option customises NewS3Store
type S3Option func(*s3Options)

// WithSigningCredentials signs presigned URLs with creds instead of the
// default chain. Use it when the default credentials expire before URLExpiry.
func WithSigningCredentials(creds aws.CredentialsProvider) S3Option {
	return func(o *s3Options) {
		o.signingCredentials = creds
	}
}

// WithEndpoint targets an S3 compatible endpoint using path-style addressing
func WithEndpoint(endpoint string) S3Option {
	return func(o *s3Options) {
		o.endpoint = endpoint
	}
}

// NewS3Store creates a store for bucket from the given AWS config
func NewS3Store(cfg aws.Config, bucket string, opts ...S3Option) *S3Store {
	var o s3Options
	for _, opt := range opts {
		opt(&o)
	}

	endpoint := func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
			so.UsePathStyle = true
		}
	}

	client := s3.NewFromConfig(cfg, endpoint)

	// Presigning gets its own client so the signing identity can differ from
	// the one used for direct calls
	signer := client
	if o.signingCredentials != nil {
		signer = s3.NewFromConfig(cfg, endpoint, func(so *s3.Options) {
			so.Credentials = o.signingCredentials
		})
	}

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(signer),
		bucket:  bucket,
	}
}

// Bucket returns a store sharing this store's clients but bound to name
func (s *S3Store) Bucket(name string) ObjectStore {
	return &S3Store{client: s.client, presign: s.presign, bucket: name}
}

// isNotFound recognises the ways S3 reports a missing key. HeadObject has no
// response body, so the typed NotFound is not always populated.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (s *S3Store) HeadObject(ctx context.Context, key string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return &Error{Op: "HeadObject", Key: key, Err: ErrNotFound}
		}
		return &Error{Op: "HeadObject", Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", &Error{Op: "PresignGetObject", Key: key, Err: err}
	}
	return req.URL, nil
}

func (s *S3Store) PresignPutObject(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", &Error{Op: "PresignPutObject", Key: key, Err: err}
	}
	return req.URL, nil
}

func (s *S3Store) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", &Error{Op: "CreateMultipartUpload", Key: key, Err: err}
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return "", &Error{Op: "CreateMultipartUpload", Key: key, Err: errors.New("empty upload id")}
	}
	return *out.UploadId, nil
}

func (s *S3Store) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		PartNumber: aws.Int32(partNumber),
		UploadId:   aws.String(uploadID),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", &Error{Op: "PresignUploadPart", Key: key, Err: fmt.Errorf("part %d: %w", partNumber, err)}
	}
	return req.URL, nil
}

// convertParts converts the client supplied part list to the AWS SDK format
func convertParts(parts []lfs.CompletedPart) []types.CompletedPart {
	completed := make([]types.CompletedPart, len(parts))
	for i, part := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(part.PartNumber),
		}
		if part.ChecksumCRC32 != "" {
			completed[i].ChecksumCRC32 = aws.String(part.ChecksumCRC32)
		}
		if part.ChecksumCRC32C != "" {
			completed[i].ChecksumCRC32C = aws.String(part.ChecksumCRC32C)
		}
		if part.ChecksumSHA1 != "" {
			completed[i].ChecksumSHA1 = aws.String(part.ChecksumSHA1)
		}
		if part.ChecksumSHA256 != "" {
			completed[i].ChecksumSHA256 = aws.String(part.ChecksumSHA256)
		}
	}
	return completed
}

func (s *S3Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, upload lfs.CompletedMultipartUpload) error {
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: convertParts(upload.Parts),
		},
	})
	if err != nil {
		return &Error{Op: "CompleteMultipartUpload", Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			err = ErrNotFound
		}
		return nil, &Error{Op: "GetObject", Key: key, Err: err}
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &Error{Op: "GetObject", Key: key, Err: err}
	}
	return body, nil
}

func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &Error{Op: "DeleteObject", Key: key, Err: err}
	}
	return nil
}
