// Package lfs holds the Git LFS wire types and protocol constants shared by
// the batch engine, the lock manager and the HTTP layer.
package lfs

import "time"

const (
	// MediaType is the content type of every Git LFS API response
	MediaType = "application/vnd.git-lfs+json"

	// OctetStream is the content type signed into upload URLs
	OctetStream = "application/octet-stream"

	OperationUpload   = "upload"
	OperationDownload = "download"

	TransferBasic     = "basic"
	TransferMultipart = "multipart3upload"
)

const (
	// URLExpiry is the validity window of every presigned URL (6 hours; max for
	// URLs signed with instance metadata credentials)
	URLExpiry = 21600 * time.Second

	// BasicTransferUploadSizeLimit is the largest object a single presigned PUT can carry
	BasicTransferUploadSizeLimit int64 = 5_000_000_000

	// MaxUploadSize is the largest object S3 accepts via multipart upload
	MaxUploadSize int64 = 5_000_000_000_000

	SmallPartSize int64 = 50_000_000
	LargePartSize int64 = 5_000_000_000

	// MaxParts is the S3 limit on parts per multipart upload
	MaxParts = 10_000

	// DefaultCompletionSuffix is appended to an oid to form the key of the
	// sentinel object that signals a finished multipart upload
	DefaultCompletionSuffix = ".completedmultipartupload"
)

// ObjectSpec identifies an object in a batch request. The oid is also the storage key.
type ObjectSpec struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// BatchRequest is the body of POST /objects/batch.
// A nil Transfers means the client omitted the field, which is equivalent to ["basic"].
type BatchRequest struct {
	Operation string       `json:"operation"`
	Transfers []string     `json:"transfers,omitempty"`
	Objects   []ObjectSpec `json:"objects"`
}

// HasTransfers reports whether the client sent a transfers list at all
func (r *BatchRequest) HasTransfers() bool {
	return r.Transfers != nil
}

// SupportsTransfer reports whether the transfers list names the given adapter
func (r *BatchRequest) SupportsTransfer(name string) bool {
	for _, t := range r.Transfers {
		if t == name {
			return true
		}
	}
	return false
}

// BatchResponse is the body returned for a successful batch request
type BatchResponse struct {
	Transfer string         `json:"transfer"`
	Objects  []ObjectResult `json:"objects"`
}

// ObjectResult is one entry of a batch response. Exactly one of Actions or
// Error is set, or neither when an upload is a no-op.
type ObjectResult struct {
	OID           string       `json:"oid"`
	Size          int64        `json:"size"`
	Actions       *Actions     `json:"actions,omitempty"`
	Authenticated bool         `json:"authenticated,omitempty"`
	Error         *ObjectError `json:"error,omitempty"`
}

// Actions carries the transfer instructions for an object
type Actions struct {
	Download *Action `json:"download,omitempty"`
	Upload   *Action `json:"upload,omitempty"`
}

// Action is a single presigned request the client should perform
type Action struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresAt string            `json:"expires_at"`
}

// ObjectError is the in-body error for an object that cannot be served
type ObjectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MultipartHref is JSON-encoded into Action.Href for multipart3upload transfers.
// The LFS client treats href as an opaque string, so the plan travels inside it.
type MultipartHref struct {
	CompletionURL string   `json:"completionurl"`
	PresignedURLs []string `json:"presignedurls"`
	UploadID      string   `json:"uploadid"`
}

// CompletedPart mirrors the S3 CompletedPart shape uploaded by the client in
// the completion sentinel
type CompletedPart struct {
	ETag           string `json:"ETag"`
	PartNumber     int32  `json:"PartNumber"`
	ChecksumCRC32  string `json:"ChecksumCRC32,omitempty"`
	ChecksumCRC32C string `json:"ChecksumCRC32C,omitempty"`
	ChecksumSHA1   string `json:"ChecksumSHA1,omitempty"`
	ChecksumSHA256 string `json:"ChecksumSHA256,omitempty"`
}

// CompletedMultipartUpload lists the parts of a finished multipart upload
type CompletedMultipartUpload struct {
	Parts []CompletedPart `json:"Parts"`
}

// CompletionNotification is the body of the completion sentinel object
type CompletionNotification struct {
	UploadID        string                   `json:"UploadId"`
	MultipartUpload CompletedMultipartUpload `json:"MultipartUpload"`
}
