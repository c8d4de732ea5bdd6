package batch

import (
	"bytes"
	"encoding/json"

	"github.com/stefando/lfsS3/internal/lfs"
)

// Decode parses a batch request body
func Decode(body []byte) (*lfs.BatchRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, lfs.ErrMissingBody
	}
	var req lfs.BatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lfs.BadRequest("Unable to parse request body: %v", err)
	}
	return &req, nil
}

// RequiresMultipart reports whether any object is too large for a single PUT
func RequiresMultipart(objects []lfs.ObjectSpec) bool {
	for _, obj := range objects {
		if obj.Size > lfs.BasicTransferUploadSizeLimit {
			return true
		}
	}
	return false
}

// Validate checks the request and returns the transfer adapter to answer with.
// Failures are *lfs.HTTPError values with status 400. Object descriptors are
// checked only once the operation and transfer negotiation have passed.
func Validate(req *lfs.BatchRequest) (string, error) {
	transfer, err := selectTransfer(req)
	if err != nil {
		return "", err
	}

	for _, obj := range req.Objects {
		if obj.OID == "" || obj.Size < 0 {
			return "", lfs.BadRequest("Invalid object in request: oid %q size %d", obj.OID, obj.Size)
		}
	}
	return transfer, nil
}

func selectTransfer(req *lfs.BatchRequest) (string, error) {
	switch req.Operation {
	case lfs.OperationDownload, lfs.OperationUpload:
	default:
		return "", lfs.ErrInvalidOperation
	}

	if req.Operation == lfs.OperationDownload {
		if req.HasTransfers() && !req.SupportsTransfer(lfs.TransferBasic) {
			return "", lfs.BadRequest("Invalid transfer type requested; only basic is supported for downloads")
		}
		return lfs.TransferBasic, nil
	}

	for _, obj := range req.Objects {
		if obj.Size > lfs.MaxUploadSize {
			return "", lfs.BadRequest("Maximum S3 file upload size is 5TB")
		}
	}

	if RequiresMultipart(req.Objects) {
		if !req.SupportsTransfer(lfs.TransferMultipart) {
			return "", lfs.BadRequest("Invalid transfer type requested; >=5GB uploads require the %s transfer type", lfs.TransferMultipart)
		}
		return lfs.TransferMultipart, nil
	}

	if req.HasTransfers() && !req.SupportsTransfer(lfs.TransferBasic) {
		return "", lfs.BadRequest("Invalid transfer type requested; upload requires basic transfer type")
	}
	return lfs.TransferBasic, nil
}
