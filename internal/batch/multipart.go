package batch

import (
	"bytes"
	"encoding/json"

	"github.com/stefando/lfsS3/internal/lfs"
)

// PartSize picks the part size for an object of size bytes. Smaller parts
// give the client finer progress reporting, but S3 allows at most 10,000.
func PartSize(size int64) int64 {
	if PartCount(size, lfs.SmallPartSize) > lfs.MaxParts {
		return lfs.LargePartSize
	}
	return lfs.SmallPartSize
}

// PartCount is ceil(size / partSize)
func PartCount(size, partSize int64) int {
	return int((size + partSize - 1) / partSize)
}

// encodeHref renders the multipart plan as the JSON string carried in href.
// HTML escaping is off so query strings keep their literal '&'.
func encodeHref(href lfs.MultipartHref) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(href); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
