package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/stefando/lfsS3/internal/completion"
	"github.com/stefando/lfsS3/internal/lfs"
)

// CompletionWebhook accepts S3 event notifications posted by an S3 compatible
// server (MinIO's webhook target uses the same Records layout) and completes
// the multipart uploads they announce. Requests must present token as a
// Bearer credential.
func CompletionWebhook(h *completion.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			lfs.ErrUnauthorized.Write(w)
			return
		}

		var event events.S3Event
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&event); err != nil {
			writeError(w, r, lfs.BadRequest("Invalid event: %v", err))
			return
		}

		if err := h.HandleS3Event(r.Context(), event); err != nil {
			writeError(w, r, fmt.Errorf("complete multipart uploads for %d records: %w", len(event.Records), err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
