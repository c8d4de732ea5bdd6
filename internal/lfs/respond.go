package lfs

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON renders v as a Git LFS response. HTML escaping is off so
// presigned URLs keep their literal '&'.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Write renders the error with its status code
func (e *HTTPError) Write(w http.ResponseWriter) {
	WriteJSON(w, e.Status, e.Body())
}
