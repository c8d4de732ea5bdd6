package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stefando/lfsS3/internal/lfs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	lfs.WriteJSON(w, status, v)
}

// writeError renders err. Errors that are not *lfs.HTTPError are upstream
// failures and become a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *lfs.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		}
		httpErr.Write(w)
		return
	}

	slog.ErrorContext(r.Context(), "Upstream failure", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, lfs.ErrorBody{
		ErrorType: lfs.ErrorTypeInternal,
		Message:   "Internal server error",
	})
}
