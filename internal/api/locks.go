package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stefando/lfsS3/internal/auth"
	"github.com/stefando/lfsS3/internal/lfs"
	"github.com/stefando/lfsS3/internal/locks"
)

type lockHandler struct {
	manager *locks.Manager
}

// username returns the caller or writes a 400 when the edge attached none
func username(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, ok := auth.GetUsername(r.Context())
	if !ok {
		slog.WarnContext(r.Context(), "Could not retrieve username from request context")
		writeError(w, r, lfs.ErrMissingUsername)
	}
	return name, ok
}

// decodeBody parses a required JSON body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, r, lfs.BadRequest("Failed to read request body"))
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, r, lfs.ErrMissingBody)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, r, lfs.BadRequest("Unable to parse request body: %v", err))
		return false
	}
	return true
}

// list handles GET /locks
func (h *lockHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := username(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	resp, err := h.manager.List(r.Context(), user, query.Get("id"), query.Get("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// verify handles POST /locks/verify
func (h *lockHandler) verify(w http.ResponseWriter, r *http.Request) {
	user, ok := username(w, r)
	if !ok {
		return
	}

	resp, err := h.manager.Verify(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// create handles POST /locks
func (h *lockHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := username(w, r)
	if !ok {
		return
	}

	var req lfs.CreateLockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.manager.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// unlock handles POST /locks/{id}/unlock
func (h *lockHandler) unlock(w http.ResponseWriter, r *http.Request) {
	user, ok := username(w, r)
	if !ok {
		return
	}

	var req lfs.UnlockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.manager.Unlock(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
