package api

import (
	"io"
	"net/http"

	"github.com/stefando/lfsS3/internal/batch"
	"github.com/stefando/lfsS3/internal/lfs"
)

// maxBodySize caps request bodies; a batch of ~100k objects fits comfortably
const maxBodySize = 16 << 20

type batchHandler struct {
	engine *batch.Engine
}

// batch handles POST /objects/batch
func (h *batchHandler) batch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, r, lfs.BadRequest("Failed to read request body"))
		return
	}

	req, err := batch.Decode(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.engine.Batch(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
