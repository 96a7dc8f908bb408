package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/gorilla/mux"

	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/storage"
)

// RunHandler serves workflow run artifacts out of blob storage: plans,
// script versions, verdict histories, execution results and traces.
type RunHandler struct {
	store  storage.BlobStorage
	logger logger.Logger
}

// NewRunHandler creates a new run artifact handler.
func NewRunHandler(store storage.BlobStorage, log logger.Logger) *RunHandler {
	return &RunHandler{
		store:  store,
		logger: log,
	}
}

// RunArtifactsResponse lists the artifacts of one run.
type RunArtifactsResponse struct {
	RunID     string   `json:"run_id"`
	Artifacts []string `json:"artifacts"`
}

// ListArtifacts handles listing the artifacts stored for a run.
func (h *RunHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "run")
	if !ok {
		return
	}

	prefix := path.Join("runs", id.String())
	keys, err := h.store.List(r.Context(), prefix)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list run artifacts", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id.String(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list run artifacts")
		return
	}

	if len(keys) == 0 {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	// Strip the prefix so clients see bare artifact names.
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, path.Base(key))
	}

	respondJSON(w, http.StatusOK, RunArtifactsResponse{
		RunID:     id.String(),
		Artifacts: names,
	})
}

// ArtifactURLResponse holds a download URL for one artifact.
type ArtifactURLResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// GetArtifactURL handles resolving a download URL for a run artifact.
func (h *RunHandler) GetArtifactURL(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "run")
	if !ok {
		return
	}

	name := mux.Vars(r)["name"]
	if name == "" || name != path.Base(name) {
		respondError(w, http.StatusBadRequest, "invalid artifact name")
		return
	}

	key := path.Join("runs", id.String(), name)
	url, err := h.store.GetURL(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("artifact %s not found", name))
			return
		}
		h.logger.Error(r.Context(), "failed to resolve artifact URL", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id.String(),
			"name":   name,
		})
		respondError(w, http.StatusInternalServerError, "failed to resolve artifact URL")
		return
	}

	respondJSON(w, http.StatusOK, ArtifactURLResponse{Name: name, URL: url})
}
