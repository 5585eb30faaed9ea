package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type apiKeyRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	k, err := s.deps.APIKeys.Create(r.Context(), currentUser(r), req.Name, time.Duration(req.ExpiresInDays)*24*time.Hour)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatus(w, http.StatusCreated, k)
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.deps.APIKeys.List(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, keys)
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.APIKeys.Revoke(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Blobs.UploadURL(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, task)
}

type confirmRequest struct {
	Version int64 `json:"version"`
}

func (s *Server) handleConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Blobs.ConfirmUpload(r.Context(), currentUser(r), req.Version); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	dl, err := s.deps.Blobs.DownloadURL(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, dl)
}
