package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/gorilla/mux"
)

type shareRequest struct {
	PasswordID string `json:"password_id"`
	Email      string `json:"shared_with_email"`
	CanView    *bool  `json:"can_view"`
	CanEdit    bool   `json:"can_edit"`
	CanShare   bool   `json:"can_share"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caps := models.Capabilities{CanView: true, CanEdit: req.CanEdit, CanShare: req.CanShare}
	if req.CanView != nil {
		caps.CanView = *req.CanView
	}
	sh, err := s.deps.Sharing.Share(r.Context(), currentUser(r), req.PasswordID, req.Email, caps)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sh)
}

func (s *Server) handleSharedByMe(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Sharing.ListSharedByMe(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, list)
}

func (s *Server) handleSharedWithMe(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Sharing.ListSharedWithMe(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, list)
}

type shareTransition func(ctx context.Context, userID, shareID string) (*models.Share, error)

// shareStep adapts accept, reject and revoke, which share one shape.
func (s *Server) shareStep(step shareTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh, err := step(r.Context(), currentUser(r), mux.Vars(r)["id"])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, sh)
	}
}

func (s *Server) handleSharedItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Sharing.GetSharedItem(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, item)
}
