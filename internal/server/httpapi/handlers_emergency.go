package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/gorilla/mux"
)

type emergencyRequest struct {
	Email       string             `json:"grantee_email"`
	WaitHours   int                `json:"wait_hours"`
	AccessLevel models.AccessLevel `json:"access_level"`
}

func (s *Server) handleCreateEmergency(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.deps.Emergency.Create(r.Context(), currentUser(r), req.Email, req.WaitHours, req.AccessLevel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, e)
}

func (s *Server) handleGrantedByMe(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Emergency.ListAsGrantor(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, list)
}

func (s *Server) handleGrantedToMe(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Emergency.ListAsGrantee(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, list)
}

type emergencyTransition func(ctx context.Context, userID, id string) (*models.EmergencyAccess, error)

func (s *Server) emergencyStep(step emergencyTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := step(r.Context(), currentUser(r), mux.Vars(r)["id"])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, e)
	}
}

func (s *Server) handleRevokeEmergency(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Emergency.Revoke(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEmergencyVault(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Emergency.AccessVault(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, v)
}
