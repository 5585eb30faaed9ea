package httpapi

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type userView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	MFAEnabled  bool       `json:"mfa_enabled"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func viewUser(u *models.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.UserName,
		MFAEnabled:  u.TOTPEnabled,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

type registerRequest struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	MasterPassword string `json:"master_password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.deps.Users.Register(r.Context(), req.Email, req.Username, req.Password, req.MasterPassword)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, viewUser(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := s.deps.Users.Login(r.Context(), req.Email, req.Password, req.MFACode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := s.deps.Users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, pair)
}

// handleLogout drops the given refresh token, or every session when the body
// is empty.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Users.Logout(r.Context(), currentUser(r), req.RefreshToken); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Users.Me(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, viewUser(u))
}

type masterRequest struct {
	MasterPassword string `json:"master_password"`
}

type unlockResponse struct {
	VaultKey string `json:"vault_key"`
	Salt     string `json:"salt"`
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req masterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, salt, err := s.deps.Users.UnlockVault(r.Context(), currentUser(r), req.MasterPassword)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, unlockResponse{
		VaultKey: key.String(),
		Salt:     base64.StdEncoding.EncodeToString(salt),
	})
	key.Wipe()
}

type changeMasterRequest struct {
	CurrentMasterPassword string `json:"current_master_password"`
	NewMasterPassword     string `json:"new_master_password"`
}

func (s *Server) handleChangeMaster(w http.ResponseWriter, r *http.Request) {
	var req changeMasterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Users.ChangeMasterPassword(r.Context(), currentUser(r), req.CurrentMasterPassword, req.NewMasterPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := s.deps.Users.SetupTOTP(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, setup)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleTOTPEnable(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Users.EnableTOTP(r.Context(), currentUser(r), req.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Users.DisableTOTP(r.Context(), currentUser(r), req.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	entries, err := s.deps.Audit.List(r.Context(), currentUser(r), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, entries)
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}
