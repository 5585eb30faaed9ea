package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/passport/internal/passwords"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/services"
	"github.com/gorilla/mux"
)

type createItemRequest struct {
	Name         string            `json:"name"`
	Type         models.ItemType   `json:"type"`
	Folder       string            `json:"folder"`
	Notes        string            `json:"notes"`
	Tags         []string          `json:"tags"`
	CustomFields map[string]string `json:"custom_fields"`
	Favorite     bool              `json:"is_favorite"`
	AutoRotate   bool              `json:"auto_rotate"`
	RotationDays *int              `json:"rotation_days"`
	Secret       json.RawMessage   `json:"secret"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	secret, err := models.DecodeSecret(req.Type, req.Secret)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.deps.Vault.Create(r.Context(), currentUser(r), services.ItemInput{
		Name:         req.Name,
		Folder:       req.Folder,
		Notes:        req.Notes,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
		Favorite:     req.Favorite,
		AutoRotate:   req.AutoRotate,
		RotationDays: req.RotationDays,
		Secret:       secret,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, item)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.PasswordFilter{
		Search: q.Get("search"),
		Folder: q.Get("folder"),
		Type:   models.ItemType(q.Get("type")),
	}
	if raw := q.Get("favorite"); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "favorite must be a boolean")
			return
		}
		f.Favorite = &fav
	}
	var ok bool
	if f.Skip, ok = queryInt(w, r, "skip"); !ok {
		return
	}
	if f.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}

	items, err := s.deps.Vault.List(r.Context(), currentUser(r), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Vault.Get(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, item)
}

type updateItemRequest struct {
	Name         *string            `json:"name"`
	Folder       *string            `json:"folder"`
	Notes        *string            `json:"notes"`
	Tags         *[]string          `json:"tags"`
	CustomFields *map[string]string `json:"custom_fields"`
	Favorite     *bool              `json:"is_favorite"`
	AutoRotate   *bool              `json:"auto_rotate"`
	RotationDays *int               `json:"rotation_days"`
	Secret       map[string]string  `json:"secret"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.deps.Vault.Update(r.Context(), currentUser(r), mux.Vars(r)["id"], services.ItemPatch(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Vault.Delete(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Vault.History(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, entries)
}

func (s *Server) handleCheckItem(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Vault.CheckBreach(r.Context(), currentUser(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

// handleRotate replaces the item's primary secret with a generated one. The
// body is optional and overrides the default generator options.
func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	opts := passwords.DefaultOptions()
	if r.ContentLength != 0 && !decodeJSON(w, r, &opts) {
		return
	}
	item, err := s.deps.Vault.Rotate(r.Context(), currentUser(r), mux.Vars(r)["id"], opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, item)
}

func (s *Server) handleRotationDue(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Vault.DueForRotation(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, items)
}

type generateResponse struct {
	Password string             `json:"password"`
	Strength passwords.Analysis `json:"strength"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	opts := passwords.DefaultOptions()
	if r.ContentLength != 0 && !decodeJSON(w, r, &opts) {
		return
	}
	pw, err := passwords.Generate(opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, generateResponse{Password: pw, Strength: passwords.Analyze(pw)})
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, passwords.Analyze(req.Password))
}

func (s *Server) handleCheckPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.deps.Vault.CheckPassword(r.Context(), req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}
