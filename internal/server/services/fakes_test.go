package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/passport/internal/server/repositories/audit"
	"github.com/dmitrijs2005/passport/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/passport/internal/server/repositories/emergency"
	"github.com/dmitrijs2005/passport/internal/server/repositories/history"
	"github.com/dmitrijs2005/passport/internal/server/repositories/passwords"
	"github.com/dmitrijs2005/passport/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/passport/internal/server/repositories/shares"
	"github.com/dmitrijs2005/passport/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- shared test fixtures ---

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTxDB returns a real *sql.DB so dbx.WithTx can begin and commit. The
// fake repositories ignore the transaction handle.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFields(t *testing.T) *cryptox.FieldEncryptor {
	t.Helper()
	key, err := cryptox.GenerateFieldKey()
	require.NoError(t, err)
	f, err := cryptox.NewFieldEncryptor(key)
	require.NoError(t, err)
	return f
}

// fakeStore is an in-memory stand-in for the database shared by all fake
// repositories. events records mutating calls in order.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*models.User
	sessions map[string]*models.Session
	records  map[string]*models.PasswordRecord
	history  []*models.PasswordHistory
	shares   map[string]*models.Share
	grants   map[string]*models.EmergencyAccess
	keys     map[string]*models.APIKey
	audit    []*models.AuditLog
	blobs    map[string]*models.VaultBlob
	events   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*models.User{},
		sessions: map[string]*models.Session{},
		records:  map[string]*models.PasswordRecord{},
		shares:   map[string]*models.Share{},
		grants:   map[string]*models.EmergencyAccess{},
		keys:     map[string]*models.APIKey{},
		blobs:    map[string]*models.VaultBlob{},
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *fakeStore) event(e string) { s.events = append(s.events, e) }

func (s *fakeStore) auditActions(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, a := range s.audit {
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, a.Action)
		}
	}
	return out
}

// addUser stores a user directly, bypassing Register.
func (s *fakeStore) addUser(id, email string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Email: email, UserName: id}
	s.users[id] = u
	return u
}

type fakeManager struct{ s *fakeStore }

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository             { return &fakeUsers{m.s} }
func (m *fakeManager) Sessions(dbx.DBTX) sessions.Repository       { return &fakeSessions{m.s} }
func (m *fakeManager) Passwords(dbx.DBTX) passwords.Repository     { return &fakePasswords{m.s} }
func (m *fakeManager) History(dbx.DBTX) history.Repository         { return &fakeHistory{m.s} }
func (m *fakeManager) Shares(dbx.DBTX) shares.Repository           { return &fakeShares{m.s} }
func (m *fakeManager) Emergency(dbx.DBTX) emergency.Repository     { return &fakeEmergency{m.s} }
func (m *fakeManager) APIKeys(dbx.DBTX) apikeys.Repository         { return &fakeAPIKeys{m.s} }
func (m *fakeManager) Audit(dbx.DBTX) audit.Repository             { return &fakeAudit{m.s} }
func (m *fakeManager) Blobs(dbx.DBTX) blobs.Repository             { return &fakeBlobs{m.s} }

// --- users ---

type fakeUsers struct{ s *fakeStore }

func (r *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.users {
		if strings.EqualFold(x.Email, u.Email) || x.UserName == u.UserName {
			return nil, common.ErrConflict
		}
	}
	c := *u
	c.ID = r.s.nextID("u")
	c.CreatedAt, c.UpdatedAt = testNow, testNow
	r.s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.users {
		if strings.EqualFold(x.Email, email) {
			c := *x
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *x
	return &c, nil
}

func (r *fakeUsers) update(id string, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(x)
	return nil
}

func (r *fakeUsers) UpdateLoginState(_ context.Context, id string, failed int, lockedUntil, lastLoginAt *time.Time) error {
	return r.update(id, func(u *models.User) {
		u.FailedLoginAttempts = failed
		u.LockedUntil = lockedUntil
		if lastLoginAt != nil {
			u.LastLoginAt = lastLoginAt
		}
	})
}

func (r *fakeUsers) UpdateMasterPasswordHash(_ context.Context, id, hash string) error {
	return r.update(id, func(u *models.User) { u.MasterPasswordHash = hash })
}

func (r *fakeUsers) UpdateTOTP(_ context.Context, id string, secret *string, enabled bool) error {
	return r.update(id, func(u *models.User) { u.TOTPSecret, u.TOTPEnabled = secret, enabled })
}

// --- sessions ---

type fakeSessions struct{ s *fakeStore }

func (r *fakeSessions) Create(_ context.Context, x *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x.ID = r.s.nextID("sess")
	x.CreatedAt = testNow
	c := *x
	r.s.sessions[x.Token] = &c
	return nil
}

func (r *fakeSessions) Find(_ context.Context, token string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.sessions[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *x
	return &c, nil
}

func (r *fakeSessions) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, token)
	return nil
}

func (r *fakeSessions) DeleteForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for tok, x := range r.s.sessions {
		if x.UserID == userID {
			delete(r.s.sessions, tok)
		}
	}
	return nil
}

// --- passwords ---

type fakePasswords struct{ s *fakeStore }

func (r *fakePasswords) shared(id string) bool {
	for _, sh := range r.s.shares {
		if sh.PasswordID == id && sh.Active() {
			return true
		}
	}
	return false
}

func (r *fakePasswords) Create(_ context.Context, rec *models.PasswordRecord) (*models.PasswordRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec.ID = r.s.nextID("p")
	rec.CreatedAt, rec.UpdatedAt = testNow, testNow
	c := *rec
	r.s.records[rec.ID] = &c
	r.s.event("passwords.create")
	return rec, nil
}

func (r *fakePasswords) Get(_ context.Context, id string) (*models.PasswordRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.records[id]
	if !ok || x.IsDeleted {
		return nil, common.ErrorNotFound
	}
	c := *x
	c.IsShared = r.shared(id)
	return &c, nil
}

func (r *fakePasswords) GetForUpdate(ctx context.Context, id string) (*models.PasswordRecord, error) {
	return r.Get(ctx, id)
}

func summary(x *models.PasswordRecord, shared bool) *models.PasswordListItem {
	return &models.PasswordListItem{
		ID: x.ID, Name: x.Name, Type: x.Type, Folder: x.Folder, Username: x.Username, URL: x.URL,
		PasswordStrength: x.PasswordStrength, IsCompromised: x.IsCompromised, IsShared: shared,
		IsFavorite: x.IsFavorite, UpdatedAt: x.UpdatedAt,
	}
}

func (r *fakePasswords) owned(userID string) []*models.PasswordRecord {
	var out []*models.PasswordRecord
	for _, x := range r.s.records {
		if x.UserID == userID && !x.IsDeleted {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakePasswords) List(_ context.Context, userID string, f models.PasswordFilter) ([]*models.PasswordListItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PasswordListItem
	for _, x := range r.owned(userID) {
		if f.Type != "" && x.Type != f.Type {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(x.Name), strings.ToLower(f.Search)) {
			continue
		}
		if f.Favorite != nil && x.IsFavorite != *f.Favorite {
			continue
		}
		out = append(out, summary(x, r.shared(x.ID)))
	}
	if f.Skip >= len(out) {
		return nil, nil
	}
	out = out[f.Skip:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakePasswords) ListByOwner(_ context.Context, userID string) ([]*models.PasswordRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PasswordRecord
	for _, x := range r.owned(userID) {
		c := *x
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakePasswords) Update(_ context.Context, rec *models.PasswordRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.records[rec.ID]
	if !ok || x.IsDeleted {
		return common.ErrorNotFound
	}
	rec.UpdatedAt = testNow.Add(time.Minute)
	c := *rec
	c.UsageCount, c.LastUsedAt = x.UsageCount, x.LastUsedAt
	r.s.records[rec.ID] = &c
	r.s.event("passwords.update")
	return nil
}

func (r *fakePasswords) mutate(id string, fn func(x *models.PasswordRecord)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.records[id]
	if !ok || x.IsDeleted {
		return common.ErrorNotFound
	}
	fn(x)
	return nil
}

func (r *fakePasswords) TouchUsage(_ context.Context, id string, now time.Time) error {
	return r.mutate(id, func(x *models.PasswordRecord) { x.UsageCount++; x.LastUsedAt = &now })
}

func (r *fakePasswords) SoftDelete(_ context.Context, id string, now time.Time) error {
	return r.mutate(id, func(x *models.PasswordRecord) { x.IsDeleted = true; x.DeletedAt = &now })
}

func (r *fakePasswords) SetBreachStatus(_ context.Context, id string, compromised bool, count int) error {
	return r.mutate(id, func(x *models.PasswordRecord) { x.IsCompromised, x.BreachCount = compromised, count })
}

func (r *fakePasswords) DueForRotation(_ context.Context, userID string, now time.Time) ([]*models.PasswordListItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PasswordListItem
	for _, x := range r.owned(userID) {
		if x.AutoRotate && x.NextRotationAt != nil && !x.NextRotationAt.After(now) {
			out = append(out, summary(x, r.shared(x.ID)))
		}
	}
	return out, nil
}

// --- history ---

type fakeHistory struct{ s *fakeStore }

func (r *fakeHistory) Append(_ context.Context, h *models.PasswordHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = r.s.nextID("h")
	h.CreatedAt = testNow
	c := *h
	r.s.history = append(r.s.history, &c)
	r.s.event("history.append")
	return nil
}

func (r *fakeHistory) List(_ context.Context, passwordID string) ([]*models.PasswordHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PasswordHistory
	for i := len(r.s.history) - 1; i >= 0; i-- {
		if h := r.s.history[i]; h.PasswordID == passwordID {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- shares ---

type fakeShares struct{ s *fakeStore }

func (r *fakeShares) Create(_ context.Context, sh *models.Share) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.shares {
		if x.PasswordID == sh.PasswordID && x.SharedWithID == sh.SharedWithID && x.Active() {
			return nil, common.ErrConflict
		}
	}
	c := *sh
	c.ID = r.s.nextID("s")
	c.Status = models.SharePending
	c.CreatedAt = testNow
	r.s.shares[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeShares) Get(_ context.Context, id string) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.shares[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *x
	return &c, nil
}

func (r *fakeShares) FindActive(_ context.Context, passwordID, userID string) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.shares {
		if x.PasswordID == passwordID && x.SharedWithID == userID && x.Active() {
			c := *x
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeShares) SetStatus(_ context.Context, id string, from, to models.ShareStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.shares[id]
	if !ok || x.Status != from {
		return common.ErrInvalidStateTransition
	}
	x.Status = to
	switch to {
	case models.ShareAccepted:
		x.AcceptedAt = &at
	case models.ShareRevoked:
		x.RevokedAt = &at
	}
	return nil
}

func (r *fakeShares) list(match func(x *models.Share) bool) []*models.Share {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Share
	for _, x := range r.s.shares {
		if match(x) {
			c := *x
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeShares) ListSharedBy(_ context.Context, userID string) ([]*models.Share, error) {
	return r.list(func(x *models.Share) bool { return x.SharedByID == userID }), nil
}

func (r *fakeShares) ListSharedWith(_ context.Context, userID string) ([]*models.Share, error) {
	return r.list(func(x *models.Share) bool { return x.SharedWithID == userID && x.Active() }), nil
}

// --- emergency ---

type fakeEmergency struct{ s *fakeStore }

func (r *fakeEmergency) Create(_ context.Context, e *models.EmergencyAccess) (*models.EmergencyAccess, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.grants {
		if x.GrantorID == e.GrantorID && x.GranteeID == e.GranteeID && x.Status != models.EmergencyRejected {
			return nil, common.ErrConflict
		}
	}
	c := *e
	c.ID = r.s.nextID("e")
	c.Status = models.EmergencyPending
	c.CreatedAt, c.UpdatedAt = testNow, testNow
	r.s.grants[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeEmergency) Get(_ context.Context, id string) (*models.EmergencyAccess, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.grants[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *x
	return &c, nil
}

func (r *fakeEmergency) GetForUpdate(ctx context.Context, id string) (*models.EmergencyAccess, error) {
	return r.Get(ctx, id)
}

func (r *fakeEmergency) Transition(_ context.Context, e *models.EmergencyAccess, from models.EmergencyStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.grants[e.ID]
	if !ok || x.Status != from {
		return common.ErrInvalidStateTransition
	}
	c := *e
	r.s.grants[e.ID] = &c
	return nil
}

func (r *fakeEmergency) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.grants[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.grants, id)
	return nil
}

func (r *fakeEmergency) list(match func(x *models.EmergencyAccess) bool) []*models.EmergencyAccess {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.EmergencyAccess
	for _, x := range r.s.grants {
		if match(x) {
			c := *x
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeEmergency) ListByGrantor(_ context.Context, userID string) ([]*models.EmergencyAccess, error) {
	return r.list(func(x *models.EmergencyAccess) bool { return x.GrantorID == userID }), nil
}

func (r *fakeEmergency) ListByGrantee(_ context.Context, userID string) ([]*models.EmergencyAccess, error) {
	return r.list(func(x *models.EmergencyAccess) bool { return x.GranteeID == userID }), nil
}

func (r *fakeEmergency) GrantElapsed(_ context.Context, now time.Time) ([]*models.EmergencyAccess, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.EmergencyAccess
	for _, x := range r.s.grants {
		if x.Status == models.EmergencyRequested && x.AvailableAt != nil && !x.AvailableAt.After(now) {
			x.Status = models.EmergencyGranted
			x.GrantedAt = &now
			c := *x
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- api keys ---

type fakeAPIKeys struct{ s *fakeStore }

func (r *fakeAPIKeys) Create(_ context.Context, k *models.APIKey) (*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.keys {
		if x.Prefix == k.Prefix {
			return nil, common.ErrConflict
		}
	}
	c := *k
	c.ID = r.s.nextID("k")
	c.CreatedAt = testNow
	r.s.keys[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeAPIKeys) GetByPrefix(_ context.Context, prefix string) (*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.keys {
		if x.Prefix == prefix {
			c := *x
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeAPIKeys) ListByUser(_ context.Context, userID string) ([]*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.APIKey
	for _, x := range r.s.keys {
		if x.UserID == userID {
			c := *x
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeAPIKeys) Revoke(_ context.Context, userID, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.keys[id]
	if !ok || x.UserID != userID || x.RevokedAt != nil {
		return common.ErrorNotFound
	}
	x.RevokedAt = &now
	return nil
}

func (r *fakeAPIKeys) TouchLastUsed(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if x, ok := r.s.keys[id]; ok {
		x.LastUsedAt = &now
	}
	return nil
}

// --- audit ---

type fakeAudit struct{ s *fakeStore }

func (r *fakeAudit) Create(_ context.Context, e *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *e
	c.ID = r.s.nextID("a")
	r.s.audit = append(r.s.audit, &c)
	return nil
}

func (r *fakeAudit) ListByUser(_ context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if a := r.s.audit[i]; a.UserID != nil && *a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- blobs ---

type fakeBlobs struct{ s *fakeStore }

func (r *fakeBlobs) Get(_ context.Context, userID string) (*models.VaultBlob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.blobs[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *x
	return &c, nil
}

func (r *fakeBlobs) BeginUpload(_ context.Context, userID, key string) (*models.VaultBlob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.blobs[userID]
	if !ok {
		x = &models.VaultBlob{UserID: userID}
		r.s.blobs[userID] = x
	}
	x.StorageKey = key
	x.Version++
	x.UploadStatus = blobs.StatusPending
	c := *x
	return &c, nil
}

func (r *fakeBlobs) MarkUploaded(_ context.Context, userID string, version int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.blobs[userID]
	if !ok || x.Version != version {
		return common.ErrorNotFound
	}
	x.UploadStatus = blobs.StatusCompleted
	return nil
}

// --- service constructors ---

type testEnv struct {
	store  *fakeStore
	db     *sql.DB
	fields *cryptox.FieldEncryptor
	audit  *AuditService
	vault  *VaultService
}

func newTestEnv(t *testing.T, checker BreachChecker) *testEnv {
	t.Helper()
	store := newFakeStore()
	m := &fakeManager{s: store}
	db := newTxDB(t)
	fields := newFields(t)
	a := NewAuditService(db, m, logging.Nop())
	v := NewVaultService(db, m, fields, checker, logging.Nop())
	v.now = func() time.Time { return testNow }
	return &testEnv{store: store, db: db, fields: fields, audit: a, vault: v}
}

func (e *testEnv) manager() *fakeManager { return &fakeManager{s: e.store} }
