package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/passport/internal/breach"
	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/passwords"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxRotationDays  = 3650
)

// BreachChecker is the breach lookup the vault depends on.
type BreachChecker interface {
	Check(ctx context.Context, password string) breach.Result
}

// ItemInput is a new vault item.
type ItemInput struct {
	Name         string
	Folder       string
	Notes        string
	Tags         []string
	CustomFields map[string]string
	Favorite     bool
	AutoRotate   bool
	RotationDays *int
	Secret       models.Secret
}

// ItemPatch is a partial update. Nil fields are left unchanged. Secret maps
// field names of the item's variant to new values; empty values are ignored.
// The item type cannot change.
type ItemPatch struct {
	Name         *string
	Folder       *string
	Notes        *string
	Tags         *[]string
	CustomFields *map[string]string
	Favorite     *bool
	AutoRotate   *bool
	RotationDays *int
	Secret       map[string]string
}

// HistoryEntry is a decrypted history snapshot.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Password  string    `json:"password"`
	Strength  *string   `json:"password_strength,omitempty"`
	Score     *int      `json:"password_score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VaultService is the vault record store: encrypted CRUD, soft delete,
// history-on-write, rotation bookkeeping and breach status.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	fields      *cryptox.FieldEncryptor
	breach      BreachChecker
	logger      logging.Logger
	now         func() time.Time
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, fields *cryptox.FieldEncryptor,
	checker BreachChecker, l logging.Logger) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: m,
		fields:      fields,
		breach:      checker,
		logger:      l.With("module", "vault"),
		now:         time.Now,
	}
}

func validateRotation(autoRotate bool, days *int) error {
	if days != nil && (*days < 1 || *days > maxRotationDays) {
		return fmt.Errorf("%w: rotation_days must be between 1 and %d", common.ErrorValidation, maxRotationDays)
	}
	if autoRotate && days == nil {
		return fmt.Errorf("%w: auto_rotate requires rotation_days", common.ErrorValidation)
	}
	return nil
}

func nextRotation(rec *models.PasswordRecord, from time.Time) *time.Time {
	if !rec.AutoRotate || rec.RotationDays == nil {
		return nil
	}
	t := from.AddDate(0, 0, *rec.RotationDays)
	return &t
}

// Create encrypts and stores a new item owned by userID.
func (s *VaultService) Create(ctx context.Context, userID string, in ItemInput) (*models.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	}
	if in.Secret == nil {
		return nil, fmt.Errorf("%w: secret is required", common.ErrorValidation)
	}
	if err := validateRotation(in.AutoRotate, in.RotationDays); err != nil {
		return nil, err
	}

	now := s.now()
	rec := &models.PasswordRecord{
		UserID:       userID,
		Name:         name,
		Type:         in.Secret.Type(),
		Folder:       optString(in.Folder),
		AutoRotate:   in.AutoRotate,
		RotationDays: in.RotationDays,
		IsFavorite:   in.Favorite,
	}
	if err := s.sealSecret(rec, in.Secret); err != nil {
		return nil, err
	}
	if err := s.sealMeta(rec, in.Notes, in.Tags, in.CustomFields); err != nil {
		return nil, err
	}
	if rec.EncryptedPassword != nil {
		rec.LastRotatedAt = &now
		rec.NextRotationAt = nextRotation(rec, now)
	}

	created, err := s.repomanager.Passwords(s.db).Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("error creating item: %w", err)
	}
	s.logger.Info(ctx, "item created", "user_id", userID, "item_id", created.ID, "type", created.Type)
	return s.open(created)
}

// List returns item summaries of userID. Limit must be 1..1000; zero means
// the default page size.
func (s *VaultService) List(ctx context.Context, userID string, f models.PasswordFilter) ([]*models.PasswordListItem, error) {
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit < 1 || f.Limit > maxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", common.ErrorValidation, maxListLimit)
	}
	if f.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", common.ErrorValidation)
	}
	if f.Type != "" {
		if _, err := models.NewSecret(f.Type); err != nil {
			return nil, err
		}
	}
	return s.repomanager.Passwords(s.db).List(ctx, userID, f)
}

// ownedRecord loads a record that userID owns. Records of other users are
// reported as not found.
func (s *VaultService) ownedRecord(ctx context.Context, db dbx.DBTX, userID, id string, lock bool) (*models.PasswordRecord, error) {
	repo := s.repomanager.Passwords(db)
	get := repo.Get
	if lock {
		get = repo.GetForUpdate
	}
	rec, err := get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

// Get decrypts one item for its owner and records the access.
func (s *VaultService) Get(ctx context.Context, userID, id string) (*models.Item, error) {
	rec, err := s.ownedRecord(ctx, s.db, userID, id, false)
	if err != nil {
		return nil, err
	}
	item, err := s.open(rec)
	if err != nil {
		s.logger.Error(ctx, "item failed to decrypt", "item_id", id, "error", err)
		return nil, err
	}
	now := s.now()
	if err := s.repomanager.Passwords(s.db).TouchUsage(ctx, id, now); err != nil {
		s.logger.Warn(ctx, "failed to record item usage", "item_id", id, "error", err)
	} else {
		item.UsageCount++
		item.LastUsedAt = &now
	}
	return item, nil
}

// canEdit reports whether userID may modify rec: the owner, or a grantee
// holding an accepted share with edit rights.
func (s *VaultService) canEdit(ctx context.Context, db dbx.DBTX, userID string, rec *models.PasswordRecord) (bool, error) {
	if rec.UserID == userID {
		return true, nil
	}
	share, err := s.repomanager.Shares(db).FindActive(ctx, rec.ID, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return share.Status == models.ShareAccepted && share.CanEdit, nil
}

// Update applies a partial change. A new primary secret goes through
// persist, so the previous one lands in history first.
func (s *VaultService) Update(ctx context.Context, userID, id string, p ItemPatch) (*models.Item, error) {
	var out *models.Item
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := s.repomanager.Passwords(tx).GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		ok, err := s.canEdit(ctx, tx, userID, rec)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorNotFound
		}

		current, err := s.open(rec)
		if err != nil {
			return err
		}
		primaryChanged, err := mergeSecret(current.Secret, p.Secret)
		if err != nil {
			return err
		}

		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return fmt.Errorf("%w: name must not be empty", common.ErrorValidation)
			}
			rec.Name = name
		}
		if p.Folder != nil {
			rec.Folder = optString(*p.Folder)
		}
		if p.Favorite != nil {
			rec.IsFavorite = *p.Favorite
		}
		rotationChanged := p.AutoRotate != nil || p.RotationDays != nil
		if p.AutoRotate != nil {
			rec.AutoRotate = *p.AutoRotate
		}
		if p.RotationDays != nil {
			rec.RotationDays = p.RotationDays
		}
		if err := validateRotation(rec.AutoRotate, rec.RotationDays); err != nil {
			return err
		}

		notes, tags, custom := current.Notes, current.Tags, current.CustomFields
		if p.Notes != nil {
			notes = *p.Notes
		}
		if p.Tags != nil {
			tags = *p.Tags
		}
		if p.CustomFields != nil {
			custom = *p.CustomFields
		}
		if err := s.sealMeta(rec, notes, tags, custom); err != nil {
			return err
		}

		if rotationChanged {
			from := rec.CreatedAt
			if rec.LastRotatedAt != nil {
				from = *rec.LastRotatedAt
			}
			rec.NextRotationAt = nextRotation(rec, from)
		}

		if err := s.persist(ctx, tx, rec, current.Secret, primaryChanged); err != nil {
			return err
		}
		out, err = s.open(rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "item updated", "user_id", userID, "item_id", id)
	return out, nil
}

// mergeSecret overwrites fields of secret with the non-empty values of patch
// and reports whether the primary secret was replaced.
func mergeSecret(secret models.Secret, patch map[string]string) (bool, error) {
	fields := secret.Fields()
	primaryChanged := false
	for name, v := range patch {
		found := false
		for _, f := range fields {
			if f.Name != name {
				continue
			}
			found = true
			if v != "" {
				*f.Value = v
				primaryChanged = primaryChanged || f.Primary
			}
		}
		if !found {
			return false, fmt.Errorf("%w: %s items have no field %q", common.ErrorValidation, secret.Type(), name)
		}
	}
	return primaryChanged, nil
}

// persist is the single write path for existing records. When the primary
// secret is replaced, the previous ciphertext and its score are appended to
// history in the same transaction before the record is overwritten, and the
// rotation and breach bookkeeping restarts.
func (s *VaultService) persist(ctx context.Context, tx dbx.DBTX, rec *models.PasswordRecord, secret models.Secret, primaryChanged bool) error {
	prevCipher := rec.EncryptedPassword
	prevStrength, prevScore := rec.PasswordStrength, rec.PasswordScore

	if primaryChanged && prevCipher != nil {
		if err := s.repomanager.History(tx).Append(ctx, &models.PasswordHistory{
			PasswordID:        rec.ID,
			EncryptedPassword: *prevCipher,
			PasswordStrength:  prevStrength,
			PasswordScore:     prevScore,
		}); err != nil {
			return fmt.Errorf("error appending history: %w", err)
		}
	}

	if err := s.sealSecret(rec, secret); err != nil {
		return err
	}
	if primaryChanged {
		now := s.now()
		rec.LastRotatedAt = &now
		rec.NextRotationAt = nextRotation(rec, now)
		rec.IsCompromised = false
		rec.BreachCount = 0
	} else {
		rec.EncryptedPassword = prevCipher
		rec.PasswordStrength, rec.PasswordScore = prevStrength, prevScore
	}
	return s.repomanager.Passwords(tx).Update(ctx, rec)
}

// Delete soft-deletes an item of userID. History rows stay linked.
func (s *VaultService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.ownedRecord(ctx, s.db, userID, id, false); err != nil {
		return err
	}
	if err := s.repomanager.Passwords(s.db).SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}
	s.logger.Info(ctx, "item deleted", "user_id", userID, "item_id", id)
	return nil
}

// History returns the decrypted previous secrets of an item, newest first.
func (s *VaultService) History(ctx context.Context, userID, id string) ([]*HistoryEntry, error) {
	if _, err := s.ownedRecord(ctx, s.db, userID, id, false); err != nil {
		return nil, err
	}
	rows, err := s.repomanager.History(s.db).List(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]*HistoryEntry, 0, len(rows))
	for _, h := range rows {
		pw, err := s.fields.Decrypt(&h.EncryptedPassword)
		if err != nil {
			return nil, fmt.Errorf("decrypt history %s: %w", h.ID, err)
		}
		out = append(out, &HistoryEntry{
			ID:        h.ID,
			Password:  pw,
			Strength:  h.PasswordStrength,
			Score:     h.PasswordScore,
			CreatedAt: h.CreatedAt,
		})
	}
	return out, nil
}

// Rotate replaces the primary secret of a password-like item with a freshly
// generated one.
func (s *VaultService) Rotate(ctx context.Context, userID, id string, opts passwords.Options) (*models.Item, error) {
	generated, err := passwords.Generate(opts)
	if err != nil {
		return nil, err
	}
	var out *models.Item
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := s.ownedRecord(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		if !scoredTypes[rec.Type] {
			return fmt.Errorf("%w: %s items cannot be rotated", common.ErrorValidation, rec.Type)
		}
		current, err := s.open(rec)
		if err != nil {
			return err
		}
		if _, err := mergeSecret(current.Secret, map[string]string{primaryFieldName(current.Secret): generated}); err != nil {
			return err
		}
		if err := s.persist(ctx, tx, rec, current.Secret, true); err != nil {
			return err
		}
		out, err = s.open(rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "item rotated", "user_id", userID, "item_id", id)
	return out, nil
}

func primaryFieldName(secret models.Secret) string {
	for _, f := range secret.Fields() {
		if f.Primary {
			return f.Name
		}
	}
	return ""
}

// DueForRotation lists auto-rotating items whose next rotation is due.
func (s *VaultService) DueForRotation(ctx context.Context, userID string) ([]*models.PasswordListItem, error) {
	return s.repomanager.Passwords(s.db).DueForRotation(ctx, userID, s.now())
}

// CheckBreach looks up an item's primary secret. The stored breach status
// changes only when the lookup actually completed.
func (s *VaultService) CheckBreach(ctx context.Context, userID, id string) (breach.Result, error) {
	rec, err := s.ownedRecord(ctx, s.db, userID, id, false)
	if err != nil {
		return breach.Result{}, err
	}
	plaintext, err := s.fields.Decrypt(rec.EncryptedPassword)
	if err != nil {
		return breach.Result{}, fmt.Errorf("decrypt primary: %w", err)
	}
	if plaintext == "" {
		return breach.Result{}, fmt.Errorf("%w: item has no secret to check", common.ErrorValidation)
	}
	res := s.breach.Check(ctx, plaintext)
	if res.Completed() {
		if err := s.repomanager.Passwords(s.db).SetBreachStatus(ctx, id, res.IsCompromised, res.BreachCount); err != nil {
			return breach.Result{}, err
		}
	}
	return res, nil
}

// CheckPassword runs a breach lookup for an arbitrary candidate.
func (s *VaultService) CheckPassword(ctx context.Context, password string) (breach.Result, error) {
	if password == "" {
		return breach.Result{}, fmt.Errorf("%w: password is required", common.ErrorValidation)
	}
	return s.breach.Check(ctx, password), nil
}

// OpenShared decrypts a record for a caller whose access was already
// established by the sharing or emergency rules.
func (s *VaultService) OpenShared(ctx context.Context, id string) (*models.Item, error) {
	rec, err := s.repomanager.Passwords(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(rec)
}

// OwnerItems decrypts every live item of ownerID.
func (s *VaultService) OwnerItems(ctx context.Context, ownerID string) ([]*models.Item, error) {
	recs, err := s.repomanager.Passwords(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	items := make([]*models.Item, 0, len(recs))
	for _, rec := range recs {
		item, err := s.open(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
