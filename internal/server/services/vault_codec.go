package services

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/passwords"
	"github.com/dmitrijs2005/passport/internal/server/models"
)

// Column-backed secret fields; everything else goes to the details object.
const (
	fieldUsername = "username"
	fieldURL      = "url"
)

// scoredTypes are the item types whose primary secret is a password and is
// run through the strength analyzer.
var scoredTypes = map[models.ItemType]bool{
	models.ItemLogin:    true,
	models.ItemWifi:     true,
	models.ItemServer:   true,
	models.ItemDatabase: true,
	models.ItemAPIKey:   true,
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// sealSecret flattens a Secret variant into rec. The primary field and every
// sensitive field are encrypted with the field key.
func (s *VaultService) sealSecret(rec *models.PasswordRecord, secret models.Secret) error {
	details := map[string]string{}
	rec.Username, rec.URL, rec.EncryptedPassword = nil, nil, nil

	for _, f := range secret.Fields() {
		v := *f.Value
		switch {
		case f.Primary:
			enc, err := s.fields.Encrypt(v)
			if err != nil {
				return err
			}
			rec.EncryptedPassword = enc
		case f.Name == fieldUsername:
			rec.Username = optString(v)
		case f.Name == fieldURL:
			rec.URL = optString(v)
		case v == "":
			// empty values are not stored
		case f.Sensitive:
			enc, err := s.fields.Encrypt(v)
			if err != nil {
				return err
			}
			details[f.Name] = *enc
		default:
			details[f.Name] = v
		}
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	rec.Details = raw
	s.scoreSecret(rec, models.PrimaryValue(secret))
	return nil
}

// openSecret rebuilds the Secret variant of rec. Any field that fails to
// decrypt aborts the whole read with common.ErrIntegrity.
func (s *VaultService) openSecret(rec *models.PasswordRecord) (models.Secret, error) {
	secret, err := models.NewSecret(rec.Type)
	if err != nil {
		return nil, err
	}
	details := map[string]string{}
	if len(rec.Details) > 0 {
		if err := json.Unmarshal(rec.Details, &details); err != nil {
			return nil, fmt.Errorf("%w: details of %s: %v", common.ErrIntegrity, rec.ID, err)
		}
	}

	for _, f := range secret.Fields() {
		switch {
		case f.Primary:
			v, err := s.fields.Decrypt(rec.EncryptedPassword)
			if err != nil {
				return nil, fmt.Errorf("decrypt %s: %w", f.Name, err)
			}
			*f.Value = v
		case f.Name == fieldUsername:
			*f.Value = derefString(rec.Username)
		case f.Name == fieldURL:
			*f.Value = derefString(rec.URL)
		case f.Sensitive:
			raw, ok := details[f.Name]
			if !ok {
				continue
			}
			v, err := s.fields.Decrypt(&raw)
			if err != nil {
				return nil, fmt.Errorf("decrypt %s: %w", f.Name, err)
			}
			*f.Value = v
		default:
			*f.Value = details[f.Name]
		}
	}
	return secret, nil
}

// scoreSecret stores the analyzer verdict for password-like types. Other
// types never carry a score.
func (s *VaultService) scoreSecret(rec *models.PasswordRecord, plaintext string) {
	rec.PasswordStrength, rec.PasswordScore = nil, nil
	if !scoredTypes[rec.Type] || plaintext == "" {
		return
	}
	a := passwords.Analyze(plaintext)
	label := string(a.Strength)
	score := a.Score
	rec.PasswordStrength, rec.PasswordScore = &label, &score
}

// sealMeta stores the non-secret structured fields and the encrypted notes.
func (s *VaultService) sealMeta(rec *models.PasswordRecord, notes string, tags []string, custom map[string]string) error {
	enc, err := s.fields.Encrypt(notes)
	if err != nil {
		return err
	}
	rec.Notes = enc
	if tags == nil {
		tags = []string{}
	}
	if custom == nil {
		custom = map[string]string{}
	}
	t, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	c, err := json.Marshal(custom)
	if err != nil {
		return err
	}
	rec.Tags, rec.CustomFields = string(t), string(c)
	return nil
}

// open decrypts rec into the Item returned to callers.
func (s *VaultService) open(rec *models.PasswordRecord) (*models.Item, error) {
	secret, err := s.openSecret(rec)
	if err != nil {
		return nil, err
	}
	notes, err := s.fields.Decrypt(rec.Notes)
	if err != nil {
		return nil, fmt.Errorf("decrypt notes: %w", err)
	}
	item := &models.Item{
		ID:             rec.ID,
		UserID:         rec.UserID,
		Name:           rec.Name,
		Type:           rec.Type,
		Folder:         derefString(rec.Folder),
		Notes:          notes,
		Tags:           []string{},
		CustomFields:   map[string]string{},
		Favorite:       rec.IsFavorite,
		AutoRotate:     rec.AutoRotate,
		RotationDays:   rec.RotationDays,
		Secret:         secret,
		Strength:       rec.PasswordStrength,
		Score:          rec.PasswordScore,
		IsCompromised:  rec.IsCompromised,
		BreachCount:    rec.BreachCount,
		LastRotatedAt:  rec.LastRotatedAt,
		NextRotationAt: rec.NextRotationAt,
		IsShared:       rec.IsShared,
		LastUsedAt:     rec.LastUsedAt,
		UsageCount:     rec.UsageCount,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.Tags != "" {
		if err := json.Unmarshal([]byte(rec.Tags), &item.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if rec.CustomFields != "" {
		if err := json.Unmarshal([]byte(rec.CustomFields), &item.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom fields: %w", err)
		}
	}
	return item, nil
}
