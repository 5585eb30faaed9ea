package models

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/passport/internal/common"
)

// ItemType tags the Secret variant held by a vault item.
type ItemType string

const (
	ItemLogin    ItemType = "login"
	ItemCard     ItemType = "card"
	ItemNote     ItemType = "note"
	ItemIdentity ItemType = "identity"
	ItemWifi     ItemType = "wifi"
	ItemServer   ItemType = "server"
	ItemDatabase ItemType = "database"
	ItemAPIKey   ItemType = "api_key"
)

// SecretField describes one string field of a Secret variant for
// persistence. Exactly one field per variant may be Primary; its value lives
// in the encrypted_password column and participates in history.
type SecretField struct {
	Name      string
	Value     *string
	Sensitive bool
	Primary   bool
}

// Secret is the type-specific part of a vault item. Each variant carries
// only the fields meaningful for its type.
type Secret interface {
	Type() ItemType
	Fields() []SecretField
}

type LoginSecret struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	URL      string `json:"url,omitempty"`
	TOTP     string `json:"totp,omitempty"`
}

func (*LoginSecret) Type() ItemType { return ItemLogin }

func (s *LoginSecret) Fields() []SecretField {
	return []SecretField{
		{Name: "username", Value: &s.Username},
		{Name: "password", Value: &s.Password, Sensitive: true, Primary: true},
		{Name: "url", Value: &s.URL},
		{Name: "totp", Value: &s.TOTP, Sensitive: true},
	}
}

type CardSecret struct {
	Holder string `json:"card_holder,omitempty"`
	Number string `json:"card_number,omitempty"`
	Expiry string `json:"card_expiry,omitempty"`
	CVV    string `json:"card_cvv,omitempty"`
}

func (*CardSecret) Type() ItemType { return ItemCard }

func (s *CardSecret) Fields() []SecretField {
	return []SecretField{
		{Name: "card_holder", Value: &s.Holder, Sensitive: true},
		{Name: "card_number", Value: &s.Number, Sensitive: true, Primary: true},
		{Name: "card_expiry", Value: &s.Expiry},
		{Name: "card_cvv", Value: &s.CVV, Sensitive: true},
	}
}

// NoteSecret has no fields of its own; the content lives in Item.Notes.
type NoteSecret struct{}

func (*NoteSecret) Type() ItemType        { return ItemNote }
func (*NoteSecret) Fields() []SecretField { return nil }

type IdentitySecret struct {
	FullName       string `json:"full_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
}

func (*IdentitySecret) Type() ItemType { return ItemIdentity }

func (s *IdentitySecret) Fields() []SecretField {
	return []SecretField{
		{Name: "full_name", Value: &s.FullName},
		{Name: "email", Value: &s.Email},
		{Name: "phone", Value: &s.Phone, Sensitive: true},
		{Name: "address", Value: &s.Address, Sensitive: true},
		{Name: "document_number", Value: &s.DocumentNumber, Sensitive: true, Primary: true},
	}
}

type WifiSecret struct {
	SSID     string `json:"ssid,omitempty"`
	Password string `json:"password,omitempty"`
	Security string `json:"security,omitempty"`
}

func (*WifiSecret) Type() ItemType { return ItemWifi }

func (s *WifiSecret) Fields() []SecretField {
	return []SecretField{
		{Name: "ssid", Value: &s.SSID},
		{Name: "password", Value: &s.Password, Sensitive: true, Primary: true},
		{Name: "security", Value: &s.Security},
	}
}

type ServerSecret struct {
	Host     string `json:"host,omitempty"`
	Port     string `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

func (*ServerSecret) Type() ItemType { return ItemServer }

func (s *ServerSecret) Fields() []SecretField {
	return []SecretField{
		{Name: "host", Value: &s.Host},
		{Name: "port", Value: &s.Port},
		{Name: "username", Value: &s.Username},
		{Name: "password", Value: &s.Password, Sensitive: true, Primary: true},
	}
}

type DatabaseSecret struct {
	Engine   string `json:"engine,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     string `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

func (*DatabaseSecret) Type() ItemType { return ItemDatabase }

func (s *DatabaseSecret) Fields() []SecretField {
	return []SecretField{
		{Name: "engine", Value: &s.Engine},
		{Name: "host", Value: &s.Host},
		{Name: "port", Value: &s.Port},
		{Name: "database", Value: &s.Database},
		{Name: "username", Value: &s.Username},
		{Name: "password", Value: &s.Password, Sensitive: true, Primary: true},
	}
}

type APIKeySecret struct {
	Service string `json:"service,omitempty"`
	Key     string `json:"key,omitempty"`
}

func (*APIKeySecret) Type() ItemType { return ItemAPIKey }

func (s *APIKeySecret) Fields() []SecretField {
	return []SecretField{
		{Name: "service", Value: &s.Service},
		{Name: "key", Value: &s.Key, Sensitive: true, Primary: true},
	}
}

// NewSecret returns an empty variant for t.
func NewSecret(t ItemType) (Secret, error) {
	switch t {
	case ItemLogin:
		return &LoginSecret{}, nil
	case ItemCard:
		return &CardSecret{}, nil
	case ItemNote:
		return &NoteSecret{}, nil
	case ItemIdentity:
		return &IdentitySecret{}, nil
	case ItemWifi:
		return &WifiSecret{}, nil
	case ItemServer:
		return &ServerSecret{}, nil
	case ItemDatabase:
		return &DatabaseSecret{}, nil
	case ItemAPIKey:
		return &APIKeySecret{}, nil
	}
	return nil, fmt.Errorf("%w: unknown item type %q", common.ErrorValidation, t)
}

// PrimaryValue returns the value of the variant's primary field, or "".
func PrimaryValue(s Secret) string {
	for _, f := range s.Fields() {
		if f.Primary {
			return *f.Value
		}
	}
	return ""
}

// DecodeSecret builds the variant for t from its JSON form. An empty raw
// value yields an empty variant.
func DecodeSecret(t ItemType, raw []byte) (Secret, error) {
	s, err := NewSecret(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return s, nil
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return s, nil
}
