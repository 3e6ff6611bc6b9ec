package entity

import (
	"net/http"
	"net/url"
	"time"

	"churchreg/lib/validate"
)

// UnlimitedUses disables the usage cap on a token.
const UnlimitedUses = -1

// TokenMetadata describes why a token was issued. Fixed fields on purpose:
// new attributes go through a schema change, not an open map.
type TokenMetadata struct {
	Purpose   string `json:"purpose" bson:"purpose" validate:"required,min=1,max=128"`
	Notes     string `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=512"`
	EventDate string `json:"event_date,omitempty" bson:"event_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Location  string `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=128"`
}

// RegistrationToken lets visitors self-register via a scannable link.
// Tokens are never deleted: they are only used up (current_uses increment)
// or deactivated. ConsumeTokenUse atomically increments CurrentUses while
// checking it against MaxUses, so the cap holds under concurrent submits.
type RegistrationToken struct {
	Id          string        `json:"id" bson:"id"`
	Token       string        `json:"token" bson:"token"`
	CreatedBy   string        `json:"created_by" bson:"created_by"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	MaxUses     int           `json:"max_uses" bson:"max_uses"`
	CurrentUses int           `json:"current_uses" bson:"current_uses"`
	IsActive    bool          `json:"is_active" bson:"is_active"`
	Metadata    TokenMetadata `json:"metadata" bson:"metadata"`
}

func (t *RegistrationToken) IsExpired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return now.After(*t.ExpiresAt)
}

func (t *RegistrationToken) IsExhausted() bool {
	if t.MaxUses == UnlimitedUses {
		return false
	}
	return t.CurrentUses >= t.MaxUses
}

// UsesLeft returns the remaining capacity, or UnlimitedUses for uncapped tokens.
func (t *RegistrationToken) UsesLeft() int {
	if t.MaxUses == UnlimitedUses {
		return UnlimitedUses
	}
	left := t.MaxUses - t.CurrentUses
	if left < 0 {
		return 0
	}
	return left
}

// EntryURL builds the link encoded into the printed QR code. The token code
// is plain alphanumeric, so the query value needs no escaping in practice;
// url.Values is still used to keep the base path handling honest.
func (t *RegistrationToken) EntryURL(base string) string {
	q := url.Values{}
	q.Set("token", t.Token)
	return base + "/register/qr?" + q.Encode()
}

// CreateTokenParams is the admin request to mint a new token.
// MaxUses left at zero means single use; UnlimitedUses (-1) removes the cap.
type CreateTokenParams struct {
	Purpose   string     `json:"purpose" validate:"required,min=1,max=128"`
	Notes     string     `json:"notes,omitempty" validate:"omitempty,max=512"`
	EventDate string     `json:"event_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Location  string     `json:"location,omitempty" validate:"omitempty,max=128"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxUses   int        `json:"max_uses,omitempty" validate:"omitempty,min=-1"`
}

func (p *CreateTokenParams) Bind(_ *http.Request) error {
	if p.MaxUses == 0 {
		p.MaxUses = 1
	}
	return validate.Struct(p)
}

// TokenCheck is the read-only validation verdict returned at form load.
type TokenCheck struct {
	Valid  bool               `json:"valid"`
	Reason ReasonCode         `json:"reason,omitempty"`
	Token  *RegistrationToken `json:"token,omitempty"`
}
