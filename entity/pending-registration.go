package entity

import (
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/biter777/countries"

	"churchreg/lib/validate"
)

// ApprovalStatus is the disposition of a pending registration.
// Pending is the only non-terminal state; a record moves out of it exactly
// once and never comes back.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// MemberStatus is what the visitor claims to be on the form.
type MemberStatus string

const (
	MemberStatusMember  MemberStatus = "member"
	MemberStatusVisitor MemberStatus = "visitor"
)

type Address struct {
	Street     string `json:"street,omitempty" bson:"street,omitempty" validate:"omitempty,max=128"`
	City       string `json:"city,omitempty" bson:"city,omitempty" validate:"omitempty,max=64"`
	Province   string `json:"province,omitempty" bson:"province,omitempty" validate:"omitempty,max=64"`
	PostalCode string `json:"postal_code,omitempty" bson:"postal_code,omitempty" validate:"omitempty,max=16"`
	Country    string `json:"country,omitempty" bson:"country,omitempty" validate:"omitempty,max=64"`
}

// NormalizeCountry replaces a recognized country name with its ISO alpha-2
// code so the directory does not collect "Indonesia", "indonesia" and "ID"
// as three different values. Unrecognized input is stored as typed.
func (a *Address) NormalizeCountry() {
	if a == nil || a.Country == "" {
		return
	}
	if c := countries.ByName(a.Country); c != countries.Unknown {
		a.Country = c.Alpha2()
	}
}

// RegistrationForm is the public submission payload.
type RegistrationForm struct {
	Token        string       `json:"token" validate:"required,alphanum,max=64"`
	Name         string       `json:"name" validate:"required,min=1,max=128"`
	Email        string       `json:"email,omitempty" validate:"omitempty,email,max=128"`
	Phone        string       `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	BirthDate    string       `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender       string       `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	MemberStatus MemberStatus `json:"member_status,omitempty" validate:"omitempty,oneof=member visitor"`
	Address      *Address     `json:"address,omitempty"`
}

func (f *RegistrationForm) Bind(_ *http.Request) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.MemberStatus == "" {
		f.MemberStatus = MemberStatusVisitor
	}
	f.Address.NormalizeCountry()
	return validate.Struct(f)
}

// PendingRegistration is the audit-trail record of one form submission.
// Records are never deleted; disposition mutates them exactly once.
// The normalized contact fields are written at submission time so duplicate
// lookups stay equality queries on indexed fields.
type PendingRegistration struct {
	Id              string         `json:"id" bson:"id"`
	TokenId         string         `json:"token_id" bson:"token_id"`
	Name            string         `json:"name" bson:"name"`
	Email           string         `json:"email,omitempty" bson:"email,omitempty"`
	Phone           string         `json:"phone,omitempty" bson:"phone,omitempty"`
	NormalizedEmail string         `json:"-" bson:"normalized_email,omitempty"`
	NormalizedPhone string         `json:"-" bson:"normalized_phone,omitempty"`
	BirthDate       string         `json:"birth_date,omitempty" bson:"birth_date,omitempty"`
	Gender          string         `json:"gender,omitempty" bson:"gender,omitempty"`
	Address         *Address       `json:"address,omitempty" bson:"address,omitempty"`
	MemberStatus    MemberStatus   `json:"member_status" bson:"member_status"`
	SubmittedAt     time.Time      `json:"submitted_at" bson:"submitted_at"`
	ApprovalStatus  ApprovalStatus `json:"approval_status" bson:"approval_status"`
	ApprovedBy      string         `json:"approved_by,omitempty" bson:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty" bson:"approved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	MemberId        string         `json:"member_id,omitempty" bson:"member_id,omitempty"`
}

// NormalizeEmail lowercases and trims an email for duplicate comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits, so "+62 812-3456" and
// "0628123456" style variants compare on their digit sequence only.
func NormalizePhone(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// DuplicateSource tells which collection a duplicate candidate came from.
type DuplicateSource string

const (
	SourceRegistration DuplicateSource = "registration"
	SourceMember       DuplicateSource = "member"
)

// DuplicateCandidate is advisory only: it never blocks a submission or an
// approval, it is surfaced to the reviewer as a warning.
type DuplicateCandidate struct {
	Source DuplicateSource `json:"source" bson:"source"`
	Id     string          `json:"id" bson:"id"`
	Name   string          `json:"name" bson:"name"`
	Email  string          `json:"email,omitempty" bson:"email,omitempty"`
	Phone  string          `json:"phone,omitempty" bson:"phone,omitempty"`
}
