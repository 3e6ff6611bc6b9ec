package entity

import (
	"net/http"
	"time"

	"churchreg/lib/validate"
)

// Role is the coarse access level of a staff account. Credential checks and
// session handling happen upstream; this service only needs to know who the
// actor is and whether the role may dispose of registrations.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePastor Role = "pastor"
	RoleStaff  Role = "staff" // read-only: may list tokens and registrations
)

// Admin is a staff account resolved from the API bearer token.
type Admin struct {
	Username     string    `json:"username" bson:"username" validate:"required"`
	Name         string    `json:"name" bson:"name" validate:"omitempty"`
	Email        string    `json:"email" bson:"email" validate:"omitempty,email"`
	Token        string    `json:"token" bson:"token" validate:"required,min=1"`
	Role         Role      `json:"role" bson:"role" validate:"required,oneof=admin pastor staff"`
	Enabled      bool      `json:"enabled" bson:"enabled"`
	RegisteredAt time.Time `json:"registered_at" bson:"registered_at"`
}

func (a *Admin) Bind(_ *http.Request) error {
	return validate.Struct(a)
}

// CanDispose reports whether the actor may approve or reject registrations
// and manage tokens.
func (a *Admin) CanDispose() bool {
	return a.Role == RoleAdmin || a.Role == RolePastor
}
