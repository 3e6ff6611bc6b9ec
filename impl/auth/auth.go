package auth

import (
	"fmt"

	"churchreg/entity"
)

type Database interface {
	GetAdmin(token string) (*entity.Admin, error)
}

// Auth resolves API bearer tokens to staff accounts. Credential issuance and
// session handling live upstream; this only answers "who is calling".
type Auth struct {
	db Database
}

func New(db Database) *Auth {
	return &Auth{db: db}
}

func (a Auth) ActorByToken(token string) (*entity.Admin, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return a.db.GetAdmin(token)
}
