// Package directory resolves identity ids to user records. The relay only
// reads identities at handshake time; management of the records themselves
// belongs to the surrounding shop backend and its operator tools.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no identity exists for the given key.
var ErrNotFound = errors.New("identity not found")

// Identity is a user record as seen by the relay. It carries no secrets.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	IsActive bool   `json:"isActive"`
}

// Directory looks up identities by id.
type Directory interface {
	FetchByID(ctx context.Context, id string) (Identity, error)
}
