// Package session issues the opaque token that partitions provisioning
// requests and project listings for one authenticated session.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Token is an opaque per-session identifier. It is never persisted.
type Token string

func (t Token) String() string { return string(t) }

// Identity holds the token for the lifetime of an authenticated session.
type Identity struct {
	token Token
}

// Issue creates a new identity. UUIDv7 combines a millisecond timestamp with
// random bits, which is enough to keep sessions apart.
func Issue() (Identity, error) {
	id, err := newToken()
	if err != nil {
		return Identity{}, fmt.Errorf("session: issue token: %w", err)
	}
	return Identity{token: Token(id.String())}, nil
}

// FromToken wraps an existing token, e.g. one supplied on the command line.
func FromToken(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, errors.New("session: token must not be empty")
	}
	return Identity{token: Token(token)}, nil
}

// Token returns the session token.
func (i Identity) Token() Token {
	return i.token
}

// Valid reports whether the identity carries a token.
func (i Identity) Valid() bool {
	return i.token != ""
}

var newToken = func() (uuid.UUID, error) {
	return uuid.NewV7()
}
