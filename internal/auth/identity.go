// Package auth provides the signed-in identity: a deterministic identity per
// e-mail address, signed session tokens, and a local session that notifies
// listeners when the user signs in or out.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/daybook/internal/models"
)

var (
	// ErrNotSignedIn is returned by operations that need an identity.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrInvalidToken is returned for malformed, forged or expired session tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrInvalidEmail is returned when sign-in is attempted with a malformed address.
	ErrInvalidEmail = errors.New("invalid e-mail address")
)

var uidNamespace = uuid.MustParse("6f1d4c1e-3b7a-5c2e-9a57-1f0f6d0b7d21")

// NewIdentity derives the identity for an e-mail address. The uid is stable
// for a given address regardless of case.
func NewIdentity(email, displayName string) (models.Identity, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return models.Identity{}, ErrInvalidEmail
	}
	key := strings.ToLower(addr.Address)
	return models.Identity{
		UID:         uuid.NewSHA1(uidNamespace, []byte(key)).String(),
		Email:       key,
		DisplayName: strings.TrimSpace(displayName),
	}, nil
}

type ctxKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached by WithIdentity, or nil.
func FromContext(ctx context.Context) *models.Identity {
	id, ok := ctx.Value(ctxKey{}).(models.Identity)
	if !ok {
		return nil
	}
	return &id
}
