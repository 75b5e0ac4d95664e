// Package identity holds the caller identity shared by the auth, user and appointment packages.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RolePatient    Role = "paciente"
	RoleSpecialist Role = "especialista"
	RoleAdmin      Role = "administrador"
)

var ErrUnknownRole = errors.New("unknown role")

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RoleSpecialist, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Session is the authenticated caller. Services receive it explicitly.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Is(r Role) bool { return s.Role == r }

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
