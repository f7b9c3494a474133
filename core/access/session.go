package access

import (
	"context"
	"errors"
)

// ErrNoRoleRecord is returned by a RoleStore when a user has no row in the queried table.
var ErrNoRoleRecord = errors.New("no role record")

type (
	// Identity is what a credential proves: who the caller is.
	Identity struct {
		UserID string
		Email  string
	}

	// Session is the per-request view of the caller. The zero value is an unauthenticated session.
	Session struct {
		Authenticated bool   `json:"authenticated"`
		UserID        string `json:"user_id,omitempty"`
		Email         string `json:"email,omitempty"`
		Role          Role   `json:"role"`
	}

	// SessionResolver validates a credential (signed token, session cookie...).
	// A missing, invalid or expired credential yields (nil, nil). An error means the resolver itself failed.
	SessionResolver interface {
		Resolve(ctx context.Context, credential string) (*Identity, error)
	}

	// SessionResolverFunc adapts a function to a SessionResolver.
	SessionResolverFunc func(ctx context.Context, credential string) (*Identity, error)

	// RoleStore reads the role tables.
	RoleStore interface {
		// AdminRole returns the role recorded in the admins table, or ErrNoRoleRecord.
		AdminRole(ctx context.Context, userID string) (Role, error)
		// IsStudent tells whether the user has a row in the students table.
		IsStudent(ctx context.Context, userID string) (bool, error)
	}

	// RoleWriter records role assignments. Assigning RoleStudent removes any admin record.
	RoleWriter interface {
		AssignRole(ctx context.Context, userID string, role Role) error
	}
)

func (fn SessionResolverFunc) Resolve(ctx context.Context, credential string) (*Identity, error) {
	return fn(ctx, credential)
}

// Unauthenticated is the session of anyone the gate could not identify.
func Unauthenticated() Session {
	return Session{Role: RoleUnauthenticated}
}

// Home is where the session's holder lands.
func (s Session) Home() string {
	if !s.Authenticated {
		return LoginPage
	}
	return s.Role.Home()
}
