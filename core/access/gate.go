package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type (
	// GateObserver is notified of every authorization decision. It must not block.
	GateObserver func(sess Session, dec Decision)

	GateOption func(*Gate)

	Gate struct {
		resolver SessionResolver
		roles    RoleStore
		logger   core.Logger
		observer GateObserver
	}
)

func WithLogger(logger core.Logger) GateOption {
	return func(g *Gate) { g.logger = logger }
}

func WithGateObserver(obs GateObserver) GateOption {
	return func(g *Gate) { g.observer = obs }
}

func NewGate(resolver SessionResolver, roles RoleStore, opts ...GateOption) *Gate {
	g := &Gate{resolver: resolver, roles: roles}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResolveSession validates credential. Any failure gives an unauthenticated session (role not resolved yet).
func (g *Gate) ResolveSession(ctx context.Context, credential string) Session {
	if credential == "" {
		return Unauthenticated()
	}

	ident, err := g.resolver.Resolve(ctx, credential)
	if err != nil {
		g.warn("resolving session", err)
		return Unauthenticated()
	}
	if ident == nil || ident.UserID == "" {
		return Unauthenticated()
	}
	return Session{Authenticated: true, UserID: ident.UserID, Email: ident.Email}
}

// ResolveRole determines the effective role of userID.
// The admins table wins over the students table; a user found in neither is a student.
func (g *Gate) ResolveRole(ctx context.Context, userID string) (Role, error) {
	role, err := g.roles.AdminRole(ctx, userID)
	switch {
	case err == nil:
		if role.IsAdmin() {
			return role, nil
		}
		return RoleUnauthenticated, errors.Errorf("unexpected admin role %q", role)
	case errors.Cause(err) != ErrNoRoleRecord:
		return RoleUnauthenticated, errors.Wrap(err, "querying admins")
	}

	if _, err = g.roles.IsStudent(ctx, userID); err != nil {
		return RoleUnauthenticated, errors.Wrap(err, "querying students")
	}
	return RoleStudent, nil
}

// Resolve is ResolveSession followed by ResolveRole. A role lookup failure denies by default.
func (g *Gate) Resolve(ctx context.Context, credential string) Session {
	sess := g.ResolveSession(ctx, credential)
	if !sess.Authenticated {
		return sess
	}

	role, err := g.ResolveRole(ctx, sess.UserID)
	if err != nil {
		g.warn("resolving role", err, map[string]interface{}{"user_id": sess.UserID})
		return Unauthenticated()
	}
	sess.Role = role
	return sess
}

// Authorize matches sess against allowed. An empty allowed set admits any authenticated session.
func (g *Gate) Authorize(sess Session, allowed ...Role) Decision {
	dec := Authorize(sess, allowed...)
	if g.observer != nil {
		g.observer(sess, dec)
	}
	return dec
}

// Authorize is the pure decision behind Gate.Authorize.
func Authorize(sess Session, allowed ...Role) Decision {
	if !sess.Authenticated {
		return Decision{Kind: DenyUnauthenticated}
	}
	if len(allowed) == 0 || sess.Role.in(allowed) {
		return Decision{Kind: Allow}
	}
	return Decision{Kind: DenyRedirect, Target: sess.Role.Home()}
}

func (g *Gate) warn(msg string, err error, extras ...map[string]interface{}) {
	if g.logger == nil {
		return
	}
	args := []interface{}{err}
	for _, extra := range extras {
		args = append(args, extra)
	}
	g.logger.Warn(msg, args...)
}
