package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role determines how wide an actor's scope is.
type Role string

const (
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// Actor is the authenticated principal attached to a request.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// Scope returns the query scope for the actor: managers see every row,
// regular users only their own.
func (a Actor) Scope() Scope {
	if a.Role == RoleManager {
		return Scope{}
	}
	return ScopeFor(a.UserID)
}

type sessionContextKey struct{}

type actorContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
