package shared

import "github.com/google/uuid"

// Scope restricts queries to rows owned by a single user. A zero Scope is
// unrestricted and returns every row; managers query with a zero Scope.
type Scope struct {
	OwnerID *uuid.UUID
}

// Restricted reports whether the scope filters by owner.
func (s Scope) Restricted() bool {
	return s.OwnerID != nil
}

// ScopeFor returns the scope owned by the given user.
func ScopeFor(userID uuid.UUID) Scope {
	return Scope{OwnerID: &userID}
}
