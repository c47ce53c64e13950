// Package authz defines the authorization collaborator contract for
// administrator-gated operations.
package authz

import "github.com/google/uuid"

// Authorizer answers whether a caller may perform administrative
// operations: claim adjudication, excess-fund withdrawal, and parameter
// updates.
type Authorizer interface {
	IsAdministrator(caller uuid.UUID) bool
}

// Static authorizes a fixed set of administrator identities, typically
// loaded from configuration at startup.
type Static struct {
	admins map[uuid.UUID]struct{}
}

func NewStatic(admins ...uuid.UUID) *Static {
	set := make(map[uuid.UUID]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	return &Static{admins: set}
}

func (s *Static) IsAdministrator(caller uuid.UUID) bool {
	_, ok := s.admins[caller]
	return ok
}
