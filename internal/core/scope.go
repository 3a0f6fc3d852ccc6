package core

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleBuyer              Role = "buyer"
	RoleSupplier           Role = "supplier"
	RoleProcurementManager Role = "procurement_manager"
	RoleApprover           Role = "approver"
	RoleAdmin              Role = "admin"
)

// Scope is the tenant execution context of a single request or job. It is
// produced exactly once by the auth/middleware layer and threaded through
// every repository and service call. Identity and project membership are
// already verified by the time a Scope exists - the layers below only
// enforce that no data crosses the project boundary.
//
// Scope is a value type. Never mutate one; derive a new one instead.
type Scope struct {
	OrganizationID uuid.UUID
	ProjectID      uuid.UUID
	UserID         string
	Role           Role

	// AdminOverride widens repository access beyond the single project.
	// It is never set implicitly - use WithAdminOverride, which forces a
	// justification that ends up in the audit log of every widened call.
	AdminOverride         bool
	OverrideJustification string
}

func NewScope(organizationID, projectID uuid.UUID, userID string, role Role) Scope {
	return Scope{
		OrganizationID: organizationID,
		ProjectID:      projectID,
		UserID:         userID,
		Role:           role,
	}
}

// WithAdminOverride returns a copy of the scope with the audited override
// flag set. The receiver is left untouched.
func (s Scope) WithAdminOverride(justification string) Scope {
	s.AdminOverride = true
	s.OverrideJustification = justification
	return s
}
