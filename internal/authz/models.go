package authz

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrAssignmentNotFound      = errors.New("assignment not found")
	ErrAssignmentAlreadyExists = errors.New("assignment already exists")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrResolutionFailed        = errors.New("role resolution failed")
)

// Assignment represents a role granted to a principal.
type Assignment struct {
	ID          string
	TenantID    string
	PrincipalID string
	RoleName    string
	GrantedBy   string
	GrantedAt   time.Time
}

// AssignmentRepository defines the persistence-gateway surface for role
// assignments.
type AssignmentRepository interface {
	// Grant inserts a role assignment.
	Grant(ctx context.Context, assignment *Assignment) error

	// Revoke removes a role assignment. Returns ErrAssignmentNotFound
	// when nothing was revoked.
	Revoke(ctx context.Context, tenantID, principalID, roleName string) error

	// ListForPrincipal retrieves all assignments held by a principal.
	ListForPrincipal(ctx context.Context, tenantID, principalID string) ([]*Assignment, error)
}
