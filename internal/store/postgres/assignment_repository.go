// Copyright 2026 The FieldOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldops/fieldops/internal/authz"
)

// AssignmentRepository implements authz.AssignmentRepository
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new role assignment repository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Grant inserts a role assignment. The unique constraint on
// (tenant_id, principal_id, role_name) makes re-granting a held role a
// distinguishable error rather than a duplicate row.
func (r *AssignmentRepository) Grant(ctx context.Context, assignment *authz.Assignment) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_assignments (id, tenant_id, principal_id, role_name, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		assignment.ID, assignment.TenantID, assignment.PrincipalID,
		assignment.RoleName, assignment.GrantedBy, assignment.GrantedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return authz.ErrAssignmentAlreadyExists
		}
		return fmt.Errorf("failed to grant role: %w", err)
	}

	return nil
}

// Revoke removes a role assignment
func (r *AssignmentRepository) Revoke(ctx context.Context, tenantID, principalID, roleName string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM role_assignments
		WHERE tenant_id = $1 AND principal_id = $2 AND role_name = $3
	`, tenantID, principalID, roleName)

	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrAssignmentNotFound
	}

	return nil
}

// ListForPrincipal retrieves all assignments held by a principal
func (r *AssignmentRepository) ListForPrincipal(ctx context.Context, tenantID, principalID string) ([]*authz.Assignment, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, principal_id, role_name, granted_by, granted_at
		FROM role_assignments
		WHERE tenant_id = $1 AND principal_id = $2
		ORDER BY granted_at
	`, tenantID, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*authz.Assignment
	for rows.Next() {
		var a authz.Assignment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.PrincipalID, &a.RoleName, &a.GrantedBy, &a.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}

	return assignments, nil
}
