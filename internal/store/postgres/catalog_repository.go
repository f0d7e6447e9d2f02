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
	"fmt"

	"github.com/fieldops/fieldops/internal/catalog"
)

// CatalogRepository loads the role table seeded by the migrations. The
// rows are read once at startup; the running process never writes them.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// LoadRoles retrieves every role row for catalog construction
func (r *CatalogRepository) LoadRoles(ctx context.Context) ([]catalog.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT name, rank,
			can_view_users, can_manage_users, can_assign_roles,
			can_view_inventory, can_manage_inventory,
			can_view_work_orders, can_manage_work_orders,
			can_view_reports, can_manage_settings
		FROM roles
		ORDER BY rank DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	var roles []catalog.Role
	for rows.Next() {
		var role catalog.Role
		if err := rows.Scan(
			&role.Name, &role.Rank,
			&role.Permissions.CanViewUsers, &role.Permissions.CanManageUsers, &role.Permissions.CanAssignRoles,
			&role.Permissions.CanViewInventory, &role.Permissions.CanManageInventory,
			&role.Permissions.CanViewWorkOrders, &role.Permissions.CanManageWorkOrders,
			&role.Permissions.CanViewReports, &role.Permissions.CanManageSettings,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}
