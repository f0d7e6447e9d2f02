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

package authz

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldops/internal/catalog"
)

// Resolver computes the effective permission set for a principal from its
// role assignments and the permission catalog.
type Resolver struct {
	catalog     *catalog.Catalog
	assignments AssignmentRepository
}

// NewResolver creates a new role resolver.
func NewResolver(cat *catalog.Catalog, assignments AssignmentRepository) *Resolver {
	return &Resolver{
		catalog:     cat,
		assignments: assignments,
	}
}

// RolesOf retrieves the catalog entries for every role the principal
// holds. An assignment naming a role absent from the catalog is a
// configuration error, not a user error: resolution fails rather than
// silently treating the role as powerless.
func (r *Resolver) RolesOf(ctx context.Context, tenantID, principalID string) ([]catalog.Role, error) {
	held, err := r.assignments.ListForPrincipal(ctx, tenantID, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	roles := make([]catalog.Role, 0, len(held))
	for _, a := range held {
		role, err := r.catalog.Lookup(a.RoleName)
		if err != nil {
			return nil, fmt.Errorf("%w: assignment %s references %v", ErrResolutionFailed, a.ID, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// SelectGoverningRole picks the single role whose permission record
// governs the principal: the highest rank wins, and ties break to the
// lexically smallest role name so resolution stays deterministic.
// Permissions of lower-ranked roles are deliberately not merged in; see
// EffectivePermissions.
func SelectGoverningRole(roles []catalog.Role) (catalog.Role, bool) {
	if len(roles) == 0 {
		return catalog.Role{}, false
	}

	governing := roles[0]
	for _, role := range roles[1:] {
		if role.Rank > governing.Rank {
			governing = role
			continue
		}
		if role.Rank == governing.Rank && role.Name < governing.Name {
			governing = role
		}
	}
	return governing, true
}

// EffectivePermissions returns the capability record enforced for the
// principal on this request. A principal with no roles gets the catalog's
// default (customer) tier. Otherwise the governing role's record is
// returned exactly: holding two disjoint mid-tier roles does not grant the
// union of both, which keeps permissions from accreting as principals are
// shifted between tiers.
func (r *Resolver) EffectivePermissions(ctx context.Context, tenantID, principalID string) (catalog.PermissionSet, error) {
	roles, err := r.RolesOf(ctx, tenantID, principalID)
	if err != nil {
		return catalog.PermissionSet{}, err
	}

	governing, ok := SelectGoverningRole(roles)
	if !ok {
		return r.catalog.DefaultPermissions(), nil
	}
	return governing.Permissions, nil
}

// HasPermission checks a single named capability for the principal.
func (r *Resolver) HasPermission(ctx context.Context, tenantID, principalID, capability string) (bool, error) {
	perms, err := r.EffectivePermissions(ctx, tenantID, principalID)
	if err != nil {
		return false, err
	}
	return perms.Has(capability), nil
}
