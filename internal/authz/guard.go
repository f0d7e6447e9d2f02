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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/catalog"
)

// Guard validates role grants and revocations. Every denial and every
// successful change produces exactly one audit event.
type Guard struct {
	catalog     *catalog.Catalog
	resolver    *Resolver
	assignments AssignmentRepository
	recorder    audit.Recorder
}

// NewGuard creates a new role assignment guard.
func NewGuard(cat *catalog.Catalog, resolver *Resolver, assignments AssignmentRepository, recorder audit.Recorder) *Guard {
	return &Guard{
		catalog:     cat,
		resolver:    resolver,
		assignments: assignments,
		recorder:    recorder,
	}
}

// CanAssign reports whether the actor may grant or revoke targetRole.
// The actor must hold a role carrying the assign-roles capability, and
// for a top-rank target role the actor must itself hold a top-rank role:
// the generic capability check can never satisfy the escalation rule on
// its own. Any resolution failure returns false, since an error
// determining the actor's roles must never read as permission granted.
func (g *Guard) CanAssign(ctx context.Context, tenantID, actorID, targetRole string) bool {
	target, err := g.catalog.Lookup(targetRole)
	if err != nil {
		return false
	}

	roles, err := g.resolver.RolesOf(ctx, tenantID, actorID)
	if err != nil {
		slog.WarnContext(ctx, "role resolution failed during assignment check, denying",
			slog.String("component", "authz"),
			slog.String("actor_id", actorID),
			slog.String("error", err.Error()),
		)
		return false
	}

	governing, ok := SelectGoverningRole(roles)
	if !ok || !governing.Permissions.CanAssignRoles {
		return false
	}

	if target.Rank >= g.catalog.TopRank() {
		// Escalation rule: only a peer at the top tier can mint
		// another top-tier holder.
		for _, role := range roles {
			if role.Rank >= g.catalog.TopRank() {
				return true
			}
		}
		return false
	}

	return true
}

// AssignRole grants roleName to the subject on behalf of the actor. A
// denial is a distinguishable ErrPermissionDenied result accompanied by a
// permission_denied audit event, never a silent no-op. The guard does not
// deduplicate grants; idempotency is the repository's concern.
func (g *Guard) AssignRole(ctx context.Context, tenantID, actorID, subjectID, roleName string) error {
	if !g.CanAssign(ctx, tenantID, actorID, roleName) {
		g.denied(ctx, tenantID, actorID, subjectID, roleName, "assign")
		return ErrPermissionDenied
	}

	assignment := &Assignment{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		PrincipalID: subjectID,
		RoleName:    roleName,
		GrantedBy:   actorID,
		GrantedAt:   time.Now(),
	}
	if err := g.assignments.Grant(ctx, assignment); err != nil {
		if errors.Is(err, ErrAssignmentAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to grant role: %w", err)
	}

	g.recorder.Record(ctx, audit.Event{
		Type:     audit.TypeRoleChange,
		TenantID: tenantID,
		ActorID:  actorID,
		Subject:  subjectID,
		Status:   "assigned",
		Detail:   map[string]any{"role": roleName},
	})
	return nil
}

// RemoveRole revokes roleName from the subject on behalf of the actor.
func (g *Guard) RemoveRole(ctx context.Context, tenantID, actorID, subjectID, roleName string) error {
	if !g.CanAssign(ctx, tenantID, actorID, roleName) {
		g.denied(ctx, tenantID, actorID, subjectID, roleName, "remove")
		return ErrPermissionDenied
	}

	if err := g.assignments.Revoke(ctx, tenantID, subjectID, roleName); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return err
		}
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	g.recorder.Record(ctx, audit.Event{
		Type:     audit.TypeRoleChange,
		TenantID: tenantID,
		ActorID:  actorID,
		Subject:  subjectID,
		Status:   "removed",
		Detail:   map[string]any{"role": roleName},
	})
	return nil
}

func (g *Guard) denied(ctx context.Context, tenantID, actorID, subjectID, roleName, operation string) {
	g.recorder.Record(ctx, audit.Event{
		Type:     audit.TypePermissionDenied,
		TenantID: tenantID,
		ActorID:  actorID,
		Subject:  subjectID,
		Status:   "denied",
		Detail: map[string]any{
			"role":      roleName,
			"operation": operation,
		},
	})
}
