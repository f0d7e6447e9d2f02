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

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/authz"
	"github.com/fieldops/fieldops/internal/catalog"
)

const (
	EnvBootstrapOwnerEmail    = "FIELDOPS_BOOTSTRAP_OWNER_EMAIL"
	EnvBootstrapOwnerTenantID = "FIELDOPS_BOOTSTRAP_OWNER_TENANT_ID"
)

// ActorBootstrap marks grants performed by the startup bootstrap rather
// than a human actor.
const ActorBootstrap = "system:bootstrap"

// BootstrapService grants the initial owner role. The assignment guard
// requires an owner to mint an owner, so the very first one has to come
// from outside the guard.
type BootstrapService struct {
	identityService *Service
	assignments     authz.AssignmentRepository
	recorder        audit.Recorder
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(
	identityService *Service,
	assignments authz.AssignmentRepository,
	recorder audit.Recorder,
) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		assignments:     assignments,
		recorder:        recorder,
	}
}

// Bootstrap grants the owner role to the configured user if they do not
// already hold it. A missing configuration means nothing to do; a
// configured user that cannot be found is an error, since a deployment
// that asked for a bootstrap owner should get one.
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	email := os.Getenv(EnvBootstrapOwnerEmail)
	tenantID := os.Getenv(EnvBootstrapOwnerTenantID)

	if email == "" {
		return nil
	}
	if tenantID == "" {
		return fmt.Errorf("%s is set but %s is empty", EnvBootstrapOwnerEmail, EnvBootstrapOwnerTenantID)
	}

	user, err := s.identityService.GetByEmail(ctx, tenantID, email)
	if err != nil {
		return fmt.Errorf("bootstrap owner not found (tenant: %s, email: %s): %w", tenantID, email, err)
	}

	held, err := s.assignments.ListForPrincipal(ctx, tenantID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing assignments: %w", err)
	}
	for _, a := range held {
		if a.RoleName == catalog.RoleOwner {
			return nil
		}
	}

	assignment := &authz.Assignment{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		PrincipalID: user.ID,
		RoleName:    catalog.RoleOwner,
		GrantedBy:   ActorBootstrap,
		GrantedAt:   time.Now(),
	}
	if err := s.assignments.Grant(ctx, assignment); err != nil {
		return fmt.Errorf("failed to grant owner role during bootstrap: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{
		Type:     audit.TypeRoleChange,
		TenantID: tenantID,
		ActorID:  ActorBootstrap,
		Subject:  user.ID,
		Status:   "assigned",
		Detail:   map[string]any{"role": catalog.RoleOwner},
	})

	slog.InfoContext(ctx, "bootstrapped initial owner",
		slog.String("component", "identity"),
		slog.String("tenant_id", tenantID),
		slog.String("email", email),
	)
	return nil
}
