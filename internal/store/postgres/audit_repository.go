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
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldops/fieldops/internal/audit"
)

// AuditRepository implements audit.Store. The audit trail is append-only:
// this repository exposes no update or delete operations.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendAuditEvent appends a single event to the trail
func (r *AuditRepository) AppendAuditEvent(ctx context.Context, event audit.Event) error {
	var detail []byte
	if len(event.Detail) > 0 {
		var err error
		detail, err = json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO audit_events (id, event_type, tenant_id, actor_id, subject, status, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		event.ID, event.Type, event.TenantID, event.ActorID, event.Subject,
		event.Status, detail, event.IPAddress, event.UserAgent, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// ListByTenant retrieves events for a tenant within a time range, newest
// first. Intended for operator review, not for request-path decisions.
func (r *AuditRepository) ListByTenant(ctx context.Context, tenantID string, since time.Time, limit int) ([]audit.Event, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, event_type, tenant_id, actor_id, subject, status, detail, ip_address, user_agent, created_at
		FROM audit_events
		WHERE tenant_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		var detail []byte
		if err := rows.Scan(
			&event.ID, &event.Type, &event.TenantID, &event.ActorID, &event.Subject,
			&event.Status, &detail, &event.IPAddress, &event.UserAgent, &event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode audit detail: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}
