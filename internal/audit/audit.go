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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeLoginAttempt       = "login_attempt"
	TypeRoleChange         = "role_change"
	TypePermissionDenied   = "permission_denied"
	TypeSuspiciousActivity = "suspicious_activity"
)

// Statuses carried by login_attempt events.
const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusRateLimited = "rate_limited"
	StatusError       = "error"
)

// ActorUnknown is recorded when the acting principal is not established
// (for example a failed login for an address that maps to no account).
const ActorUnknown = "unknown"

// Event is a security-relevant decision. Events are append-only: nothing
// in this package mutates or reorders them after Record, and the recorder
// assigns the timestamp itself so callers cannot forge audit timelines.
type Event struct {
	ID        string
	Type      string
	TenantID  string
	ActorID   string
	Subject   string
	Status    string
	Detail    map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Recorder appends audit events. Implementations must never raise on a
// recording failure: audit emission is best-effort relative to the
// security decision it describes.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Store is the persistence-gateway surface the StoreRecorder appends
// through.
type Store interface {
	AppendAuditEvent(ctx context.Context, event Event) error
}

// StoreRecorder appends events to a durable store and mirrors them to the
// structured log. Write failures are logged for the surrounding
// operational layer to alert on; they are never returned.
type StoreRecorder struct {
	store Store
	slog  *SlogRecorder
}

// NewStoreRecorder creates a store-backed recorder.
func NewStoreRecorder(store Store) *StoreRecorder {
	return &StoreRecorder{
		store: store,
		slog:  NewSlogRecorder(),
	}
}

// Record appends the event. Timestamp and ID are assigned here, and the
// actor defaults to "unknown" when empty.
func (r *StoreRecorder) Record(ctx context.Context, event Event) {
	stamp(&event)
	redact(event.Detail)

	r.slog.record(ctx, event)

	if err := r.store.AppendAuditEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "audit append failed",
			slog.String("component", "audit"),
			slog.String("audit_type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

// SlogRecorder emits events through slog only. Used standalone in tests
// and wherever no durable store is wired.
type SlogRecorder struct{}

// NewSlogRecorder creates a new log-only recorder.
func NewSlogRecorder() *SlogRecorder {
	return &SlogRecorder{}
}

// Record logs the event at INFO with the "audit" component.
func (r *SlogRecorder) Record(ctx context.Context, event Event) {
	stamp(&event)
	r.record(ctx, event)
}

func (r *SlogRecorder) record(ctx context.Context, event Event) {
	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("tenant_id", event.TenantID),
		slog.String("actor_id", event.ActorID),
		slog.String("subject", event.Subject),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.Status != "" {
		attrs = append(attrs, slog.String("status", event.Status))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Detail) > 0 {
		group := []any{}
		for k, v := range event.Detail {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("detail", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// stamp fills recorder-owned fields. Caller-supplied timestamps are
// intentionally overwritten.
func stamp(event *Event) {
	event.Timestamp = time.Now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ActorID == "" {
		event.ActorID = ActorUnknown
	}
}

// redact overwrites secret-looking detail values in place.
func redact(detail map[string]any) {
	for k := range detail {
		if isSecret(k) {
			detail[k] = "[REDACTED]"
		}
	}
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	k := strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "hash", "credential", "authorization"}
	for _, s := range secrets {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
