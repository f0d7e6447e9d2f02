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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRepository is an in-memory session store for tests.
type MockRepository struct {
	sessions map[string]*Session
}

func NewMockRepository() *MockRepository {
	return &MockRepository{sessions: make(map[string]*Session)}
}

func (m *MockRepository) Create(_ context.Context, session *Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *MockRepository) Get(_ context.Context, sessionID string) (*Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *MockRepository) Update(_ context.Context, session *Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *MockRepository) Delete(_ context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func (m *MockRepository) DeleteByUserID(_ context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MockRepository) DeleteExpired(_ context.Context) error {
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
		}
	}
	return nil
}

// TestPurpose: Validates session creation and retrieval round trip.
// Scope: Unit Test
// Security: Session IDs are opaque random values scoped to the tenant
// Expected: Create returns a session Get can load, scoped to tenant and user.
// Test Case ID: SES-01
func TestSession_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	svc := NewService(repo, 24*time.Hour, 30*time.Minute)

	created, err := svc.Create(ctx, "tenant-1", "user-1", "203.0.113.7", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.NotEqual(t, "user-1", created.ID, "session ID must be opaque")

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, "user-1", got.UserID)
}

// TestPurpose: Validates that expired sessions are deleted on access.
// Scope: Unit Test
// Security: Stale sessions must not authenticate requests
// Expected: Get returns ErrSessionExpired and removes the session.
// Test Case ID: SES-02
func TestSession_ExpiredIsDeletedOnGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	svc := NewService(repo, 24*time.Hour, 30*time.Minute)

	created, err := svc.Create(ctx, "tenant-1", "user-1", "", "")
	require.NoError(t, err)
	created.ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound, "SES-02: expired session must be removed")
}

// TestPurpose: Validates the idle timeout and that Touch slides the window.
// Scope: Unit Test
// Security: Abandoned sessions expire even before absolute lifetime
// Expected: An idle session is rejected; a touched one is not.
// Test Case ID: SES-03
func TestSession_IdleTimeoutAndTouch(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	svc := NewService(repo, 24*time.Hour, 30*time.Minute)

	active, err := svc.Create(ctx, "tenant-1", "user-1", "", "")
	require.NoError(t, err)
	active.LastSeenAt = time.Now().Add(-29 * time.Minute)
	require.NoError(t, svc.Touch(ctx, active))

	got, err := svc.Get(ctx, active.ID)
	require.NoError(t, err, "SES-03: touched session must stay valid")
	assert.WithinDuration(t, time.Now(), got.LastSeenAt, time.Minute)

	idle, err := svc.Create(ctx, "tenant-1", "user-2", "", "")
	require.NoError(t, err)
	idle.LastSeenAt = time.Now().Add(-31 * time.Minute)

	_, err = svc.Get(ctx, idle.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

// TestPurpose: Validates that DestroyAll removes every session of a user
// and nothing else.
// Scope: Unit Test
// Security: Password change must invalidate all existing sessions
// Expected: user-1 sessions gone, user-2 session intact.
// Test Case ID: SES-04
func TestSession_DestroyAll(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	svc := NewService(repo, 24*time.Hour, 30*time.Minute)

	s1, _ := svc.Create(ctx, "tenant-1", "user-1", "", "")
	s2, _ := svc.Create(ctx, "tenant-1", "user-1", "", "")
	other, _ := svc.Create(ctx, "tenant-1", "user-2", "", "")

	require.NoError(t, svc.DestroyAll(ctx, "user-1"))

	_, err := svc.Get(ctx, s1.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(ctx, s2.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(ctx, other.ID)
	assert.NoError(t, err, "SES-04: other users keep their sessions")
}
