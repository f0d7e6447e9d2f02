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
	"errors"
	"testing"
	"time"
)

// MockUserRepository is a simple in-memory implementation of UserRepository
type MockUserRepository struct {
	users       map[string]*User
	credentials map[string]*Credentials

	// failWith, when set, is returned by every read as if the
	// backing store were unreachable.
	failWith error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:       make(map[string]*User),
		credentials: make(map[string]*Credentials),
	}
}

func (m *MockUserRepository) Create(_ context.Context, user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) AddCredentials(_ context.Context, credentials *Credentials) error {
	m.credentials[credentials.UserID] = credentials
	return nil
}

func (m *MockUserRepository) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserRepository) GetByEmail(_ context.Context, tenantID, email string) (*User, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockUserRepository) Update(_ context.Context, user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) UpdateLockout(_ context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m *MockUserRepository) Delete(_ context.Context, id string) error {
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) GetCredentials(_ context.Context, userID string) (*Credentials, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	c, ok := m.credentials[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return c, nil
}

func (m *MockUserRepository) UpdatePassword(_ context.Context, userID string, passwordHash string) error {
	c, ok := m.credentials[userID]
	if !ok {
		return ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

// TestPurpose: Validates the credential verification flow, including success, failure, and account lockout after multiple failed attempts.
// Scope: Unit Test
// Security: Authentication mechanisms and Brute-force protection (lockout)
// Expected: Successful verification for correct credentials, error for wrong credentials, and account lockout after the configured threshold.
// Test Case ID: IDN-01
func TestIdentity_Service_VerifyCredentials(t *testing.T) {
	repo := NewMockUserRepository()
	hasher := NewPasswordHasher(65536, 3, 4, 16, 32)
	s := NewService(repo, hasher, 3, 5*time.Minute)

	ctx := context.Background()
	tenantID := "tenant-1"
	email := "test@example.com"
	password := "SecurePassword123"

	// 1. Provision user
	user, err := s.ProvisionIdentity(ctx, tenantID, email, Profile{FullName: "Test User"})
	if err != nil {
		t.Fatalf("failed to provision: %v", err)
	}

	// 2. Add password
	err = s.AddPassword(ctx, user.ID, password)
	if err != nil {
		t.Fatalf("failed to add password: %v", err)
	}

	// 3. Successful verification
	verified, err := s.VerifyCredentials(ctx, tenantID, email, password)
	if err != nil {
		t.Fatalf("expected success, got err: %v", err)
	}
	if verified.ID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, verified.ID)
	}

	// 4. Failed verification (wrong password)
	_, err = s.VerifyCredentials(ctx, tenantID, email, "WrongPassword")
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	// 5. Account lockout
	s.VerifyCredentials(ctx, tenantID, email, "WrongPassword")          // Total failed: 2
	_, err = s.VerifyCredentials(ctx, tenantID, email, "WrongPassword") // Total failed: 3 (threshold met)
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for 3rd failed attempt, got %v", err)
	}

	// 4th attempt should be locked out even with the right password
	_, err = s.VerifyCredentials(ctx, tenantID, email, password)
	if err != ErrAccountLocked {
		t.Errorf("expected ErrAccountLocked, got %v", err)
	}
}

// TestPurpose: Validates that provisioning an identity fails if a user with the same email already exists in the same tenant.
// Scope: Unit Test
// Security: Data Integrity and Unique Constraint Enforcement
// Expected: ErrUserAlreadyExists when email is already registered in the same tenant.
// Test Case ID: IDN-02
func TestIdentity_Service_ProvisionIdentity_Conflict(t *testing.T) {
	repo := NewMockUserRepository()
	hasher := NewPasswordHasher(65536, 3, 4, 16, 32)
	s := NewService(repo, hasher, 3, 5*time.Minute)

	ctx := context.Background()
	tenantID := "tenant-1"
	email := "conflict@example.com"

	s.ProvisionIdentity(ctx, tenantID, email, Profile{})
	_, err := s.ProvisionIdentity(ctx, tenantID, email, Profile{})
	if err != ErrUserAlreadyExists {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
}

// TestPurpose: Validates that a successful verification clears prior failed-attempt counters.
// Scope: Unit Test
// Security: Legitimate users must not inherit penalties from their own past failures.
// Expected: FailedLoginAttempts resets to zero after a successful login below the lockout threshold.
// Test Case ID: IDN-03
func TestIdentity_Service_LockoutCounterResets(t *testing.T) {
	repo := NewMockUserRepository()
	hasher := NewPasswordHasher(65536, 3, 4, 16, 32)
	s := NewService(repo, hasher, 5, 5*time.Minute)

	ctx := context.Background()
	tenantID := "tenant-1"
	email := "reset@example.com"
	password := "SecurePassword123"

	user, err := s.ProvisionIdentity(ctx, tenantID, email, Profile{})
	if err != nil {
		t.Fatalf("failed to provision: %v", err)
	}
	if err := s.AddPassword(ctx, user.ID, password); err != nil {
		t.Fatalf("failed to add password: %v", err)
	}

	s.VerifyCredentials(ctx, tenantID, email, "WrongPassword")
	s.VerifyCredentials(ctx, tenantID, email, "WrongPassword")
	if repo.users[user.ID].FailedLoginAttempts != 2 {
		t.Fatalf("expected 2 failed attempts, got %d", repo.users[user.ID].FailedLoginAttempts)
	}

	if _, err := s.VerifyCredentials(ctx, tenantID, email, password); err != nil {
		t.Fatalf("expected success, got err: %v", err)
	}
	if repo.users[user.ID].FailedLoginAttempts != 0 {
		t.Errorf("expected counter reset, got %d", repo.users[user.ID].FailedLoginAttempts)
	}
}

// TestPurpose: Validates that a storage failure during verification is
// propagated as an infrastructure error, not misreported as a wrong password.
// Scope: Unit Test
// Security: An outage must be auditable as category "error", and a
// verification that could not run must never read as a credential mismatch.
// Expected: VerifyCredentials wraps and returns the repository error;
// ErrInvalidCredentials only for a genuinely unknown user.
// Test Case ID: IDN-04
func TestIdentity_Service_VerifyCredentials_StorageFailure(t *testing.T) {
	repo := NewMockUserRepository()
	hasher := NewPasswordHasher(65536, 3, 4, 16, 32)
	s := NewService(repo, hasher, 3, 5*time.Minute)

	ctx := context.Background()
	tenantID := "tenant-1"
	email := "outage@example.com"

	user, err := s.ProvisionIdentity(ctx, tenantID, email, Profile{})
	if err != nil {
		t.Fatalf("failed to provision: %v", err)
	}
	if err := s.AddPassword(ctx, user.ID, "SecurePassword123"); err != nil {
		t.Fatalf("failed to add password: %v", err)
	}

	// Connection-level failure
	repo.failWith = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	_, err = s.VerifyCredentials(ctx, tenantID, email, "SecurePassword123")
	if err == nil {
		t.Fatal("expected an error from a failing store")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("storage failure must not surface as ErrInvalidCredentials: %v", err)
	}
	if !errors.Is(err, repo.failWith) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}

	// Timeout from the caller's bounded context
	repo.failWith = context.DeadlineExceeded
	_, err = s.VerifyCredentials(ctx, tenantID, email, "SecurePassword123")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded to propagate, got %v", err)
	}

	// A missing user is still a credential mismatch, never an infra error
	repo.failWith = nil
	_, err = s.VerifyCredentials(ctx, tenantID, "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
