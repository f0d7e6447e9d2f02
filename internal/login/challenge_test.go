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

package login

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the challenge token round trip: an issued token
// verifies back to its throttle key.
// Scope: Unit Test
// Expected: Verify returns the key Issue was called with.
// Test Case ID: CHL-01
func TestChallengeIssuer_RoundTrip(t *testing.T) {
	issuer := NewChallengeIssuer([]byte("secret-1"), 5*time.Minute)

	token, err := issuer.Issue("a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	key, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", key)
}

// TestPurpose: Validates expiry: a token past its TTL is rejected with
// the expiry sentinel.
// Scope: Unit Test
// Security: Challenge tokens must not be replayable indefinitely
// Expected: ErrChallengeExpired after the TTL elapses.
// Test Case ID: CHL-02
func TestChallengeIssuer_Expiry(t *testing.T) {
	issuer := NewChallengeIssuer([]byte("secret-1"), time.Minute)
	base := time.Now()
	issuer.now = func() time.Time { return base }

	token, err := issuer.Issue("a@x.com")
	require.NoError(t, err)

	issuer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

// TestPurpose: Validates signature checks: tokens signed with a different
// secret, or garbage input, are rejected.
// Scope: Unit Test
// Security: Token forgery prevention
// Expected: ErrInvalidChallenge for wrong-secret and malformed tokens.
// Test Case ID: CHL-03
func TestChallengeIssuer_RejectsForgedTokens(t *testing.T) {
	issuer := NewChallengeIssuer([]byte("secret-1"), 5*time.Minute)
	other := NewChallengeIssuer([]byte("secret-2"), 5*time.Minute)

	token, err := other.Issue("a@x.com")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidChallenge)

	_, err = issuer.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}
