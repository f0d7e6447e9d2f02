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
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidChallenge = errors.New("invalid challenge token")
	ErrChallengeExpired = errors.New("challenge token expired")
)

// ChallengeIssuer mints and verifies the short-lived signed tokens handed
// out when the suspicion heuristic fires. The surrounding service can
// demand the token back on retry, which raises the cost of automated
// bursts without locking legitimate users out.
type ChallengeIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewChallengeIssuer creates a challenge issuer signing with the given
// secret. Tokens expire after ttl.
func NewChallengeIssuer(secret []byte, ttl time.Duration) *ChallengeIssuer {
	return &ChallengeIssuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a signed challenge token bound to the throttle key.
func (c *ChallengeIssuer) Issue(key string) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub": key,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the throttle
// key it was issued for.
func (c *ChallengeIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrChallengeExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidChallenge
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidChallenge
	}
	return subject, nil
}
