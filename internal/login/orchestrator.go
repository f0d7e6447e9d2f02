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
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/identity"
	"github.com/fieldops/fieldops/internal/observability/metrics"
	"github.com/fieldops/fieldops/internal/throttle"
)

// User-facing messages. Deliberately generic: none of them reveals
// whether the email exists or what exactly went wrong.
const (
	MsgTooManyAttempts    = "Too many login attempts. Please try again later."
	MsgInvalidCredentials = "Invalid email or password."
	MsgChallengeRequired  = "Additional verification is required."
)

// Request carries a single login attempt. ChallengeToken is optional: a
// caller replaying the token from an earlier challenged response gets
// past the suspicion gate for the key the token was issued to.
type Request struct {
	TenantID       string
	Email          string
	Password       string
	ChallengeToken string
	IPAddress      string
	UserAgent      string
}

// Result is the login decision returned to the transport layer.
type Result struct {
	Success           bool
	PrincipalID       string
	RequiresChallenge bool
	ChallengeToken    string
	Message           string
}

// Verifier is the credential check the orchestrator delegates to. It is
// the only step in the pipeline allowed to touch persistent storage.
type Verifier interface {
	VerifyCredentials(ctx context.Context, tenantID, email, password string) (*identity.User, error)
}

// Orchestrator runs the login decision pipeline: rate check, suspicion
// check, attempt recording, credential verification, reset and audit.
// The throttle checks are cheap in-memory operations and run before any
// storage access, so a storage outage degrades to denying new logins
// rather than bypassing throttling.
type Orchestrator struct {
	limiter       *throttle.Limiter
	detector      *throttle.Detector
	verifier      Verifier
	recorder      audit.Recorder
	challenges    *ChallengeIssuer
	verifyTimeout time.Duration
	attempts      metric.Int64Counter
}

// NewOrchestrator creates a login security orchestrator.
func NewOrchestrator(
	limiter *throttle.Limiter,
	detector *throttle.Detector,
	verifier Verifier,
	recorder audit.Recorder,
	challenges *ChallengeIssuer,
	verifyTimeout time.Duration,
	meter *metrics.Meter,
) (*Orchestrator, error) {
	attempts, err := meter.CreateCounter(
		"login_attempts_total",
		"Login attempts by outcome",
	)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		limiter:       limiter,
		detector:      detector,
		verifier:      verifier,
		recorder:      recorder,
		challenges:    challenges,
		verifyTimeout: verifyTimeout,
		attempts:      attempts,
	}, nil
}

// SecureLogin decides a single login attempt. It never returns an error:
// every outcome, including internal failures, maps to a generic declined
// Result so that no pipeline detail leaks to the caller.
func (o *Orchestrator) SecureLogin(ctx context.Context, req Request) (result Result) {
	key := throttle.NormalizeKey(req.Email)

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "login pipeline panic",
				slog.String("component", "login"),
				slog.Any("panic", r),
			)
			o.emit(ctx, req, audit.ActorUnknown, audit.StatusError, map[string]any{"category": "panic"})
			o.count(ctx, "error")
			result = Result{Message: MsgInvalidCredentials}
		}
	}()

	if !o.limiter.Allow(key) {
		o.emit(ctx, req, audit.ActorUnknown, audit.StatusRateLimited, nil)
		o.count(ctx, "rate_limited")
		return Result{Message: MsgTooManyAttempts}
	}

	if o.detector.IsSuspicious(key) && !o.redeemChallenge(ctx, req.ChallengeToken, key) {
		o.recorder.Record(ctx, audit.Event{
			Type:      audit.TypeSuspiciousActivity,
			TenantID:  req.TenantID,
			ActorID:   audit.ActorUnknown,
			Subject:   key,
			Status:    "flagged",
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
		o.count(ctx, "challenged")

		token, err := o.challenges.Issue(key)
		if err != nil {
			// Escalation still holds without a token; the caller
			// just cannot shortcut the next attempt.
			slog.WarnContext(ctx, "failed to issue challenge token",
				slog.String("component", "login"),
				slog.String("error", err.Error()),
			)
		}
		return Result{
			RequiresChallenge: true,
			ChallengeToken:    token,
			Message:           MsgChallengeRequired,
		}
	}

	// Record is the authoritative admission: under concurrent attempts
	// on the same key only as many pass as the window has room for.
	// Once counted, the attempt stays counted regardless of outcome.
	if !o.limiter.Record(key) {
		o.emit(ctx, req, audit.ActorUnknown, audit.StatusRateLimited, nil)
		o.count(ctx, "rate_limited")
		return Result{Message: MsgTooManyAttempts}
	}
	o.detector.Observe(key)

	vctx, cancel := context.WithTimeout(ctx, o.verifyTimeout)
	defer cancel()

	user, err := o.verifier.VerifyCredentials(vctx, req.TenantID, req.Email, req.Password)
	if err != nil {
		category, status := categorize(err)
		o.emit(ctx, req, audit.ActorUnknown, status, map[string]any{"category": category})
		o.count(ctx, status)
		return Result{Message: MsgInvalidCredentials}
	}

	o.limiter.Reset(key)
	o.detector.Reset(key)
	o.emit(ctx, req, user.ID, audit.StatusSuccess, nil)
	o.count(ctx, "success")

	return Result{
		Success:     true,
		PrincipalID: user.ID,
	}
}

// redeemChallenge reports whether the presented token lets a flagged key
// proceed to verification. The token must verify and must have been
// issued for this exact key; anything else keeps the escalation in
// place. Redemption skips only the suspicion gate, never the limiter.
func (o *Orchestrator) redeemChallenge(ctx context.Context, token, key string) bool {
	if token == "" {
		return false
	}
	issuedFor, err := o.challenges.Verify(token)
	if err != nil {
		slog.WarnContext(ctx, "rejected challenge token",
			slog.String("component", "login"),
			slog.String("error", err.Error()),
		)
		return false
	}
	return issuedFor == key
}

// categorize maps a verifier error to an audit detail category, never the
// raw error. Anything outside the known credential sentinels is treated
// as infrastructure failure.
func categorize(err error) (category, status string) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return "invalid_credentials", audit.StatusFailed
	case errors.Is(err, identity.ErrAccountLocked):
		return "account_locked", audit.StatusFailed
	case errors.Is(err, context.DeadlineExceeded):
		return "verifier_timeout", audit.StatusError
	default:
		return "verifier_error", audit.StatusError
	}
}

func (o *Orchestrator) emit(ctx context.Context, req Request, actorID, status string, detail map[string]any) {
	o.recorder.Record(ctx, audit.Event{
		Type:      audit.TypeLoginAttempt,
		TenantID:  req.TenantID,
		ActorID:   actorID,
		Subject:   throttle.NormalizeKey(req.Email),
		Status:    status,
		Detail:    detail,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
}

func (o *Orchestrator) count(ctx context.Context, outcome string) {
	if o.attempts == nil {
		return
	}
	o.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
