package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service manages session lifecycle on top of the Repository.
type Service struct {
	repo        Repository
	lifetime    time.Duration
	idleTimeout time.Duration
}

// NewService creates a new session service
func NewService(repo Repository, lifetime, idleTimeout time.Duration) *Service {
	return &Service{
		repo:        repo,
		lifetime:    lifetime,
		idleTimeout: idleTimeout,
	}
}

// Create starts a new session for the user. Session IDs are opaque
// random values; the client learns nothing from them.
func (s *Service) Create(ctx context.Context, tenantID, userID, ipAddress, userAgent string) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		UserID:     userID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get retrieves and validates a session. Expired or idle sessions are
// deleted on sight and reported as ErrSessionExpired.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() || session.IsIdle(s.idleTimeout) {
		_ = s.repo.Delete(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Touch refreshes the session's last-seen time.
func (s *Service) Touch(ctx context.Context, session *Session) error {
	session.LastSeenAt = time.Now()
	return s.repo.Update(ctx, session)
}

// Destroy deletes a session.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

// DestroyAll deletes every session belonging to the user, typically
// after a password change.
func (s *Service) DestroyAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// StartCleanup runs periodic expired-session deletion until the stop
// channel closes.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.repo.DeleteExpired(ctx); err != nil {
					slog.WarnContext(ctx, "session cleanup failed",
						slog.String("component", "session"),
						slog.String("error", err.Error()),
					)
				}
			case <-stop:
				return
			}
		}
	}()
}
