package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tender-evaluator/internal/shared/auth"
	"tender-evaluator/internal/shared/server/middleware"
	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
)

var (
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const defaultTTL = 8 * time.Hour

// Authenticator exchanges credentials with the tender backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (tenderapi.LoginResponse, error)
}

// TokenChecker asks the tender backend whether token is still accepted.
type TokenChecker func(ctx context.Context, token string) error

type Service struct {
	Repo     Repo
	Auth     Authenticator
	Verifier *auth.Verifier
	Check    TokenChecker
	TTL      time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return defaultTTL
}

// Login authenticates against the backend and stores a session for the
// returned token. The session never outlives the token's own expiry.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	resp, err := s.Auth.Login(ctx, username, password)
	if err != nil {
		if tenderapi.IsUnauthorized(err) || tenderapi.HasStatus(err, 400) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("backend login: %w", err)
	}

	now := s.now()
	sess := Session{
		ID:         uuid.NewString(),
		UserID:     username,
		Token:      resp.AccessToken,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl()),
		LastSeenAt: now,
	}
	if role, ok := resp.User["role"].(string); ok {
		sess.Role = role
	}
	if s.Verifier != nil {
		claims, err := s.Verifier.Verify(resp.AccessToken)
		if err != nil {
			return Session{}, fmt.Errorf("backend token: %w", err)
		}
		sess.UserID = claims.Subject
		if claims.Role != "" {
			sess.Role = claims.Role
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(sess.ExpiresAt) {
			sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
	}

	if err := s.Repo.Create(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	telemetry.Info("session.created", map[string]any{
		"user_id":    sess.UserID,
		"session_id": sess.ID,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
	return sess, nil
}

// Get returns a live session. Expired sessions are removed.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	sess, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(s.now()) {
		_ = s.Repo.Delete(ctx, id)
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// ResolveSession implements middleware.SessionResolver.
func (s *Service) ResolveSession(ctx context.Context, id string) (middleware.Identity, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return middleware.Identity{}, err
	}
	if err := s.Repo.Touch(ctx, id, s.now()); err != nil {
		telemetry.Warn("session.touch_failed", map[string]any{"session_id": id, "error": err.Error()})
	}
	return middleware.Identity{UserID: sess.UserID, Role: sess.Role, SessionID: sess.ID, Token: sess.Token}, nil
}

// Logout forgets the session. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.Repo.Delete(ctx, id)
}

// Verify checks the token with the backend when a checker is configured.
func (s *Service) Verify(ctx context.Context, token string) error {
	if s.Check == nil || token == "" {
		return nil
	}
	return s.Check(ctx, token)
}

// PurgeExpired deletes sessions that expired before now.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.Repo.DeleteExpired(ctx, s.now())
}
