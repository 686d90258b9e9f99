package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techblog/techblog/utils"
)

// Authenticator verifies credentials; the credential store satisfies it.
type Authenticator interface {
	Verify(ctx context.Context, username, password string) (uint, error)
}

// Manager issues, resolves, and destroys server-side sessions.
//
// A session moves Anonymous -> Authenticated(userID) on Login or Start and
// back to Anonymous on Logout or when the store lets it expire.
type Manager struct {
	creds  Authenticator
	store  SessionStore
	signer *utils.TokenSigner
	ttl    time.Duration
	log    *zap.Logger
}

// NewManager wires a Manager. ttl is the inactivity window enforced by store.
func NewManager(creds Authenticator, store SessionStore, signer *utils.TokenSigner, ttl time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{creds: creds, store: store, signer: signer, ttl: ttl, log: log.Named("session")}
}

// TTL is the inactivity window after which an idle session expires.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login verifies credentials and opens a session. Failed verification leaves
// the caller anonymous and returns the authenticator's error unchanged.
func (m *Manager) Login(ctx context.Context, username, password string) (string, Identity, error) {
	userID, err := m.creds.Verify(ctx, username, password)
	if err != nil {
		return "", Anonymous, err
	}
	token, err := m.Start(ctx, userID)
	if err != nil {
		return "", Anonymous, err
	}
	return token, Authenticated(userID), nil
}

// Start opens a session for an already authenticated user and returns its token.
func (m *Manager) Start(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return "", errors.New("session: cannot start a session without a user")
	}
	sessionID := uuid.NewString()
	if err := m.store.Save(ctx, sessionID, userID, m.ttl); err != nil {
		return "", fmt.Errorf("session: save: %w", err)
	}
	token, err := m.signer.Sign(sessionID)
	if err != nil {
		_ = m.store.Destroy(ctx, sessionID)
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	m.log.Info("session started", zap.Uint("user_id", userID))
	return token, nil
}

// Resolve maps a token to the identity behind it. Anything that is not a live
// session resolves to Anonymous; a live session has its inactivity window renewed.
func (m *Manager) Resolve(ctx context.Context, token string) Identity {
	if token == "" {
		return Anonymous
	}
	sessionID, err := m.signer.Parse(token)
	if err != nil {
		return Anonymous
	}
	userID, err := m.store.Lookup(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.log.Warn("session lookup failed", zap.Error(err))
		}
		return Anonymous
	}
	if err := m.store.Touch(ctx, sessionID, m.ttl); err != nil && !errors.Is(err, ErrSessionNotFound) {
		m.log.Warn("session touch failed", zap.Error(err))
	}
	return Authenticated(userID)
}

// Logout destroys the session behind token. Unknown or malformed tokens are ignored.
func (m *Manager) Logout(ctx context.Context, token string) error {
	sessionID, err := m.signer.Parse(token)
	if err != nil {
		return nil
	}
	if err := m.store.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("session: destroy: %w", err)
	}
	return nil
}
