// Package session owns the process-wide authentication state: the persisted
// bearer token, the current user, and the state machine the UI gates on.
// The manager is handed down explicitly rather than living in a global.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/api"
	"github.com/ambienthealth/companion/internal/model"
)

// State is the authentication state of the process.
type State int

const (
	// Unauthenticated means no usable credential exists.
	Unauthenticated State = iota
	// Loading means a stored token exists but identity confirmation is
	// still in flight.
	Loading
	// Authenticated means the token was confirmed and User is set.
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Manager drives login, logout and startup token restoration against the
// API client, persisting the token through a TokenStore.
type Manager struct {
	client *api.Client
	store  TokenStore
	log    zerolog.Logger

	mu    sync.RWMutex
	state State
	user  *model.User
}

func NewManager(client *api.Client, store TokenStore, log zerolog.Logger) *Manager {
	return &Manager{
		client: client,
		store:  store,
		log:    log,
		state:  Unauthenticated,
	}
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the authenticated user, or nil outside Authenticated.
func (m *Manager) User() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Restore hydrates the session from a previously persisted token. With no
// stored token the session stays Unauthenticated. With one, the session
// passes through Loading while the identity is confirmed; a failed
// confirmation discards the token and lands back in Unauthenticated
// without returning an error — a stale token is an expected condition,
// not a failure of Restore itself.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		m.setState(Unauthenticated, nil)
		return nil
	}

	m.client.SetToken(token)
	m.setState(Loading, nil)

	user, err := m.client.Me(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("stored token rejected, discarding")
		m.client.ClearToken()
		if clearErr := m.store.Clear(); clearErr != nil {
			m.log.Warn().Err(clearErr).Msg("failed to clear stored token")
		}
		m.setState(Unauthenticated, nil)
		return nil
	}

	m.setState(Authenticated, user)
	m.log.Info().Str("role", string(user.Role)).Str("email", user.Email).Msg("session restored")
	return nil
}

// Login exchanges credentials for a token, persists it and transitions to
// Authenticated. On failure the API error propagates and the current state
// is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (*model.User, error) {
	resp, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	m.client.SetToken(resp.AccessToken)
	if err := m.store.Save(resp.AccessToken); err != nil {
		m.log.Warn().Err(err).Msg("token not persisted; session will not survive restart")
	}
	user := resp.User
	m.setState(Authenticated, &user)
	m.log.Info().Str("role", string(user.Role)).Str("email", user.Email).Msg("logged in")
	return &user, nil
}

// Logout discards the credential synchronously and returns to
// Unauthenticated.
func (m *Manager) Logout() {
	m.client.ClearToken()
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear stored token")
	}
	m.setState(Unauthenticated, nil)
	m.log.Info().Msg("logged out")
}

func (m *Manager) setState(s State, u *model.User) {
	m.mu.Lock()
	m.state = s
	m.user = u
	m.mu.Unlock()
}
