package auth

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"danyak/types"

	"go.uber.org/zap"
)

const missingCredentialsMsg = "email and password are both required"

// SessionListener is called after every session transition. A returned error
// is logged; it never cancels the subscription.
type SessionListener func(event types.AuthChangeEvent, session *types.Session) error

// Manager owns the client's current identity. It holds exactly one
// subscription to the remote auth service for its whole lifetime.
type Manager struct {
	api types.AuthApi
	log *zap.Logger

	mu        sync.Mutex
	session   *types.Session
	listeners map[uint64]SessionListener
	nextId    uint64
	remote    types.Subscription
	closed    bool
}

func NewManager(ctx context.Context, authApi types.AuthApi, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		api:       authApi,
		log:       logger.Named("auth"),
		listeners: map[uint64]SessionListener{},
	}

	session, apiErr := authApi.GetSession(ctx)
	if apiErr != nil {
		// a rejected refresh already signed the client out; anything else is
		// worth reporting
		if apiErr.Status < http.StatusBadRequest || apiErr.Status >= http.StatusInternalServerError {
			return nil, types.FromApiError(types.ErrorKindAuth, "get session", apiErr)
		}
		m.log.Info("stored session rejected", zap.String("msg", apiErr.Msg))
	}
	m.session = session

	m.remote = authApi.OnAuthStateChange(m.handleRemote)

	return m, nil
}

func (m *Manager) CurrentSession() *types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

// OnSessionChange registers listener for sign-in, sign-out and token refresh
// transitions. The caller must Close the returned subscription.
func (m *Manager) OnSessionChange(listener SessionListener) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &Subscription{}
	}

	m.nextId++
	id := m.nextId
	m.listeners[id] = listener

	return &Subscription{
		release: func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		},
	}
}

// SignUp creates the account. Whether a session exists afterwards depends on
// the remote confirmation policy, so the cached session is left to the next
// notification.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	email, err := validateCredentials("sign up", email, password)
	if err != nil {
		return err
	}

	session, apiErr := m.api.SignUp(ctx, email, password)
	if apiErr != nil {
		return types.FromApiError(types.ErrorKindAuth, "sign up", apiErr)
	}

	if session == nil {
		m.log.Info("sign up pending confirmation", zap.String("email", email))
	}

	return nil
}

func (m *Manager) SignIn(ctx context.Context, email, password string) (*types.Session, error) {
	email, err := validateCredentials("sign in", email, password)
	if err != nil {
		return nil, err
	}

	session, apiErr := m.api.SignInWithPassword(ctx, email, password)
	if apiErr != nil {
		return nil, types.FromApiError(types.ErrorKindAuth, "sign in", apiErr)
	}

	// the remote usually notifies first; apply dedupes on the token
	m.apply(types.AuthEventSignedIn, session)

	return session.Clone(), nil
}

// SignOut always clears the cached session. A remote failure is only logged.
func (m *Manager) SignOut(ctx context.Context) {
	if apiErr := m.api.SignOut(ctx); apiErr != nil {
		m.log.Warn("remote sign out failed", zap.String("msg", apiErr.Msg), zap.Int("status", apiErr.Status))
	}
	m.apply(types.AuthEventSignedOut, nil)
}

// Close releases the remote subscription. Listeners receive nothing afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.listeners = map[uint64]SessionListener{}
	remote := m.remote
	m.mu.Unlock()

	if remote != nil {
		remote.Close()
	}
}

func (m *Manager) handleRemote(event types.AuthChangeEvent, session *types.Session) {
	m.apply(event, session)
}

func (m *Manager) apply(event types.AuthChangeEvent, session *types.Session) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	if isDuplicate(event, m.session, session) {
		m.mu.Unlock()
		return
	}

	m.session = session.Clone()

	ids := make([]uint64, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]SessionListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()

	if event == types.AuthEventInitialSession {
		return
	}

	for _, listener := range listeners {
		m.notify(listener, event, session.Clone())
	}
}

func isDuplicate(event types.AuthChangeEvent, current, next *types.Session) bool {
	switch event {
	case types.AuthEventSignedIn:
		return current != nil && next != nil && current.AccessToken == next.AccessToken
	case types.AuthEventSignedOut:
		return current == nil
	}
	return false
}

func (m *Manager) notify(listener SessionListener, event types.AuthChangeEvent, session *types.Session) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("session listener panicked", zap.String("event", string(event)), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := listener(event, session); err != nil {
		m.log.Error("session listener failed", zap.String("event", string(event)), zap.Error(err))
	}
}

func validateCredentials(op, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", types.NewValidationError(op, missingCredentialsMsg)
	}
	return email, nil
}
