package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/certifychain/certifychain/internal/credentials"
	"github.com/certifychain/certifychain/internal/models"
	"github.com/certifychain/certifychain/internal/telemetry"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds a refresh exchange.
const DefaultRefreshTimeout = 30 * time.Second

var (
	// ErrNoRefreshToken is returned when no unexpired refresh token is stored.
	ErrNoRefreshToken = errors.New("no usable refresh token")

	// ErrRefreshFailed is returned when the refresh exchange is rejected or
	// yields no usable access token.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error)
}

// ProfileFetcher loads the profile of the user owning accessToken.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (*models.User, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefresher sets the refresh endpoint client.
func WithRefresher(r Refresher) Option {
	return func(m *Manager) { m.refresher = r }
}

// WithProfileFetcher sets the profile endpoint client.
func WithProfileFetcher(p ProfileFetcher) Option {
	return func(m *Manager) { m.profiles = p }
}

// WithUnauthenticatedHook sets the function called when a request leaves the
// session unauthenticated and the user has to sign in again.
func WithUnauthenticatedHook(fn func()) Option {
	return func(m *Manager) { m.onUnauthenticated = fn }
}

// WithRefreshTimeout bounds each refresh exchange. The default is
// DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the Session and the persisted tokens. It is the only writer
// of both; everything else reads snapshots.
type Manager struct {
	store             credentials.Store
	refresher         Refresher
	profiles          ProfileFetcher
	onUnauthenticated func()
	now               func() time.Time
	refreshTimeout    time.Duration

	refreshGroup singleflight.Group

	mu      sync.RWMutex
	state   State
	session Session
}

var _ TokenSource = (*Manager)(nil)

// NewManager creates a Manager in the Uninitialized state.
func NewManager(store credentials.Store, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		now:            time.Now,
		refreshTimeout: DefaultRefreshTimeout,
		state:          StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores the session from the store. It leaves Loading false on
// every return path.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateLoading
	m.session.Loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.session.Loading = false
		if m.state == StateLoading {
			m.state = StateUnauthenticated
		}
		m.mu.Unlock()
	}()

	access := m.storedToken(credentials.AccessTokenKey)
	refresh := m.storedToken(credentials.RefreshTokenKey)

	switch {
	case access != "" && !m.expired(access):
		m.signIn(access, refresh, nil)
		m.loadProfile(ctx, access)

		log.Debug().
			Str("access", credentials.Fingerprint(access)).
			Msg("session restored")

		return nil

	case refresh != "" && !m.expired(refresh):
		log.Debug().
			Str("refresh", credentials.Fingerprint(refresh)).
			Msg("access token expired, refreshing session")

		access, err := m.exchange(ctx, refresh)
		if err != nil {
			m.clear()
			return err
		}
		m.loadProfile(ctx, access)

		return nil

	default:
		m.clear()
		return nil
	}
}

// Login persists a freshly issued token pair and marks the session
// authenticated. A nil user is resolved from the access token's user claim,
// then from the profile endpoint; failing both leaves the session
// authenticated without a profile.
func (m *Manager) Login(ctx context.Context, access, refresh string, user *models.User) error {
	if err := m.store.Set(credentials.AccessTokenKey, access); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if refresh != "" {
		if err := m.store.Set(credentials.RefreshTokenKey, refresh); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	} else if err := m.store.Delete(credentials.RefreshTokenKey); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	if m.expired(access) {
		log.Warn().
			Str("access", credentials.Fingerprint(access)).
			Msg("login returned an expired access token")
		m.reset()
		return nil
	}

	m.signIn(access, refresh, user)

	log.Info().
		Str("access", credentials.Fingerprint(access)).
		Msg("logged in")

	if user == nil {
		m.loadProfile(ctx, access)
	}

	return nil
}

// Logout removes both tokens and resets the session. Store failures are
// logged, never returned.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.store.Delete(credentials.AccessTokenKey, credentials.RefreshTokenKey); err != nil {
		log.Error().Err(err).Msg("failed to clear stored tokens")
	}
	m.reset()

	log.Info().Msg("logged out")
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// AccessToken returns the stored access token if it has not expired.
func (m *Manager) AccessToken(ctx context.Context) (string, bool) {
	access := m.storedToken(credentials.AccessTokenKey)
	if access == "" || m.expired(access) {
		return "", false
	}
	return access, true
}

// CanRefresh reports whether an unexpired refresh token is stored.
func (m *Manager) CanRefresh(ctx context.Context) bool {
	refresh := m.storedToken(credentials.RefreshTokenKey)
	return refresh != "" && !m.expired(refresh)
}

// Refresh obtains a new access token to replace stale. Concurrent callers
// share a single exchange. If the stored access token has already moved on
// from stale and is still valid, it is returned without an exchange.
//
// On failure the session is cleared and the unauthenticated hook runs once
// per exchange.
func (m *Manager) Refresh(ctx context.Context, stale string) (string, error) {
	v, err, shared := m.refreshGroup.Do("refresh", func() (any, error) {
		if current := m.storedToken(credentials.AccessTokenKey); current != "" && current != stale && !m.expired(current) {
			return current, nil
		}

		refresh := m.storedToken(credentials.RefreshTokenKey)
		if refresh == "" || m.expired(refresh) {
			m.expire(ErrNoRefreshToken)
			return "", ErrNoRefreshToken
		}

		access, err := m.exchange(ctx, refresh)
		if err != nil {
			m.expire(err)
			return "", err
		}
		return access, nil
	})
	if err != nil {
		return "", err
	}

	if shared {
		log.Debug().Msg("joined in-flight token refresh")
	}

	return v.(string), nil
}

// exchange trades refresh for a new access token and persists the result.
// Canceling ctx does not cancel the exchange; m.refreshTimeout bounds it.
func (m *Manager) exchange(ctx context.Context, refresh string) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
	defer cancel()

	metrics := telemetry.GetMetrics()
	metrics.RefreshTotal.Add(ctx, 1)

	if m.refresher == nil {
		metrics.RefreshErrorsTotal.Add(ctx, 1)
		return "", fmt.Errorf("%w: no refresh endpoint configured", ErrRefreshFailed)
	}

	tokens, err := m.refresher.RefreshToken(ctx, refresh)
	if err != nil {
		metrics.RefreshErrorsTotal.Add(ctx, 1)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if tokens == nil || tokens.Access == "" || m.expired(tokens.Access) {
		metrics.RefreshErrorsTotal.Add(ctx, 1)
		return "", fmt.Errorf("%w: no valid access token in response", ErrRefreshFailed)
	}

	if err := m.store.Set(credentials.AccessTokenKey, tokens.Access); err != nil {
		return "", fmt.Errorf("failed to store access token: %w", err)
	}

	if tokens.Refresh != "" && tokens.Refresh != refresh {
		if err := m.store.Set(credentials.RefreshTokenKey, tokens.Refresh); err != nil {
			return "", fmt.Errorf("failed to store refresh token: %w", err)
		}
		refresh = tokens.Refresh
	}

	m.authenticate(tokens.Access, refresh, tokens.User)

	log.Info().
		Str("access", credentials.Fingerprint(tokens.Access)).
		Msg("access token refreshed")

	return tokens.Access, nil
}

// loadProfile fills in the session user if it is not known yet.
func (m *Manager) loadProfile(ctx context.Context, access string) {
	m.mu.RLock()
	known := m.session.User != nil
	m.mu.RUnlock()
	if known {
		return
	}

	user, ok := credentials.UserFromToken(access)
	if !ok && m.profiles != nil {
		var err error
		user, err = m.profiles.FetchProfile(ctx, access)
		if err != nil {
			log.Warn().Err(err).Msg("failed to fetch user profile")
			return
		}
	}
	if user == nil {
		return
	}

	m.mu.Lock()
	if m.session.AccessToken == access {
		m.session.User = user
	}
	m.mu.Unlock()
}

// signIn marks the session authenticated for a possibly different account:
// the previous profile is replaced by user, even when user is nil.
func (m *Manager) signIn(access, refresh string, user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateAuthenticated
	m.session.AccessToken = access
	m.session.RefreshToken = refresh
	m.session.Authenticated = true
	m.session.User = user
}

// authenticate records refreshed tokens for the current account. A nil user
// keeps the known profile.
func (m *Manager) authenticate(access, refresh string, user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateAuthenticated
	m.session.AccessToken = access
	m.session.RefreshToken = refresh
	m.session.Authenticated = true
	if user != nil {
		m.session.User = user
	}
}

// expire clears the session after an irrecoverable refresh failure and
// notifies the hook.
func (m *Manager) expire(cause error) {
	telemetry.GetMetrics().SessionsExpiredTotal.Add(context.Background(), 1)

	log.Warn().Err(cause).Msg("session expired, login required")

	m.clear()

	if m.onUnauthenticated != nil {
		m.onUnauthenticated()
	}
}

// clear removes stored tokens and resets the session.
func (m *Manager) clear() {
	if err := m.store.Delete(credentials.AccessTokenKey, credentials.RefreshTokenKey); err != nil {
		log.Error().Err(err).Msg("failed to clear stored tokens")
	}
	m.reset()
}

func (m *Manager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateUnauthenticated
	m.session = Session{Loading: m.session.Loading}
}

func (m *Manager) storedToken(key string) string {
	value, err := m.store.Get(key)
	if err != nil {
		if !errors.Is(err, credentials.ErrTokenNotFound) {
			log.Error().Err(err).Str("key", key).Msg("failed to read stored token")
		}
		return ""
	}
	return value
}

func (m *Manager) expired(token string) bool {
	return credentials.IsExpiredAt(token, m.now())
}
