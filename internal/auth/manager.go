package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotrcpt/internal/shared"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
	SpotifyAPIURL   = "https://api.spotify.com/v1"

	DefaultExpirySkew        = 5 * time.Minute
	DefaultMaxAttempts       = 3
	DefaultBackoff           = 2 * time.Second
	DefaultRetryAfter        = 10 * time.Second
	DefaultRequestsPerMinute = 50
)

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{"user-read-private", "user-read-email", "user-top-read"}

// ManagerConfig describes the client registration and the call policy.
// Zero values fall back to the package defaults, except ShowDialog.
type ManagerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	ShowDialog   bool

	AuthURL    string
	TokenURL   string
	APIBaseURL string

	ExpirySkew        time.Duration
	CacheTTL          time.Duration
	CacheSize         int
	MaxAttempts       int
	Backoff           time.Duration
	DefaultRetryAfter time.Duration
	RequestsPerMinute int
}

// DefaultManagerConfig returns the Spotify endpoints and the default call policy.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Scopes:            DefaultScopes,
		ShowDialog:        true,
		AuthURL:           SpotifyAuthURL,
		TokenURL:          SpotifyTokenURL,
		APIBaseURL:        SpotifyAPIURL,
		ExpirySkew:        DefaultExpirySkew,
		CacheTTL:          DefaultCacheTTL,
		CacheSize:         DefaultCacheSize,
		MaxAttempts:       DefaultMaxAttempts,
		Backoff:           DefaultBackoff,
		DefaultRetryAfter: DefaultRetryAfter,
		RequestsPerMinute: DefaultRequestsPerMinute,
	}
}

// ManagerConfigFrom maps the application configuration onto a ManagerConfig.
func ManagerConfigFrom(cfg *shared.Config) ManagerConfig {
	mc := DefaultManagerConfig()
	mc.ClientID = cfg.Credentials.Spotify.ClientID
	mc.ClientSecret = cfg.Credentials.Spotify.ClientSecret
	mc.RedirectURI = cfg.Credentials.Spotify.RedirectURI
	if len(cfg.Auth.Scopes) > 0 {
		mc.Scopes = cfg.Auth.Scopes
	}
	mc.ShowDialog = cfg.Auth.ShowDialog
	if cfg.API.BaseURL != "" {
		mc.APIBaseURL = cfg.API.BaseURL
	}
	mc.ExpirySkew = cfg.Auth.ExpirySkew()
	mc.CacheTTL = cfg.API.CacheTTL()
	mc.CacheSize = cfg.API.CacheSize
	mc.MaxAttempts = cfg.API.MaxAttempts
	mc.Backoff = cfg.API.Backoff()
	mc.DefaultRetryAfter = cfg.API.DefaultRetryAfter()
	mc.RequestsPerMinute = cfg.API.RequestsPerMinute
	return mc
}

func (c *ManagerConfig) applyDefaults() {
	d := DefaultManagerConfig()
	if len(c.Scopes) == 0 {
		c.Scopes = d.Scopes
	}
	if c.AuthURL == "" {
		c.AuthURL = d.AuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = d.TokenURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = d.APIBaseURL
	}
	if c.ExpirySkew <= 0 {
		c.ExpirySkew = d.ExpirySkew
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = d.DefaultRetryAfter
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
}

// OAuth2 returns the client configuration for the authorization and token endpoints.
// Client credentials are sent in the form body so a public client without a secret works.
func (c ManagerConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Option configures a [Manager].
type Option func(*Manager)

// WithHTTPClient sets the client used for resource calls.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.httpClient = client }
}

func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithNavigator sets how [Manager.Login] opens the authorization URL, typically [shared.OpenBrowser].
func WithNavigator(navigate func(string) error) Option {
	return func(m *Manager) { m.navigate = navigate }
}

// WithClock replaces time.Now for expiry and cache decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSleeper replaces the context-aware sleep used between retries.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithLimiter replaces the client-side request limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(m *Manager) { m.limiter = limiter }
}

// Manager owns the credential, the pending authorization, and authenticated calls against the resource server.
// It is safe for concurrent use.
type Manager struct {
	config    ManagerConfig
	oauth     *oauth2.Config
	store     Store
	exchanger Exchanger

	httpClient *http.Client
	cache      *ResponseCache
	limiter    *rate.Limiter
	logger     *log.Logger
	navigate   func(string) error
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error

	refreshGroup singleflight.Group

	mu   sync.RWMutex
	cred Credential
	// generation changes whenever the credential is replaced or cleared; a refresh that started under an
	// older generation must not write its tokens back.
	generation uint64
}

// NewManager restores any persisted credential from store.
func NewManager(cfg ManagerConfig, store Store, ex Exchanger, opts ...Option) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", shared.ErrMissingCredentials)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", shared.ErrInvalidInput)
	}
	if ex == nil {
		return nil, fmt.Errorf("%w: exchanger is required", shared.ErrInvalidInput)
	}
	cfg.applyDefaults()

	m := &Manager{
		config:     cfg,
		oauth:      cfg.OAuth2(),
		store:      store,
		exchanger:  ex,
		httpClient: http.DefaultClient,
		logger:     log.New(io.Discard),
		now:        time.Now,
		sleep:      sleepContext,
		limiter: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)),
			cfg.RequestsPerMinute,
		),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = NewResponseCache(cfg.CacheSize, cfg.CacheTTL, func() time.Time { return m.now() })

	cred, err := loadCredential(store)
	if err != nil {
		return nil, err
	}
	m.cred = cred

	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() ManagerConfig { return m.config }

// Cache exposes the response cache.
func (m *Manager) Cache() *ResponseCache { return m.cache }

// Login starts an authorization: it persists a fresh verifier and state, replacing any pending authorization, and
// navigates to the returned URL. When navigation fails the URL is still returned with an error wrapping
// [ErrNavigation].
func (m *Manager) Login(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return "", err
	}
	state, err := GenerateState(StateLength)
	if err != nil {
		return "", err
	}

	if err := savePending(m.store, PendingAuthorization{CodeVerifier: verifier, State: state}); err != nil {
		return "", err
	}

	authURL := m.AuthorizationURL(verifier, state)
	m.logger.Debug("authorization started", "redirect_uri", m.config.RedirectURI)

	if m.navigate != nil {
		if err := m.navigate(authURL); err != nil {
			m.logger.Warn("failed to open browser", "error", err)
			return authURL, fmt.Errorf("%w: %v", ErrNavigation, err)
		}
	}
	return authURL, nil
}

// AuthorizationURL builds the authorize URL with response_type=code, client_id, scope, redirect_uri, state,
// the S256 challenge for verifier, and show_dialog when enabled.
func (m *Manager) AuthorizationURL(verifier, state string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if m.config.ShowDialog {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return m.oauth.AuthCodeURL(state, opts...)
}

// HandleCallback completes the authorization started by [Manager.Login] using the redirect URL's query.
// The pending authorization is consumed whatever the outcome; a second call with the same URL fails with
// [shared.ErrStateMismatch].
func (m *Manager) HandleCallback(ctx context.Context, u *url.URL) (*Credential, error) {
	q := u.Query()

	pending, err := takePending(m.store)
	if err != nil {
		return nil, err
	}

	state := q.Get("state")
	if state == "" || pending.State == "" || state != pending.State {
		m.logger.Warn("callback state did not match pending authorization")
		return nil, fmt.Errorf("%w: callback state does not match the pending authorization", shared.ErrStateMismatch)
	}

	if code := q.Get("error"); code != "" {
		return nil, &TokenExchangeError{Code: code, Description: q.Get("error_description")}
	}

	code := q.Get("code")
	if code == "" {
		return nil, &TokenExchangeError{Description: "callback is missing the authorization code"}
	}
	if pending.CodeVerifier == "" {
		return nil, &TokenExchangeError{Description: "no code verifier for this authorization"}
	}

	resp, err := m.exchanger.Exchange(ctx, code, pending.CodeVerifier)
	if err != nil {
		return nil, newTokenExchangeError(err)
	}
	if resp.AccessToken == "" {
		return nil, &TokenExchangeError{Description: "token response is missing access_token"}
	}

	cred, err := m.storeTokens(resp, false, m.nextGeneration())
	if err != nil {
		return nil, err
	}
	m.cache.Purge()
	m.logger.Info("authorization complete", "expires_at", cred.ExpiresAt.Format(time.RFC3339))
	return &cred, nil
}

// IsAuthenticated reports whether an access token is present and will not expire within the skew.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.AccessToken != "" && m.now().Before(m.cred.ExpiresAt.Add(-m.config.ExpirySkew))
}

// Credential returns a snapshot of the current credential.
func (m *Manager) Credential() Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}

// Refresh exchanges the refresh token for a new access token. Concurrent callers share one upstream call.
// An upstream rejection clears the credential and returns [*TokenRefreshError].
//
// The shared call is detached from any single caller's cancellation; each caller stops waiting when its own
// ctx is done.
func (m *Manager) Refresh(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			m.logger.Debug("shared in-flight refresh")
		}
		cred := res.Val.(Credential)
		return &cred, nil
	}
}

func (m *Manager) refresh(ctx context.Context) (Credential, error) {
	m.mu.RLock()
	refreshToken := m.cred.RefreshToken
	generation := m.generation
	m.mu.RUnlock()

	if refreshToken == "" {
		return Credential{}, shared.ErrNoRefreshToken
	}

	m.logger.Debug("refreshing access token")
	resp, err := m.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		rerr := newTokenRefreshError(err)
		if rerr.Status != 0 {
			m.logger.Warn("refresh token rejected, clearing credential", "status", rerr.Status, "code", rerr.Code)
			if cerr := m.clearCredential(generation); cerr != nil {
				m.logger.Error("failed to clear credential", "error", cerr)
			}
		}
		return Credential{}, rerr
	}
	if resp.AccessToken == "" {
		return Credential{}, &TokenRefreshError{Description: "token response is missing access_token"}
	}

	return m.storeTokens(resp, true, generation)
}

// nextGeneration starts a new credential generation, invalidating refreshes still in flight.
func (m *Manager) nextGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	return m.generation
}

// storeTokens applies resp to the credential and writes it through, unless the credential was replaced or cleared
// since generation was read. When keepRefresh is set an absent refresh token in resp leaves the current one in
// place.
func (m *Manager) storeTokens(resp *TokenResponse, keepRefresh bool, generation uint64) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		m.logger.Debug("discarding tokens from a superseded session")
		return Credential{}, fmt.Errorf("%w: session ended while tokens were in flight", shared.ErrNotAuthenticated)
	}

	next := Credential{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if keepRefresh && next.RefreshToken == "" {
		next.RefreshToken = m.cred.RefreshToken
	}

	if err := saveCredential(m.store, next); err != nil {
		return Credential{}, err
	}
	m.cred = next
	return next, nil
}

// clearCredential drops the tokens unless a newer session has replaced them since generation was read.
func (m *Manager) clearCredential(generation uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return nil
	}
	m.generation++
	m.cred = Credential{}
	return m.store.Delete(KeyAccessToken, KeyRefreshToken, KeyTokenExpiration)
}

// Logout clears the credential, any pending authorization, and the response cache. It is idempotent.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.generation++
	m.cred = Credential{}
	err := m.store.Delete(AllKeys...)
	m.mu.Unlock()

	m.cache.Purge()
	if err != nil {
		return fmt.Errorf("failed to clear stored credential: %w", err)
	}
	m.logger.Debug("logged out")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
