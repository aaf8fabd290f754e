// Package backend is a client for a Supabase-compatible backend: password
// and PKCE auth, PostgREST-style table access and object storage.
package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

const (
	sessionKey  = "session"
	verifierKey = "pkce_verifier"

	// DefaultRefreshTick is how often AutoRefresh looks at the session.
	DefaultRefreshTick = 30 * time.Second

	// AutoRefresh renews a token that expires within this many ticks.
	refreshTicks = 3

	// GetSession treats a token this close to expiry as expired.
	expiryLeeway = 10 * time.Second
)

// SessionStore persists the session between runs.
// *securestore.Store satisfies it.
type SessionStore interface {
	Get(name string) (string, error)
	Put(name, value string, expiresAt *time.Time) error
	Delete(name string) error
}

// Options configures a Client.
type Options struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	Store      SessionStore
	Logger     *log.Logger
	Metrics    *metrics.Metrics

	// RefreshTick overrides DefaultRefreshTick.
	RefreshTick time.Duration
	// Now overrides time.Now.
	Now func() time.Time
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	store   SessionStore
	logger  *log.Logger
	metrics *metrics.Metrics
	tick    time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	session  *Session
	epoch    uint64
	verifier string

	// writeMu orders session writes with their persistence.
	writeMu sync.Mutex

	refresh singleflight.Group

	listenersMu sync.Mutex
	listeners   []listenerEntry
	nextID      int
}

type listenerEntry struct {
	id int
	fn Listener
}

// New creates a client and restores any persisted session.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.NewConfigMissingError("backend.url", "TASKSYNC_BACKEND_URL")
	}
	if opts.AnonKey == "" {
		return nil, errors.NewConfigMissingError("backend.anon_key", "TASKSYNC_BACKEND_ANON_KEY")
	}
	u, err := url.Parse(opts.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid backend url: "+opts.URL, err)
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.URL, "/"),
		anonKey: opts.AnonKey,
		http:    opts.HTTPClient,
		store:   opts.Store,
		logger:  log.OrDefault(opts.Logger).Named("backend"),
		metrics: opts.Metrics,
		tick:    opts.RefreshTick,
		now:     opts.Now,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.tick <= 0 {
		c.tick = DefaultRefreshTick
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.restore()
	return c, nil
}

// URL returns the backend base URL.
func (c *Client) URL() string {
	return c.baseURL
}

// Ping checks that the auth service answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/health"})
	if err != nil {
		return err
	}
	return parseResponse(resp, nil)
}

func (c *Client) restore() {
	if c.store == nil {
		return
	}
	raw, err := c.store.Get(sessionKey)
	if err != nil {
		c.logger.Debug("no persisted session", "reason", err.Error())
		return
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.AccessToken == "" {
		c.logger.Warn("discarding unreadable persisted session")
		_ = c.store.Delete(sessionKey)
		return
	}

	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	c.logger.Debug("restored session", "user_id", s.User.ID)
}

func (c *Client) persist(s *Session) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		c.logger.WithError(err).Warn("failed to encode session")
		return
	}
	if err := c.store.Put(sessionKey, string(data), nil); err != nil {
		c.logger.WithError(err).Warn("failed to persist session")
	}
}

func (c *Client) forget() {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(sessionKey); err != nil {
		c.logger.WithError(err).Warn("failed to remove persisted session")
	}
}

// bearer returns the token for data requests: the session's access token
// when signed in, the anon key otherwise.
func (c *Client) bearer(ctx context.Context) string {
	s, err := c.GetSession(ctx)
	if err != nil || s == nil {
		return c.anonKey
	}
	return s.AccessToken
}
