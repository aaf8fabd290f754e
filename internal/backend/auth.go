package backend

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// AuthEvent names an auth state transition.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Listener receives auth events. session is nil after sign-out.
type Listener func(event AuthEvent, session *Session)

// SignUpResult is returned by SignUp. Session is nil while the account
// waits for email confirmation.
type SignUpResult struct {
	User    User
	Session *Session
}

// UserAttributes are the fields UpdateUser may change.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// SignInWithPassword signs in with email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.tokenRequest(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	}, &s)
	if err != nil {
		if IsClientError(err) {
			return nil, errors.NewInvalidCredentialsError(err)
		}
		return nil, err
	}

	c.setSession(&s, EventSignedIn)
	return s.clone(), nil
}

// SignUp creates an account. data becomes the user's metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, data map[string]any) (*SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(data) > 0 {
		body["data"] = data
	}

	// The response is a session when the account is usable right away,
	// otherwise the bare user.
	var raw struct {
		Session
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	resp, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: body})
	if err == nil {
		err = parseResponse(resp, &raw)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthSignUpFailed, "sign-up failed", err)
	}

	if raw.AccessToken == "" {
		return &SignUpResult{User: User{ID: raw.ID, Email: raw.Email}}, nil
	}

	s := raw.Session
	c.setSession(&s, EventSignedIn)
	return &SignUpResult{User: s.User, Session: s.clone()}, nil
}

// SignOut ends the session. The local session is always cleared and
// SIGNED_OUT emitted; a server-side failure other than an already
// invalid token is returned afterwards.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	var serverErr error
	if s != nil {
		resp, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: s.AccessToken})
		if err == nil {
			err = parseResponse(resp, nil)
		}
		if err != nil && !IsClientError(err) {
			serverErr = err
		}
	}

	c.clearSession(true)
	if serverErr != nil {
		c.logger.WithError(serverErr).Warn("server-side sign-out failed")
	}
	return serverErr
}

// RefreshSession exchanges the refresh token for a new session.
// Concurrent callers share one request. A rejected refresh token signs
// the user out.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	v, err, _ := c.refresh.Do("refresh", func() (any, error) {
		c.mu.RLock()
		cur, epoch := c.session, c.epoch
		c.mu.RUnlock()
		if cur == nil || cur.RefreshToken == "" {
			return nil, errors.NewNoSessionError()
		}

		var s Session
		err := c.tokenRequest(ctx, "refresh_token", map[string]string{
			"refresh_token": cur.RefreshToken,
		}, &s)
		if err != nil {
			if IsClientError(err) {
				c.logger.WithError(err).Warn("refresh token rejected, signing out")
				c.clearSession(false)
			}
			return nil, errors.Wrap(errors.ErrCodeAuthRefreshFailed, "failed to refresh session", err)
		}

		if !c.replaceSession(&s, EventTokenRefreshed, epoch) {
			c.logger.Debug("dropping refresh that finished after sign-out or a new sign-in")
			return nil, errors.NewNoSessionError()
		}
		return s.clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session).clone(), nil
}

// GetSession returns the active session, or nil when signed out. A
// session at or near expiry is refreshed first.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	if s == nil {
		return nil, nil
	}
	if !s.expiresWithin(c.now(), expiryLeeway) {
		return s.clone(), nil
	}
	if s.RefreshToken == "" {
		c.clearSession(false)
		return nil, errors.New(errors.ErrCodeAuthSessionExpired, "session expired")
	}
	return c.RefreshSession(ctx)
}

// CurrentSession returns the in-memory session without touching the network.
func (c *Client) CurrentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

// GetUser fetches the signed-in user from the server.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.NewNoSessionError()
	}

	var u User
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: s.AccessToken})
	if err == nil {
		err = parseResponse(resp, &u)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser changes the signed-in user and emits USER_UPDATED.
func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.NewNoSessionError()
	}

	var u User
	resp, err := c.do(ctx, request{method: http.MethodPut, path: "/auth/v1/user", body: attrs, token: s.AccessToken})
	if err == nil {
		err = parseResponse(resp, &u)
	}
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return &u, nil
	}
	c.session.User = u
	updated := c.session.clone()
	c.mu.Unlock()
	c.persist(updated)
	c.writeMu.Unlock()

	c.metrics.RecordAuthEvent(string(EventUserUpdated))
	c.emit(EventUserUpdated, updated)
	return &u, nil
}

// OAuthURL starts a PKCE sign-in with a third-party provider and returns
// the URL to open. The verifier is kept until ExchangeCodeForSession.
func (c *Client) OAuthURL(provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", errors.NewInvalidError("oauth provider is required")
	}

	verifier := oauth2.GenerateVerifier()
	cfg := oauth2.Config{
		Endpoint: oauth2.Endpoint{AuthURL: c.baseURL + "/auth/v1/authorize"},
	}
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("provider", provider),
	}
	if redirectTo != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_to", redirectTo))
	}

	c.mu.Lock()
	c.verifier = verifier
	c.mu.Unlock()
	if c.store != nil {
		expires := c.now().Add(10 * time.Minute)
		if err := c.store.Put(verifierKey, verifier, &expires); err != nil {
			return "", errors.Wrap(errors.ErrCodeCredentialStore, "failed to save sign-in state", err)
		}
	}

	return cfg.AuthCodeURL("", opts...), nil
}

// ExchangeCodeForSession completes a PKCE sign-in started by OAuthURL.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*Session, error) {
	verifier := c.pendingVerifier()
	if verifier == "" {
		return nil, errors.New(errors.ErrCodeAuthExchangeFailed, "no pending sign-in").
			WithSuggestion("Run 'tasksync auth oauth-url' first")
	}

	var s Session
	err := c.tokenRequest(ctx, "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	}, &s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthExchangeFailed, "failed to exchange code for session", err)
	}

	c.mu.Lock()
	c.verifier = ""
	c.mu.Unlock()
	if c.store != nil {
		_ = c.store.Delete(verifierKey)
	}

	c.setSession(&s, EventSignedIn)
	return s.clone(), nil
}

// OnAuthStateChange registers fn for auth events and returns a function
// that removes it. Listeners run on the goroutine that caused the event,
// outside the client's locks.
func (c *Client) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			defer c.listenersMu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// AutoRefresh refreshes the session shortly before it expires until ctx
// is done.
func (c *Client) AutoRefresh(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	c.refreshIfDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshIfDue(ctx)
		}
	}
}

func (c *Client) refreshIfDue(ctx context.Context) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	if s == nil || s.RefreshToken == "" {
		return
	}
	if !s.expiresWithin(c.now(), refreshTicks*c.tick) {
		return
	}
	if _, err := c.RefreshSession(ctx); err != nil {
		c.logger.WithError(err).Warn("auto refresh failed")
	}
}

func (c *Client) tokenRequest(ctx context.Context, grant string, body any, s *Session) error {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	})
	if err != nil {
		return err
	}
	if err := parseResponse(resp, s); err != nil {
		return err
	}
	if s.AccessToken == "" {
		return errors.New(errors.ErrCodeAuthNoSession, "token response carried no access token")
	}
	return nil
}

func (c *Client) pendingVerifier() string {
	c.mu.RLock()
	v := c.verifier
	c.mu.RUnlock()
	if v != "" || c.store == nil {
		return v
	}
	v, err := c.store.Get(verifierKey)
	if err != nil {
		return ""
	}
	return v
}

// setSession installs a new session and starts a new epoch, so refreshes
// of the previous session can no longer land.
func (c *Client) setSession(s *Session, event AuthEvent) {
	s.complete(c.now())

	c.writeMu.Lock()
	c.mu.Lock()
	c.session = s.clone()
	c.epoch++
	c.mu.Unlock()
	c.persist(s)
	c.writeMu.Unlock()

	c.announce(event, s)
}

// replaceSession installs a refreshed session only while epoch is still
// current. It reports whether the session was installed.
func (c *Client) replaceSession(s *Session, event AuthEvent, epoch uint64) bool {
	s.complete(c.now())

	c.writeMu.Lock()
	c.mu.Lock()
	if c.epoch != epoch || c.session == nil {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return false
	}
	c.session = s.clone()
	c.mu.Unlock()
	c.persist(s)
	c.writeMu.Unlock()

	c.announce(event, s)
	return true
}

func (c *Client) announce(event AuthEvent, s *Session) {
	c.metrics.RecordAuthEvent(string(event))
	c.logger.Debug("auth state changed", "event", string(event), "user_id", s.User.ID)
	c.emit(event, s)
}

// clearSession drops the session and ends its epoch. SIGNED_OUT is
// emitted when a session existed or force is set.
func (c *Client) clearSession(force bool) {
	c.writeMu.Lock()
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.epoch++
	c.mu.Unlock()
	c.forget()
	c.writeMu.Unlock()

	if had || force {
		c.metrics.RecordAuthEvent(string(EventSignedOut))
		c.emit(EventSignedOut, nil)
	}
}

func (c *Client) emit(event AuthEvent, s *Session) {
	c.listenersMu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		fns = append(fns, l.fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(event, s.clone())
	}
}
