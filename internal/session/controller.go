// Package session tracks whether the user is signed in and has finished
// onboarding, and keeps that state current as auth events arrive.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

// AuthSource is the part of the backend client the controller needs.
type AuthSource interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	OnAuthStateChange(fn backend.Listener) (unsubscribe func())
}

// ProfileSource looks up a user's profile. A missing row is (nil, nil).
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

// UserRef identifies the signed-in user.
type UserRef struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
}

// State is the session as consumers see it. HasProfile implies LoggedIn.
// User is nil whenever LoggedIn is false, except while a check started by
// an auth event is loading: the event's user is mirrored at once.
type State struct {
	LoggedIn   bool     `json:"logged_in" yaml:"logged_in"`
	HasProfile bool     `json:"has_profile" yaml:"has_profile"`
	User       *UserRef `json:"user" yaml:"user"`
	Loading    bool     `json:"loading" yaml:"loading"`
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Phase labels where the controller is in its lifecycle.
type Phase string

const (
	PhaseInit                     Phase = "init"
	PhaseChecking                 Phase = "checking"
	PhaseUnauthenticated          Phase = "unauthenticated"
	PhaseAuthenticatedNoProfile   Phase = "authenticated_no_profile"
	PhaseAuthenticatedWithProfile Phase = "authenticated_with_profile"
)

// PhaseOf maps a settled state to its phase.
func PhaseOf(s State) Phase {
	switch {
	case s.Loading:
		return PhaseChecking
	case !s.LoggedIn:
		return PhaseUnauthenticated
	case !s.HasProfile:
		return PhaseAuthenticatedNoProfile
	default:
		return PhaseAuthenticatedWithProfile
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

type subscriber struct {
	id   int
	fn   func(State)
	last atomic.Uint64
}

// Controller owns the session state. It is safe for concurrent use; create
// one per application and hand it to whoever needs it.
type Controller struct {
	auth     AuthSource
	profiles ProfileSource
	logger   *log.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	state   State
	phase   Phase
	gen     uint64 // bumped when a check starts or the state is reset
	version uint64 // bumped on every state write
	subs    []*subscriber
	nextSub int

	started     bool
	closed      bool
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewController creates a controller in the init phase.
func NewController(auth AuthSource, profiles ProfileSource, opts ...Option) *Controller {
	c := &Controller{
		auth:     auth,
		profiles: profiles,
		phase:    PhaseInit,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger).Named("session")
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Subscribe calls fn after every state change until the returned function
// is called. fn may run on any goroutine and never sees an older state
// after a newer one.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, &subscriber{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// CheckAuthState recomputes the state from the backend and returns it.
// Failures of either lookup leave the user signed out; they are logged,
// not returned. When checks overlap, the one started last wins.
func (c *Controller) CheckAuthState(ctx context.Context) State {
	gen := c.beginCheck()
	c.notify()

	next, ok := c.finishCheck(gen, c.resolve(ctx))
	if ok {
		c.notify()
	}
	return next
}

func (c *Controller) beginCheck() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state.Loading = true
	c.phase = PhaseChecking
	c.version++
	return c.gen
}

// finishCheck stores next unless a newer check or a reset has started
// since gen. It returns the current state and whether next was stored.
func (c *Controller) finishCheck(gen uint64, next State) (State, bool) {
	c.mu.Lock()
	if gen != c.gen {
		current := c.state.clone()
		c.mu.Unlock()
		c.logger.Debug("discarding stale session check")
		return current, false
	}
	c.state = next
	c.phase = PhaseOf(next)
	c.version++
	phase := c.phase
	c.mu.Unlock()

	c.metrics.RecordSessionCheck(string(phase))
	return next.clone(), true
}

func (c *Controller) resolve(ctx context.Context) State {
	s, err := c.auth.GetSession(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("session lookup failed, treating as signed out")
		return State{}
	}
	if s == nil {
		return State{}
	}

	user := &UserRef{ID: s.User.ID, Email: s.User.Email}
	profile, err := c.profiles.Get(ctx, s.User.ID)
	if err != nil {
		c.logger.WithError(err).Warn("profile lookup failed, treating as signed out", "user_id", user.ID)
		return State{}
	}

	return State{
		LoggedIn:   true,
		HasProfile: profile != nil && profile.Complete(),
		User:       user,
	}
}

// Start subscribes to backend auth events and runs the first check. Each
// event re-runs the check; sign-out resets the state at once. Close, or
// cancelling ctx, stops listening.
func (c *Controller) Start(ctx context.Context) State {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return c.State()
	}
	c.started = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.unsubscribe = c.auth.OnAuthStateChange(func(event backend.AuthEvent, s *backend.Session) {
		c.handleEvent(ctx, event, s)
	})
	c.mu.Unlock()

	context.AfterFunc(ctx, c.Close)
	return c.CheckAuthState(ctx)
}

func (c *Controller) handleEvent(ctx context.Context, event backend.AuthEvent, s *backend.Session) {
	if ctx.Err() != nil {
		return
	}
	c.logger.Debug("auth event", "event", string(event))

	if event == backend.EventSignedOut {
		c.reset()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	mirrored := s != nil
	if mirrored {
		c.state.User = &UserRef{ID: s.User.ID, Email: s.User.Email}
		c.state.Loading = true
		c.phase = PhaseChecking
		c.version++
	}
	c.wg.Add(1)
	c.mu.Unlock()

	if mirrored {
		c.notify()
	}

	// Subscribers are notified after Done so that they may call Close.
	go func() {
		gen := c.beginCheck()
		_, ok := c.finishCheck(gen, c.resolve(ctx))
		c.wg.Done()
		if ok {
			c.notify()
		}
	}()
}

// reset returns to the signed-out state and invalidates in-flight checks.
func (c *Controller) reset() {
	c.mu.Lock()
	c.gen++
	c.state = State{}
	c.phase = PhaseUnauthenticated
	c.version++
	c.mu.Unlock()

	c.metrics.RecordSessionCheck(string(PhaseUnauthenticated))
	c.notify()
}

// Close stops listening for auth events and waits for running checks.
// It may be called from a Subscribe callback.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe, cancel := c.unsubscribe, c.cancel
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Controller) notify() {
	c.mu.Lock()
	state := c.state.clone()
	version := c.version
	subs := append([]*subscriber(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		if !claim(&s.last, version) {
			continue
		}
		s.fn(state.clone())
	}
}

// claim records version as delivered unless a newer one already was.
func claim(last *atomic.Uint64, version uint64) bool {
	for {
		prev := last.Load()
		if version <= prev {
			return false
		}
		if last.CompareAndSwap(prev, version) {
			return true
		}
	}
}
