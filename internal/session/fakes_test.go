package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/domain"
)

type fakeAuth struct {
	mu        sync.Mutex
	getFn     func(ctx context.Context) (*backend.Session, error)
	listeners map[int]backend.Listener
	nextID    int
	calls     atomic.Int32
}

func newFakeAuth(s *backend.Session, err error) *fakeAuth {
	f := &fakeAuth{listeners: map[int]backend.Listener{}}
	f.set(s, err)
	return f
}

func (f *fakeAuth) set(s *backend.Session, err error) {
	f.setFunc(func(context.Context) (*backend.Session, error) { return s, err })
}

func (f *fakeAuth) setFunc(fn func(ctx context.Context) (*backend.Session, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getFn = fn
}

func (f *fakeAuth) GetSession(ctx context.Context) (*backend.Session, error) {
	f.calls.Add(1)
	f.mu.Lock()
	fn := f.getFn
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeAuth) OnAuthStateChange(fn backend.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeAuth) emit(event backend.AuthEvent, s *backend.Session) {
	f.mu.Lock()
	fns := make([]backend.Listener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(event, s)
	}
}

func (f *fakeAuth) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type fakeProfiles struct {
	mu      sync.Mutex
	profile *domain.Profile
	err     error
}

func (f *fakeProfiles) set(p *domain.Profile, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile, f.err = p, err
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil {
		return nil, nil
	}
	p := *f.profile
	p.ID = userID
	return &p, nil
}

func session(id, email string) *backend.Session {
	return &backend.Session{AccessToken: "tok", User: backend.User{ID: id, Email: email}}
}
