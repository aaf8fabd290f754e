// Package fetch runs a one-shot remote read per mount and exposes its
// progress as data, loading and error.
package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

// Func reads the remote data.
type Func[T any] func(ctx context.Context) (T, error)

// State is what the owner renders. Err is empty unless the last fetch failed.
type State[T any] struct {
	Data    T
	Loading bool
	Err     string
}

// Option configures a Resource.
type Option func(*options)

type options struct {
	name    string
	logger  *log.Logger
	metrics *metrics.Metrics
}

// WithName labels logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Resource holds the state of one fetch. Its owner mounts it with a
// context that lives as long as the owner does.
type Resource[T any] struct {
	fn      Func[T]
	name    string
	logger  *log.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	state     State[T]
	seq       uint64
	listeners map[int]func(State[T])
	nextID    int
}

// New creates an empty resource.
func New[T any](fn Func[T], opts ...Option) *Resource[T] {
	o := options{name: "resource"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resource[T]{
		fn:        fn,
		name:      o.name,
		logger:    log.OrDefault(o.logger).Named("fetch").With("resource", o.name),
		metrics:   o.metrics,
		listeners: map[int]func(State[T]){},
	}
}

// State returns the current state.
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnChange calls fn with every state the resource moves to, until the
// returned function is called.
func (r *Resource[T]) OnChange(fn func(State[T])) (remove func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Load fetches synchronously and returns the resulting state.
//
// If ctx is done by the time the fetch returns, or a newer Load has
// started, the result is dropped and the state is left as it was.
func (r *Resource[T]) Load(ctx context.Context) State[T] {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.state.Loading = true
	loading := r.state
	r.mu.Unlock()
	r.changed(loading)

	start := time.Now()
	data, err := r.fn(ctx)

	r.mu.Lock()
	if ctx.Err() != nil || seq != r.seq {
		current := r.state
		r.mu.Unlock()
		r.metrics.RecordFetchDiscarded(r.name)
		r.logger.Debug("dropping fetch result", "reason", dropReason(ctx))
		return current
	}
	if err != nil {
		r.state = State[T]{Data: r.state.Data, Err: Message(err)}
	} else {
		r.state = State[T]{Data: data}
	}
	next := r.state
	r.mu.Unlock()

	outcome := "success"
	if err != nil {
		outcome = "error"
		r.logger.WithError(err).Warn("fetch failed")
	}
	r.metrics.RecordFetch(r.name, outcome, time.Since(start))
	r.changed(next)
	return next
}

// Mount starts Load in the background. The channel closes when it is done.
func (r *Resource[T]) Mount(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Load(ctx)
	}()
	return done
}

func (r *Resource[T]) changed(s State[T]) {
	r.mu.Lock()
	fns := make([]func(State[T]), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func dropReason(ctx context.Context) string {
	if ctx.Err() != nil {
		return "owner gone"
	}
	return "superseded"
}

// Message turns err into the single line shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var coded *errors.Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}
