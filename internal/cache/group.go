// Package cache shares concurrent identical reads and keeps their results
// for a short time.
package cache

import (
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

// Options configures a Group.
type Options[T any] struct {
	// Size bounds the number of cached keys. Defaults to 128.
	Size int
	// TTL is how long a result is served from cache. 0 disables caching;
	// concurrent calls for the same key are still shared.
	TTL time.Duration
	// Clone copies a value before it is handed out, so callers cannot
	// modify the cached copy. Optional.
	Clone   func(T) T
	Metrics *metrics.Metrics
}

// Group deduplicates and caches reads of one kind of value.
type Group[T any] struct {
	name    string
	flight  singleflight.Group
	lru     *expirable.LRU[string, T]
	clone   func(T) T
	metrics *metrics.Metrics
	gen     atomic.Uint64
}

// NewGroup creates a group. name labels metrics.
func NewGroup[T any](name string, opts Options[T]) *Group[T] {
	g := &Group[T]{
		name:    name,
		clone:   opts.Clone,
		metrics: opts.Metrics,
	}
	if opts.TTL > 0 {
		size := opts.Size
		if size <= 0 {
			size = 128
		}
		g.lru = expirable.NewLRU[string, T](size, nil, opts.TTL)
	}
	if g.clone == nil {
		g.clone = func(v T) T { return v }
	}
	return g
}

// Do returns the cached value for key or calls fn. Concurrent calls for
// the same key share one fn call.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g.lru != nil {
		if v, ok := g.lru.Get(key); ok {
			g.metrics.RecordCache(g.name, "hit")
			return g.clone(v), nil
		}
	}

	gen := g.gen.Load()
	ch := g.flight.DoChan(key, func() (any, error) {
		v, err := fn(ctx)
		if err == nil && g.lru != nil && g.gen.Load() == gen {
			g.lru.Add(key, v)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		outcome := "miss"
		if res.Shared {
			outcome = "shared"
		}
		g.metrics.RecordCache(g.name, outcome)

		// The shared call ran on another caller's context; if that caller
		// went away, try again on ours.
		if res.Err != nil && isContextErr(res.Err) && ctx.Err() == nil {
			return fn(ctx)
		}
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return g.clone(res.Val.(T)), nil
	}
}

// Invalidate drops every key starting with prefix, and keeps calls that
// are already running from caching their results.
func (g *Group[T]) Invalidate(prefix string) {
	g.gen.Add(1)
	if g.lru == nil {
		return
	}
	for _, k := range g.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			g.lru.Remove(k)
		}
	}
}

// Len returns the number of cached entries.
func (g *Group[T]) Len() int {
	if g.lru == nil {
		return 0
	}
	return g.lru.Len()
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
