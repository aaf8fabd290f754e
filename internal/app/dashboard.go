package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/fetch"
	"github.com/felixgeelhaar/tasksync/internal/session"
)

// Dashboard is the signed-in landing view. Each section loads on its own;
// a failed section carries its message and the others still render.
type Dashboard struct {
	User       session.UserRef    `json:"user" yaml:"user"`
	Profile    *domain.Profile    `json:"profile,omitempty" yaml:"profile,omitempty"`
	ProfileErr string             `json:"profile_error,omitempty" yaml:"profile_error,omitempty"`
	Summary    domain.TaskSummary `json:"summary" yaml:"summary"`
	Tasks      []domain.Task      `json:"tasks" yaml:"tasks"`
	TasksErr   string             `json:"tasks_error,omitempty" yaml:"tasks_error,omitempty"`
	Teams      []domain.Team      `json:"teams" yaml:"teams"`
	TeamsErr   string             `json:"teams_error,omitempty" yaml:"teams_error,omitempty"`
}

// Dashboard loads the signed-in user's profile, tasks and teams
// concurrently.
func (a *App) Dashboard(ctx context.Context) (*Dashboard, error) {
	user, err := a.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	profile := Fetch(a, "profile", func(ctx context.Context) (*domain.Profile, error) {
		return a.Repos.Profiles.Get(ctx, user.ID)
	})
	tasks := Fetch(a, "tasks", func(ctx context.Context) ([]domain.Task, error) {
		return a.Repos.Tasks.List(ctx, user.ID)
	})
	teams := Fetch(a, "teams", func(ctx context.Context) ([]domain.Team, error) {
		return a.Repos.Teams.List(ctx, user.ID)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { profile.Load(gctx); return nil })
	g.Go(func() error { tasks.Load(gctx); return nil })
	g.Go(func() error { teams.Load(gctx); return nil })
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, t, tm := profile.State(), tasks.State(), teams.State()
	return &Dashboard{
		User:       *user,
		Profile:    p.Data,
		ProfileErr: p.Err,
		Summary:    domain.Summarize(t.Data, time.Now()),
		Tasks:      nonNil(t.Data),
		TasksErr:   t.Err,
		Teams:      nonNil(tm.Data),
		TeamsErr:   tm.Err,
	}, nil
}

// Fetch creates a resource that logs and records metrics under name.
func Fetch[T any](a *App, name string, fn fetch.Func[T]) *fetch.Resource[T] {
	return fetch.New(fn, fetch.WithName(name), fetch.WithLogger(a.Logger), fetch.WithMetrics(a.Metrics))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
