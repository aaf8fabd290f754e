// Package app wires the TaskSync services together. One App is created per
// process and handed to the commands that need it.
package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/tasksync/internal/assistant"
	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/config"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/health"
	"github.com/felixgeelhaar/tasksync/internal/httpx"
	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
	"github.com/felixgeelhaar/tasksync/internal/news"
	"github.com/felixgeelhaar/tasksync/internal/repository"
	"github.com/felixgeelhaar/tasksync/internal/securestore"
	"github.com/felixgeelhaar/tasksync/internal/session"
	"github.com/felixgeelhaar/tasksync/internal/version"
)

// App holds the long-lived services.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Store     *securestore.Store
	Backend   *backend.Client
	Repos     *repository.Repositories
	Session   *session.Controller
	News      *news.Client
	Assistant *assistant.Client
	Chat      *assistant.Chat

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New builds every service from cfg. The backend settings are required;
// news and assistant keys are optional and checked on use.
func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	if err := cfg.RequireBackend(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.Config{
			Level:     log.ParseLevel(cfg.Log.Level),
			Format:    log.ParseFormat(cfg.Log.Format),
			Component: "tasksync",
		})
	}

	registry, m := metrics.NewRegistry()

	store, err := securestore.Open(cfg.Store.Path, cfg.Store.Passphrase)
	if err != nil {
		return nil, err
	}

	transport := func(service string) httpx.Options {
		return httpx.Options{
			Service:   service,
			Timeout:   cfg.HTTP.Timeout,
			RetryMax:  cfg.HTTP.RetryMax,
			UserAgent: version.UserAgent(),
			Logger:    logger,
			Metrics:   m,
		}
	}

	db, err := backend.New(backend.Options{
		URL:        cfg.Backend.URL,
		AnonKey:    cfg.Backend.AnonKey,
		HTTPClient: httpx.New(transport("backend")),
		Store:      store,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}

	repos := repository.New(db, repository.Options{
		CacheTTL:     cfg.Cache.TTL,
		CacheSize:    cfg.Cache.Size,
		AvatarBucket: cfg.Backend.AvatarBucket,
		Metrics:      m,
	})

	ai := assistant.New(assistant.Options{
		BaseURL:         cfg.Assistant.BaseURL,
		APIKey:          cfg.Assistant.APIKey,
		Model:           cfg.Assistant.Model,
		Temperature:     cfg.Assistant.Temperature,
		TopK:            cfg.Assistant.TopK,
		TopP:            cfg.Assistant.TopP,
		MaxOutputTokens: cfg.Assistant.MaxOutputTokens,
		HTTPClient:      httpx.New(transport("assistant")),
		Logger:          logger,
		Metrics:         m,
	})

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  m,
		Store:    store,
		Backend:  db,
		Repos:    repos,
		Session:  session.NewController(db, repos.Profiles, session.WithLogger(logger), session.WithMetrics(m)),
		News:      NewsClient(cfg, logger, m),
		Assistant: ai,
		Chat:      assistant.NewChat(repos.Chat, ai, logger),
		ctx:       ctx,
		cancel:    cancel,
	}

	if cfg.Backend.AutoRefresh {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			db.AutoRefresh(ctx)
		}()
	}

	return a, nil
}

// NewsClient builds the news client on its own. Headlines need no backend
// or sign-in, so the news commands use this instead of New.
func NewsClient(cfg *config.Config, logger *log.Logger, m *metrics.Metrics) *news.Client {
	return news.New(news.Options{
		BaseURL: cfg.News.BaseURL,
		APIKey:  cfg.News.APIKey,
		Country: cfg.News.Country,
		HTTPClient: httpx.New(httpx.Options{
			Service:   "news",
			Timeout:   cfg.HTTP.Timeout,
			RetryMax:  cfg.HTTP.RetryMax,
			UserAgent: version.UserAgent(),
			Logger:    logger,
			Metrics:   m,
		}),
		Logger:  logger,
		Metrics: m,
	})
}

// SessionState returns the current session state. The first call starts
// the controller, later calls re-run the check.
func (a *App) SessionState(ctx context.Context) session.State {
	started := false
	var st session.State
	a.startOnce.Do(func() {
		started = true
		st = a.Session.Start(a.ctx)
	})
	if started {
		return st
	}
	return a.Session.CheckAuthState(ctx)
}

// RequireUser returns the signed-in user or a no-session error.
func (a *App) RequireUser(ctx context.Context) (*session.UserRef, error) {
	st := a.SessionState(ctx)
	if !st.LoggedIn || st.User == nil {
		return nil, errors.NewNoSessionError()
	}
	return st.User, nil
}

// RequireProfile is RequireUser plus a completed profile.
func (a *App) RequireProfile(ctx context.Context) (*session.UserRef, error) {
	st := a.SessionState(ctx)
	if !st.LoggedIn || st.User == nil {
		return nil, errors.NewNoSessionError()
	}
	if !st.HasProfile {
		return nil, errors.NewProfileIncompleteError()
	}
	return st.User, nil
}

// HealthManager returns the checks `doctor` runs.
func (a *App) HealthManager() *health.Manager {
	m := health.NewManager()
	m.AddChecker(health.NewBackendChecker(a.Backend))
	m.AddChecker(health.NewStoreChecker(a.Store))
	m.AddChecker(health.NewKeyChecker("news-api", a.News.Configured(), config.EnvPrefix+"_NEWS_API_KEY"))
	m.AddChecker(health.NewKeyChecker("assistant-api", a.Assistant.Configured(), config.EnvPrefix+"_ASSISTANT_API_KEY"))
	return m
}

// Close stops background work and waits for it to finish.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Session.Close()
		a.cancel()
		a.wg.Wait()
	})
}
