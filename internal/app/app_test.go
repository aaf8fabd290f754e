package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tasksync/internal/config"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/health"
	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server: %v", err)
	}
	srv := &httptest.Server{Listener: listener, Config: &http.Server{Handler: handler}}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func fakeBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/v1/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"auth"}`))
	})
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","token_type":"bearer","expires_in":3600,
			"user":{"id":"u1","email":"ada@example.com"}}`))
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /rest/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"t1","user_id":"u1","title":"write docs","status":"todo","priority":"high"},
			{"id":"t2","user_id":"u1","title":"ship","status":"done","priority":"low"}
		]`))
	})
	mux.HandleFunc("GET /rest/v1/team_members", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	})
	return mux
}

func testConfig(t *testing.T, url string) *config.Config {
	cfg := config.Default()
	cfg.Backend.URL = url
	cfg.Backend.AnonKey = "anon"
	cfg.Backend.AutoRefresh = false
	cfg.Store.Path = filepath.Join(t.TempDir(), "credentials.json")
	cfg.Cache.TTL = 0
	return cfg
}

func TestNewRequiresBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "credentials.json")

	_, err := New(cfg, log.Discard())
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigMissing))
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, fakeBackend())
	a, err := New(testConfig(t, srv.URL), log.Discard())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	_, err = a.RequireUser(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthNoSession))

	_, err = a.Backend.SignInWithPassword(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	user, err := a.RequireUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = a.RequireProfile(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthProfileIncomplete))

	// the session survives a restart through the credential store
	again, err := New(a.Config, log.Discard())
	require.NoError(t, err)
	defer again.Close()
	user, err = again.RequireUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
}

func TestDashboardSectionsFailIndependently(t *testing.T) {
	srv := newTestServer(t, fakeBackend())
	a, err := New(testConfig(t, srv.URL), log.Discard())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	_, err = a.Dashboard(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthNoSession))

	_, err = a.Backend.SignInWithPassword(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	d, err := a.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, d.Tasks, 2)
	assert.Empty(t, d.TasksErr)
	assert.Equal(t, 2, d.Summary.Total)
	assert.Equal(t, 1, d.Summary.Done)
	assert.Nil(t, d.Profile)
	assert.Empty(t, d.ProfileErr)
	assert.NotNil(t, d.Teams)
	assert.Equal(t, "failed to load teams", d.TeamsErr)
}

func TestHealthManager(t *testing.T) {
	srv := newTestServer(t, fakeBackend())
	a, err := New(testConfig(t, srv.URL), log.Discard())
	require.NoError(t, err)
	defer a.Close()

	report := a.HealthManager().Check(context.Background())
	require.Len(t, report.Results, 4)
	assert.Equal(t, "backend-api", report.Results[0].Name)
	assert.Equal(t, health.StatusHealthy, report.Results[0].Status)
	assert.Equal(t, health.StatusDegraded, report.Status)
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := newTestServer(t, fakeBackend())
	cfg := testConfig(t, srv.URL)
	cfg.Backend.AutoRefresh = true
	a, err := New(cfg, log.Discard())
	require.NoError(t, err)

	a.Close()
	a.Close()
}

func TestFetchRecordsUnderName(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	a := &App{Logger: log.Discard(), Metrics: m}

	st := Fetch(a, "chat_history", func(context.Context) ([]string, error) {
		return nil, errors.NewQueryError("chat_messages", assert.AnError)
	}).Load(context.Background())

	assert.Equal(t, "failed to load chat_messages", st.Err)
	assert.False(t, st.Loading)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("chat_history", "error")))
}
