package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

type row struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestExecuteBuildsFilters(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/tasks", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, "eq.user-1", q.Get("user_id"))
		assert.Equal(t, "is.null", q.Get("team_id"))
		assert.Equal(t, "in.(todo,done)", q.Get("status"))
		assert.Equal(t, "created_at.desc,id.asc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		// anon key when signed out
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`[{"id":"t1","title":"one"},{"id":"t2","title":"two"}]`))
	}))

	c := newTestClient(t, srv, nil)
	var rows []row
	err := c.From("tasks").
		Select("*").
		Eq("user_id", "user-1").
		Is("team_id", "null").
		In("status", []string{"todo", "done"}).
		Order("created_at", false).
		Order("id", true).
		Limit(10).
		Execute(context.Background(), &rows)

	require.NoError(t, err)
	assert.Equal(t, []row{{"t1", "one"}, {"t2", "two"}}, rows)
}

func TestExecuteUsesSessionToken(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`[]`))
	}))

	c := newTestClient(t, srv, nil)
	c.session = &Session{AccessToken: "user-token", ExpiresAt: time.Now().Add(time.Hour).Unix()}

	var rows []row
	require.NoError(t, c.From("tasks").Select("*").Execute(context.Background(), &rows))
	assert.Empty(t, rows)
}

func TestMaybeSingle(t *testing.T) {
	var body atomic.Value
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	c := newTestClient(t, srv, nil)

	t.Run("no row", func(t *testing.T) {
		body.Store(`[]`)
		var r row
		found, err := c.From("profiles").Eq("id", "x").MaybeSingle(context.Background(), &r)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("one row", func(t *testing.T) {
		body.Store(`[{"id":"x","title":"hi"}]`)
		var r row
		found, err := c.From("profiles").Eq("id", "x").MaybeSingle(context.Background(), &r)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "hi", r.Title)
	})

	t.Run("many rows", func(t *testing.T) {
		body.Store(`[{"id":"x"},{"id":"y"}]`)
		var r row
		_, err := c.From("profiles").MaybeSingle(context.Background(), &r)
		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, "PGRST116", apiErr.Code)
	})
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"42703","message":"column tasks.nope does not exist","details":null,"hint":"Perhaps you meant tasks.note"}`))
	}))
	c := newTestClient(t, srv, nil)

	var rows []row
	err := c.From("tasks").Select("nope").Execute(context.Background(), &rows)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "42703", apiErr.Code)
	assert.Equal(t, "Perhaps you meant tasks.note", apiErr.Hint)
	assert.Contains(t, apiErr.Error(), "column tasks.nope does not exist")
	assert.True(t, IsClientError(err))
}

func TestAPIErrorFallsBackToStatusText(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	c := newTestClient(t, srv, nil)

	err := c.From("tasks").Execute(context.Background(), &[]row{})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.False(t, IsClientError(err))
}

func TestInsertReturnsRepresentation(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in row
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]row{in})
	}))
	c := newTestClient(t, srv, nil)

	var out []row
	require.NoError(t, c.From("tasks").Select("*").Insert(context.Background(), row{ID: "t1", Title: "new"}, &out))
	assert.Equal(t, []row{{"t1", "new"}}, out)
}

func TestInsertMinimal(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		w.WriteHeader(http.StatusCreated)
	}))
	c := newTestClient(t, srv, nil)

	require.NoError(t, c.From("tasks").Insert(context.Background(), row{ID: "t1"}, nil))
}

func TestUpsert(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resolution=merge-duplicates,return=minimal", r.Header.Get("Prefer"))
		assert.Equal(t, "id", r.URL.Query().Get("on_conflict"))
		w.WriteHeader(http.StatusCreated)
	}))
	c := newTestClient(t, srv, nil)

	require.NoError(t, c.From("profiles").Upsert(context.Background(), row{ID: "u1"}, "id", nil))
}

func TestUpdateAndDeleteRequireFilter(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "eq.t1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	err := c.From("tasks").Update(ctx, map[string]string{"status": "done"}, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataInvalid))
	err = c.From("tasks").Delete(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataInvalid))
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, c.From("tasks").Eq("id", "t1").Update(ctx, map[string]string{"status": "done"}, nil))
	require.NoError(t, c.From("tasks").Eq("id", "t1").Delete(ctx))
	assert.Equal(t, int32(2), calls.Load())
}

func TestUploadAndPublicURL(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/avatars/user-1/face.png", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("X-Upsert"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "png-bytes", string(data))
		_, _ = w.Write([]byte(`{"Key":"avatars/user-1/face.png"}`))
	}))
	c := newTestClient(t, srv, nil)

	err := c.Upload(context.Background(), "avatars", "user-1/face.png", strings.NewReader("png-bytes"), "image/png", true)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/avatars/user-1/face.png", c.PublicURL("avatars", "/user-1/face.png"))
}
