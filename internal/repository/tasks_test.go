package repository

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
)

func TestTasksListEmptyIsNonNil(t *testing.T) {
	repos, _, _ := newTestRepos(t, 0)

	tasks, err := repos.Tasks.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestTasksCreateAndListNewestFirst(t *testing.T) {
	repos, db, _ := newTestRepos(t, time.Minute)
	ctx := context.Background()

	first := domain.NewTask("u1", "first")
	first.CreatedAt = time.Time{}
	second := domain.NewTask("u1", "second")
	second.CreatedAt = time.Time{}
	other := domain.NewTask("u2", "not mine")

	for _, task := range []domain.Task{first, second, other} {
		_, err := repos.Tasks.Create(ctx, task)
		require.NoError(t, err)
	}

	tasks, err := repos.Tasks.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "second", tasks[0].Title)
	assert.Equal(t, "first", tasks[1].Title)

	// served from cache
	_, err = repos.Tasks.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, db.readCount("tasks"))
}

func TestTasksWriteInvalidatesCache(t *testing.T) {
	repos, db, _ := newTestRepos(t, time.Minute)
	ctx := context.Background()

	_, err := repos.Tasks.List(ctx, "u1")
	require.NoError(t, err)

	_, err = repos.Tasks.Create(ctx, domain.NewTask("u1", "new"))
	require.NoError(t, err)

	tasks, err := repos.Tasks.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, 2, db.readCount("tasks"))
}

func TestTasksCreateValidates(t *testing.T) {
	repos, db, _ := newTestRepos(t, 0)

	_, err := repos.Tasks.Create(context.Background(), domain.NewTask("u1", strings.Repeat("x", 201)))
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataInvalid))

	_, err = repos.Tasks.Create(context.Background(), domain.NewTask("", "ok"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataInvalid))
	assert.Empty(t, db.rows("tasks"))
}

func TestTasksCreateAssignsID(t *testing.T) {
	repos, _, _ := newTestRepos(t, 0)

	created, err := repos.Tasks.Create(context.Background(), domain.Task{
		UserID: "u1", Title: "no id", Status: domain.StatusTodo, Priority: domain.PriorityLow,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestTasksUpdateAndSetStatus(t *testing.T) {
	repos, _, _ := newTestRepos(t, 0)
	ctx := context.Background()

	created, err := repos.Tasks.Create(ctx, domain.NewTask("u1", "draft"))
	require.NoError(t, err)

	title := "final"
	high := domain.PriorityHigh
	updated, err := repos.Tasks.Update(ctx, created.ID, domain.TaskPatch{Title: &title, Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)

	done, err := repos.Tasks.SetStatus(ctx, created.ID, domain.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, done.Status)

	got, err := repos.Tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, "final", got.Title)
}

func TestTasksUpdateErrors(t *testing.T) {
	repos, _, _ := newTestRepos(t, 0)
	ctx := context.Background()

	_, err := repos.Tasks.Update(ctx, "missing", domain.TaskPatch{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataInvalid))

	bad := domain.Status("blocked")
	_, err = repos.Tasks.Update(ctx, "missing", domain.TaskPatch{Status: &bad})
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataInvalid))

	_, err = repos.Tasks.SetStatus(ctx, "missing", domain.StatusDone)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataNotFound))

	_, err = repos.Tasks.Get(ctx, "missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func TestTasksDelete(t *testing.T) {
	repos, db, _ := newTestRepos(t, 0)
	ctx := context.Background()

	created, err := repos.Tasks.Create(ctx, domain.NewTask("u1", "temp"))
	require.NoError(t, err)
	require.NoError(t, repos.Tasks.Delete(ctx, created.ID))
	assert.Empty(t, db.rows("tasks"))
}

func TestTasksListByTeam(t *testing.T) {
	repos, _, _ := newTestRepos(t, 0)
	ctx := context.Background()

	team := "team-1"
	task := domain.NewTask("u1", "team task")
	task.TeamID = &team
	_, err := repos.Tasks.Create(ctx, task)
	require.NoError(t, err)
	_, err = repos.Tasks.Create(ctx, domain.NewTask("u1", "personal"))
	require.NoError(t, err)

	tasks, err := repos.Tasks.ListByTeam(ctx, team)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "team task", tasks[0].Title)
}

func TestTasksBackendFailure(t *testing.T) {
	repos, db, _ := newTestRepos(t, 0)
	db.fail(http.MethodGet, "tasks", http.StatusInternalServerError)

	_, err := repos.Tasks.List(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataQueryFailed))
	assert.Contains(t, err.Error(), "injected failure")
}
