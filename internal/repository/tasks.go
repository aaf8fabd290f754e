package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/cache"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// Tasks reads and writes the tasks table.
type Tasks struct {
	db    *backend.Client
	cache *cache.Group[[]domain.Task]
}

// List returns the user's tasks, newest first.
func (r *Tasks) List(ctx context.Context, userID string) ([]domain.Task, error) {
	return r.cache.Do(ctx, "user:"+userID, func(ctx context.Context) ([]domain.Task, error) {
		var tasks []domain.Task
		err := r.db.From(tableTasks).Select("*").Eq("user_id", userID).Order("created_at", false).Execute(ctx, &tasks)
		if err != nil {
			return nil, errors.NewQueryError(tableTasks, err)
		}
		return nonNil(tasks), nil
	})
}

// ListByTeam returns a team's tasks, newest first.
func (r *Tasks) ListByTeam(ctx context.Context, teamID string) ([]domain.Task, error) {
	return r.cache.Do(ctx, "team:"+teamID, func(ctx context.Context) ([]domain.Task, error) {
		var tasks []domain.Task
		err := r.db.From(tableTasks).Select("*").Eq("team_id", teamID).Order("created_at", false).Execute(ctx, &tasks)
		if err != nil {
			return nil, errors.NewQueryError(tableTasks, err)
		}
		return nonNil(tasks), nil
	})
}

// Get returns one task.
func (r *Tasks) Get(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	found, err := r.db.From(tableTasks).Select("*").Eq("id", id).MaybeSingle(ctx, &t)
	if err != nil {
		return nil, errors.NewQueryError(tableTasks, err)
	}
	if !found {
		return nil, errors.NewNotFoundError("task", id)
	}
	return &t, nil
}

// Create validates and inserts t.
func (r *Tasks) Create(ctx context.Context, t domain.Task) (*domain.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, errors.NewInvalidError(err.Error())
	}
	if t.UserID == "" {
		return nil, errors.NewInvalidError("task user id is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	var rows []domain.Task
	err := r.db.From(tableTasks).Select("*").Insert(ctx, t, &rows)
	r.cache.Invalidate("")
	if err != nil {
		return nil, errors.NewWriteError(tableTasks, err)
	}
	if len(rows) == 0 {
		return &t, nil
	}
	return &rows[0], nil
}

// Update applies patch to the task with id.
func (r *Tasks) Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if patch.Empty() {
		return nil, errors.NewInvalidError("nothing to update")
	}
	if err := validatePatch(patch); err != nil {
		return nil, errors.NewInvalidError(err.Error())
	}

	var rows []domain.Task
	err := r.db.From(tableTasks).Select("*").Eq("id", id).Update(ctx, patch, &rows)
	r.cache.Invalidate("")
	if err != nil {
		return nil, errors.NewWriteError(tableTasks, err)
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFoundError("task", id)
	}
	return &rows[0], nil
}

// SetStatus moves a task to status.
func (r *Tasks) SetStatus(ctx context.Context, id string, status domain.Status) (*domain.Task, error) {
	return r.Update(ctx, id, domain.TaskPatch{Status: &status})
}

// Delete removes a task.
func (r *Tasks) Delete(ctx context.Context, id string) error {
	err := r.db.From(tableTasks).Eq("id", id).Delete(ctx)
	r.cache.Invalidate("")
	if err != nil {
		return errors.NewWriteError(tableTasks, err)
	}
	return nil
}

// validatePatch checks the fields a patch sets against the task rules.
func validatePatch(p domain.TaskPatch) error {
	probe := p.Apply(domain.Task{Title: "x", Status: domain.StatusTodo, Priority: domain.PriorityMedium})
	return probe.Validate()
}
