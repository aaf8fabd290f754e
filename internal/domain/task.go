package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTitleLength is the longest allowed task title, in characters.
const MaxTitleLength = 200

// Task is a row of the tasks table.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	UserID      string     `json:"user_id" yaml:"user_id"`
	TeamID      *string    `json:"team_id" yaml:"team_id,omitempty"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description,omitempty"`
	Status      Status     `json:"status" yaml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	DueDate     *time.Time `json:"due_date" yaml:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitzero" yaml:"created_at"`
}

// NewTask returns a todo task of medium priority with a fresh id.
func NewTask(userID, title string) Task {
	return Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		Status:    StatusTodo,
		Priority:  PriorityMedium,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the fields the client is responsible for.
func (t Task) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return fmt.Errorf("task title cannot be empty")
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return fmt.Errorf("task title is %d characters, maximum is %d", n, MaxTitleLength)
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	return t.Priority.Validate()
}

// Done reports whether the task is finished.
func (t Task) Done() bool {
	return t.Status == StatusDone
}

// Overdue reports whether an unfinished task is past its due date.
func (t Task) Overdue(now time.Time) bool {
	return !t.Done() && t.DueDate != nil && t.DueDate.Before(now)
}

// TaskPatch holds the fields of an update; nil fields are left alone.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	TeamID      *string    `json:"team_id,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && p.TeamID == nil
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.TeamID != nil {
		team := *p.TeamID
		t.TeamID = &team
	}
	return t
}

// TaskSummary counts tasks by status.
type TaskSummary struct {
	Total      int `json:"total" yaml:"total"`
	Todo       int `json:"todo" yaml:"todo"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Done       int `json:"done" yaml:"done"`
	Overdue    int `json:"overdue" yaml:"overdue"`
}

// Summarize counts tasks by status as of now.
func Summarize(tasks []Task, now time.Time) TaskSummary {
	s := TaskSummary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			s.Todo++
		case StatusInProgress:
			s.InProgress++
		case StatusDone:
			s.Done++
		}
		if t.Overdue(now) {
			s.Overdue++
		}
	}
	return s
}
