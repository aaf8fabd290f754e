// Package repository is the single read/write path for backend tables.
// Reads go through a shared cache so screens that need the same rows do
// not each issue their own request.
package repository

import (
	"slices"
	"time"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/cache"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

const (
	tableProfiles    = "profiles"
	tableTasks       = "tasks"
	tableTeams       = "teams"
	tableTeamMembers = "team_members"
	tableChat        = "chat_messages"
)

// Options configures the repositories.
type Options struct {
	// CacheTTL of 0 disables result caching.
	CacheTTL  time.Duration
	CacheSize int
	// AvatarBucket is the storage bucket for profile pictures.
	AvatarBucket string
	Metrics      *metrics.Metrics
}

// Repositories bundles the per-table repositories over one backend client.
type Repositories struct {
	Profiles *Profiles
	Tasks    *Tasks
	Teams    *Teams
	Chat     *Chat
}

// New creates the repositories.
func New(db *backend.Client, opts Options) *Repositories {
	bucket := opts.AvatarBucket
	if bucket == "" {
		bucket = "avatars"
	}

	return &Repositories{
		Profiles: &Profiles{
			db:     db,
			bucket: bucket,
			cache: cache.NewGroup("profiles", cache.Options[*domain.Profile]{
				Size: opts.CacheSize, TTL: opts.CacheTTL, Metrics: opts.Metrics, Clone: cloneProfile,
			}),
		},
		Tasks: &Tasks{
			db: db,
			cache: cache.NewGroup("tasks", cache.Options[[]domain.Task]{
				Size: opts.CacheSize, TTL: opts.CacheTTL, Metrics: opts.Metrics, Clone: cloneSlice[domain.Task],
			}),
		},
		Teams: &Teams{
			db: db,
			teams: cache.NewGroup("teams", cache.Options[[]domain.Team]{
				Size: opts.CacheSize, TTL: opts.CacheTTL, Metrics: opts.Metrics, Clone: cloneSlice[domain.Team],
			}),
			members: cache.NewGroup("team_members", cache.Options[[]domain.TeamMember]{
				Size: opts.CacheSize, TTL: opts.CacheTTL, Metrics: opts.Metrics, Clone: cloneSlice[domain.TeamMember],
			}),
		},
		Chat: &Chat{
			db: db,
			cache: cache.NewGroup("chat", cache.Options[[]domain.ChatMessage]{
				Size: opts.CacheSize, TTL: opts.CacheTTL, Metrics: opts.Metrics, Clone: cloneSlice[domain.ChatMessage],
			}),
		},
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}

// nonNil returns s, or an empty slice when s is nil.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
