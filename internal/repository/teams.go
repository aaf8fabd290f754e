package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/cache"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// Teams reads and writes the teams and team_members tables.
type Teams struct {
	db      *backend.Client
	teams   *cache.Group[[]domain.Team]
	members *cache.Group[[]domain.TeamMember]
}

// TeamPatch holds the fields of a team update; nil fields are left alone.
type TeamPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// List returns the teams userID belongs to, in the order they joined.
func (r *Teams) List(ctx context.Context, userID string) ([]domain.Team, error) {
	return r.teams.Do(ctx, "user:"+userID, func(ctx context.Context) ([]domain.Team, error) {
		var rows []struct {
			Team *domain.Team `json:"team"`
		}
		err := r.db.From(tableTeamMembers).
			Select("team:teams(*)").
			Eq("user_id", userID).
			Order("created_at", true).
			Execute(ctx, &rows)
		if err != nil {
			return nil, errors.NewQueryError(tableTeams, err)
		}

		teams := make([]domain.Team, 0, len(rows))
		for _, row := range rows {
			if row.Team != nil {
				teams = append(teams, *row.Team)
			}
		}
		return teams, nil
	})
}

// Get returns one team.
func (r *Teams) Get(ctx context.Context, id string) (*domain.Team, error) {
	var t domain.Team
	found, err := r.db.From(tableTeams).Select("*").Eq("id", id).MaybeSingle(ctx, &t)
	if err != nil {
		return nil, errors.NewQueryError(tableTeams, err)
	}
	if !found {
		return nil, errors.NewNotFoundError("team", id)
	}
	return &t, nil
}

// Create inserts the team and makes its owner the first member. If the
// membership cannot be written the team is removed again.
func (r *Teams) Create(ctx context.Context, t domain.Team) (*domain.Team, error) {
	if err := t.Validate(); err != nil {
		return nil, errors.NewInvalidError(err.Error())
	}
	if t.OwnerID == "" {
		return nil, errors.NewInvalidError("team owner is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	var rows []domain.Team
	if err := r.db.From(tableTeams).Select("*").Insert(ctx, t, &rows); err != nil {
		return nil, errors.NewWriteError(tableTeams, err)
	}
	created := t
	if len(rows) > 0 {
		created = rows[0]
	}

	owner := domain.TeamMember{TeamID: created.ID, UserID: created.OwnerID, Role: domain.RoleOwner}
	if err := r.db.From(tableTeamMembers).Insert(ctx, owner, nil); err != nil {
		if delErr := r.db.From(tableTeams).Eq("id", created.ID).Delete(ctx); delErr != nil {
			err = fmt.Errorf("%w (cleanup also failed: %v)", err, delErr)
		}
		return nil, errors.NewWriteError(tableTeamMembers, err)
	}

	r.teams.Invalidate("")
	r.members.Invalidate("team:" + created.ID)
	return &created, nil
}

// Update applies patch to the team with id.
func (r *Teams) Update(ctx context.Context, id string, patch TeamPatch) (*domain.Team, error) {
	if patch.Name == nil && patch.Description == nil {
		return nil, errors.NewInvalidError("nothing to update")
	}
	if patch.Name != nil {
		if err := (domain.Team{Name: *patch.Name}).Validate(); err != nil {
			return nil, errors.NewInvalidError(err.Error())
		}
	}

	var rows []domain.Team
	err := r.db.From(tableTeams).Select("*").Eq("id", id).Update(ctx, patch, &rows)
	r.teams.Invalidate("")
	if err != nil {
		return nil, errors.NewWriteError(tableTeams, err)
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFoundError("team", id)
	}
	return &rows[0], nil
}

// Delete removes a team.
func (r *Teams) Delete(ctx context.Context, id string) error {
	err := r.db.From(tableTeams).Eq("id", id).Delete(ctx)
	r.teams.Invalidate("")
	r.members.Invalidate("team:" + id)
	if err != nil {
		return errors.NewWriteError(tableTeams, err)
	}
	return nil
}

// Members returns a team's members in the order they joined.
func (r *Teams) Members(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	return r.members.Do(ctx, "team:"+teamID, func(ctx context.Context) ([]domain.TeamMember, error) {
		var members []domain.TeamMember
		err := r.db.From(tableTeamMembers).Select("*").Eq("team_id", teamID).Order("created_at", true).Execute(ctx, &members)
		if err != nil {
			return nil, errors.NewQueryError(tableTeamMembers, err)
		}
		return nonNil(members), nil
	})
}

// AddMember adds userID to the team with role.
func (r *Teams) AddMember(ctx context.Context, teamID, userID string, role domain.MemberRole) (*domain.TeamMember, error) {
	if role == "" {
		role = domain.RoleMember
	}
	if role != domain.RoleMember && role != domain.RoleOwner {
		return nil, errors.NewInvalidError(fmt.Sprintf("invalid role %q: must be owner or member", role))
	}

	m := domain.TeamMember{TeamID: teamID, UserID: userID, Role: role}
	var rows []domain.TeamMember
	err := r.db.From(tableTeamMembers).Select("*").Insert(ctx, m, &rows)
	r.members.Invalidate("team:" + teamID)
	r.teams.Invalidate("user:" + userID)
	if err != nil {
		return nil, errors.NewWriteError(tableTeamMembers, err)
	}
	if len(rows) == 0 {
		return &m, nil
	}
	return &rows[0], nil
}

// RemoveMember removes userID from the team.
func (r *Teams) RemoveMember(ctx context.Context, teamID, userID string) error {
	err := r.db.From(tableTeamMembers).Eq("team_id", teamID).Eq("user_id", userID).Delete(ctx)
	r.members.Invalidate("team:" + teamID)
	r.teams.Invalidate("user:" + userID)
	if err != nil {
		return errors.NewWriteError(tableTeamMembers, err)
	}
	return nil
}
