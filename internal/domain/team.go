package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Team is a row of the teams table.
type Team struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description,omitempty"`
	OwnerID     string    `json:"owner_id" yaml:"owner_id"`
	CreatedAt   time.Time `json:"created_at,omitzero" yaml:"created_at"`
}

// MemberRole is a member's role within a team.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// TeamMember is a row of the team_members table.
type TeamMember struct {
	TeamID    string     `json:"team_id" yaml:"team_id"`
	UserID    string     `json:"user_id" yaml:"user_id"`
	Role      MemberRole `json:"role" yaml:"role"`
	CreatedAt time.Time  `json:"created_at,omitzero" yaml:"created_at"`
}

// NewTeam returns a team owned by ownerID with a fresh id.
func NewTeam(ownerID, name, description string) Team {
	return Team{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		OwnerID:     ownerID,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the team name.
func (t Team) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("team name cannot be empty")
	}
	if len(t.Name) > 100 {
		return fmt.Errorf("team name exceeds 100 characters")
	}
	return nil
}

// FindTeam returns the team with id, scanning teams in order.
func FindTeam(teams []Team, id string) (Team, bool) {
	for _, t := range teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

// TeamName resolves a task's team to a name, or "" for personal tasks
// and teams that are not in the slice.
func TeamName(teams []Team, task Task) string {
	if task.TeamID == nil {
		return ""
	}
	t, ok := FindTeam(teams, *task.TeamID)
	if !ok {
		return ""
	}
	return t.Name
}
