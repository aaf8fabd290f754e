package domain

import (
	"strings"
	"time"
)

// Profile is a row of the profiles table, keyed by the auth user id.
type Profile struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	FirstName string    `json:"first_name" yaml:"first_name"`
	LastName  string    `json:"last_name" yaml:"last_name"`
	AvatarURL *string   `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at"`
}

// Complete reports whether onboarding is finished: at least one name is set.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.FirstName) != "" || strings.TrimSpace(p.LastName) != ""
}

// DisplayName returns the full name, falling back to the email address.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return p.Email
	}
	return name
}
