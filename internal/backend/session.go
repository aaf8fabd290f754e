package backend

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated backend session.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         User   `json:"user"`
}

// User is the backend's account record.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    time.Time      `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Expiry returns when the access token expires, or the zero time if unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

func (s *Session) expiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(d).Before(s.Expiry())
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.User.UserMetadata = maps.Clone(s.User.UserMetadata)
	return &cp
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// complete fills the user id, email and expiry from the access token when
// the response left them out. The token is not verified: the backend
// already did that, the client only reads it.
func (s *Session) complete(now time.Time) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Unix() + s.ExpiresIn
	}
	if s.User.ID != "" && s.User.Email != "" && s.ExpiresAt != 0 {
		return
	}

	token, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &tokenClaims{})
	if err != nil {
		return
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok {
		return
	}
	if s.User.ID == "" {
		s.User.ID = claims.Subject
	}
	if s.User.Email == "" {
		s.User.Email = claims.Email
	}
	if s.ExpiresAt == 0 && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Unix()
	}
}
