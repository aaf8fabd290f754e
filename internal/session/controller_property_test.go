package session

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/log"
)

// TestController_StateInvariant drives the controller through random
// backend conditions and events and checks that HasProfile never holds
// without LoggedIn, and that a signed-out state has no user.
func TestController_StateInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		auth := newFakeAuth(nil, nil)
		profiles := &fakeProfiles{}
		c := NewController(auth, profiles, WithLogger(log.Discard()))
		ctx := context.Background()

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("session_%d", i)) {
			case 0:
				auth.set(nil, nil)
			case 1:
				auth.set(session("u", "u@example.com"), nil)
			default:
				auth.set(nil, fmt.Errorf("unreachable"))
			}

			switch rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("profile_%d", i)) {
			case 0:
				profiles.set(nil, nil)
			case 1:
				profiles.set(&domain.Profile{}, nil)
			case 2:
				profiles.set(&domain.Profile{FirstName: "Ada"}, nil)
			default:
				profiles.set(nil, fmt.Errorf("denied"))
			}

			if rapid.Bool().Draw(t, fmt.Sprintf("signout_%d", i)) {
				c.reset()
			} else {
				c.CheckAuthState(ctx)
			}

			s := c.State()
			if s.HasProfile && !s.LoggedIn {
				t.Fatalf("HasProfile without LoggedIn: %+v", s)
			}
			if !s.LoggedIn && s.User != nil {
				t.Fatalf("user set while signed out: %+v", s)
			}
			if s.Loading {
				t.Fatalf("settled state still loading: %+v", s)
			}
			if PhaseOf(s) != c.Phase() {
				t.Fatalf("phase %s does not match state %+v", c.Phase(), s)
			}
		}
	})
}

// TestController_SignOutAlwaysResets tests that sign-out wins regardless
// of the preceding state.
func TestController_SignOutAlwaysResets(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		auth := newFakeAuth(session("u", "u@example.com"), nil)
		profiles := &fakeProfiles{}
		if rapid.Bool().Draw(t, "complete") {
			profiles.set(&domain.Profile{LastName: "L"}, nil)
		}
		c := NewController(auth, profiles, WithLogger(log.Discard()))
		c.Start(context.Background())
		defer c.Close()

		auth.emit(backend.EventSignedOut, nil)
		if s := c.State(); s != (State{}) {
			t.Fatalf("state after sign-out = %+v", s)
		}
	})
}
