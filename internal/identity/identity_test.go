package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func newTestProvider(t *testing.T) (*Provider, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, 0), s
}

func TestSignInResolveSignOut(t *testing.T) {
	p, s := newTestProvider(t)
	ctx := context.Background()

	var events []Event
	unsubscribe := p.OnAuthStateChange(func(e Event) { events = append(events, e) })

	id, err := p.SignIn(ctx, "  Asha  ")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if id.DisplayName != "Asha" {
		t.Errorf("DisplayName = %q, want %q", id.DisplayName, "Asha")
	}
	if id.Token == "" || id.UserID == "" {
		t.Fatalf("identity = %+v, want token and user id", id)
	}

	u, err := p.Resolve(ctx, id.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.ID != id.UserID || u.Role != model.UserRoleStudent {
		t.Errorf("resolved user = %+v", u)
	}

	if err := p.SignOut(ctx, id.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := p.Resolve(ctx, id.Token); !errors.Is(err, ErrNoSession) {
		t.Errorf("Resolve after sign-out error = %v, want ErrNoSession", err)
	}
	if u, err := s.GetUserByID(id.UserID); err != nil || u == nil || u.Active {
		t.Errorf("anonymous user after sign-out = %+v, %v; want inactive", u, err)
	}

	if len(events) != 2 || !events[0].SignedIn || events[1].SignedIn || events[1].UserID != id.UserID {
		t.Errorf("events = %+v", events)
	}

	unsubscribe()
	unsubscribe()
	if _, err := p.SignIn(ctx, "Ravi"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("unsubscribed callback still called: %+v", events)
	}
}

func TestSignInTruncatesName(t *testing.T) {
	p, _ := newTestProvider(t)
	id, err := p.SignIn(context.Background(), strings.Repeat("अ", 80))
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if n := len([]rune(id.DisplayName)); n != maxDisplayName {
		t.Errorf("name length = %d, want %d", n, maxDisplayName)
	}
}

func TestSessionTTL(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	p := New(s, 10*time.Millisecond)

	id, err := p.SignIn(context.Background(), "Asha")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := p.Resolve(context.Background(), id.Token); !errors.Is(err, ErrNoSession) {
		t.Errorf("Resolve after expiry error = %v, want ErrNoSession", err)
	}
	if err := p.SignOut(context.Background(), id.Token); err != nil {
		t.Errorf("SignOut of expired token: %v", err)
	}
}

func TestSignOutUnknownToken(t *testing.T) {
	p, _ := newTestProvider(t)
	if err := p.SignOut(context.Background(), "nope"); err != nil {
		t.Errorf("SignOut unknown token: %v", err)
	}
}

func TestResolveErrors(t *testing.T) {
	p, _ := newTestProvider(t)
	for _, token := range []string{"", "missing"} {
		_, err := p.Resolve(context.Background(), token)
		var ae *model.AuthError
		if !errors.As(err, &ae) {
			t.Errorf("Resolve(%q) error = %v, want AuthError", token, err)
		}
	}
}

func TestLogin(t *testing.T) {
	p, s := newTestProvider(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, err := s.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid", "admin", "secret", false},
		{"wrong password", "admin", "guess", true},
		{"unknown user", "root", "secret", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, u, err := p.Login(context.Background(), tt.username, tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrBadPassword) {
					t.Errorf("error = %v, want ErrBadPassword", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if u.Role != model.UserRoleAdmin || id.Token == "" {
				t.Errorf("login = %+v %+v", id, u)
			}
		})
	}
}
