// Package identity signs students in anonymously and admins in with a
// password, backed by sqlite users and session tokens.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/store"

	"golang.org/x/crypto/bcrypt"
)

const maxDisplayName = 50

// DefaultSessionTTL is how long a sign-in stays valid.
const DefaultSessionTTL = 24 * time.Hour

var (
	ErrNoSession   = errors.New("no valid session")
	ErrBadPassword = errors.New("invalid username or password")
)

// Event reports a sign-in or sign-out.
type Event struct {
	UserID   string
	SignedIn bool
}

// Provider hands out identities and notifies subscribers of auth changes.
type Provider struct {
	store      *store.Store
	sessionTTL time.Duration

	mu   sync.Mutex
	subs map[int]func(Event)
	next int
}

// New creates a provider over s whose sessions last sessionTTL; zero or
// less means DefaultSessionTTL.
func New(s *store.Store, sessionTTL time.Duration) *Provider {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Provider{store: s, sessionTTL: sessionTTL, subs: make(map[int]func(Event))}
}

// SignIn creates an anonymous student with the given display name and a
// session for it. An empty name is allowed; greetings fall back to a default.
func (p *Provider) SignIn(ctx context.Context, displayName string) (model.Identity, error) {
	name := strings.TrimSpace(displayName)
	if utf8.RuneCountInString(name) > maxDisplayName {
		name = string([]rune(name)[:maxDisplayName])
	}

	id, err := p.store.CreateUser(model.User{
		DisplayName: name,
		Role:        model.UserRoleStudent,
		Active:      true,
	})
	if err != nil {
		return model.Identity{}, &model.AuthError{Op: "sign-in", Err: err}
	}
	token, err := p.store.CreateAuthSession(id, p.sessionTTL)
	if err != nil {
		return model.Identity{}, &model.AuthError{Op: "sign-in", Err: err}
	}

	slog.Info("student signed in", "user_id", id)
	p.notify(Event{UserID: id, SignedIn: true})
	return model.Identity{UserID: id, DisplayName: name, Token: token}, nil
}

// Login authenticates a user with a password (admins).
func (p *Provider) Login(ctx context.Context, username, password string) (model.Identity, *model.User, error) {
	user, err := p.store.GetUserByUsername(username)
	if err != nil {
		return model.Identity{}, nil, &model.AuthError{Op: "login", Err: err}
	}
	if user == nil || !user.Active {
		return model.Identity{}, nil, &model.AuthError{Op: "login", Err: ErrBadPassword}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.Identity{}, nil, &model.AuthError{Op: "login", Err: ErrBadPassword}
	}

	token, err := p.store.CreateAuthSession(user.ID, p.sessionTTL)
	if err != nil {
		return model.Identity{}, nil, &model.AuthError{Op: "login", Err: err}
	}
	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	p.notify(Event{UserID: user.ID, SignedIn: true})
	return model.Identity{UserID: user.ID, DisplayName: user.DisplayName, Token: token}, user, nil
}

// Resolve returns the active user behind a session token.
func (p *Provider) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, &model.AuthError{Op: "resolve", Err: ErrNoSession}
	}
	sess, err := p.store.GetAuthSession(token)
	if errors.Is(err, model.ErrNotFound) {
		return nil, &model.AuthError{Op: "resolve", Err: ErrNoSession}
	}
	if err != nil {
		return nil, &model.AuthError{Op: "resolve", Err: err}
	}
	user, err := p.store.GetUserByID(sess.UserID)
	if err != nil {
		return nil, &model.AuthError{Op: "resolve", Err: err}
	}
	if user == nil || !user.Active {
		return nil, &model.AuthError{Op: "resolve", Err: ErrNoSession}
	}
	return user, nil
}

// SignOut ends the session behind token. An anonymous identity is retired
// with all of its sessions, since nobody can sign into it again. Signing out
// an unknown or expired token is not an error.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	sess, err := p.store.GetAuthSession(token)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &model.AuthError{Op: "sign-out", Err: err}
	}
	if err := p.store.DeleteAuthSession(token); err != nil {
		return &model.AuthError{Op: "sign-out", Err: err}
	}
	user, err := p.store.GetUserByID(sess.UserID)
	if err != nil {
		return &model.AuthError{Op: "sign-out", Err: err}
	}
	if user != nil && user.Username == "" {
		if _, err := p.store.DeleteUserSessions(user.ID); err != nil {
			return &model.AuthError{Op: "sign-out", Err: err}
		}
		if err := p.store.DeactivateUser(user.ID); err != nil {
			return &model.AuthError{Op: "sign-out", Err: err}
		}
	}
	slog.Info("signed out", "user_id", sess.UserID)
	p.notify(Event{UserID: sess.UserID, SignedIn: false})
	return nil
}

// OnAuthStateChange registers cb for every sign-in and sign-out. The
// returned function unsubscribes.
func (p *Provider) OnAuthStateChange(cb func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = cb
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) notify(e Event) {
	p.mu.Lock()
	subs := make([]func(Event), 0, len(p.subs))
	for _, cb := range p.subs {
		subs = append(subs, cb)
	}
	p.mu.Unlock()

	for _, cb := range subs {
		cb(e)
	}
}
