package dashboard

import (
	"log/slog"
	"sync"

	"github.com/pavelanni/careercompass/internal/identity"
	"github.com/pavelanni/careercompass/internal/model"
)

// AuthNotifier is the identity provider's subscription hook.
type AuthNotifier interface {
	OnAuthStateChange(cb func(identity.Event)) (unsubscribe func())
}

// Registry keeps one dashboard per signed-in user.
type Registry struct {
	deps Deps

	mu     sync.Mutex
	boards map[string]*Dashboard
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, boards: make(map[string]*Dashboard)}
}

// Get returns the user's dashboard, creating it on first use.
func (r *Registry) Get(user model.Identity) *Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.boards[user.UserID]; ok {
		return d
	}
	d := New(r.deps, user)
	r.boards[user.UserID] = d
	return d
}

// Reset replaces the user's dashboard with a fresh one, used when a new
// quiz result is handed over.
func (r *Registry) Reset(user model.Identity) *Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := New(r.deps, user)
	r.boards[user.UserID] = d
	return d
}

// Drop forgets the user's dashboard.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boards[userID]; ok {
		delete(r.boards, userID)
		slog.Debug("dashboard dropped", "user_id", userID)
	}
}

// Len returns the number of live dashboards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

// Watch drops dashboards whenever their user signs out.
func (r *Registry) Watch(n AuthNotifier) (unsubscribe func()) {
	return n.OnAuthStateChange(func(e identity.Event) {
		if !e.SignedIn {
			r.Drop(e.UserID)
		}
	})
}
