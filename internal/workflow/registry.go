package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
)

// Factory builds a controller for a user whose calls authenticate with token.
type Factory func(userID string, token *tenderapi.MutableToken) *Controller

type registryEntry struct {
	ctrl  *Controller
	token *tenderapi.MutableToken
}

// Registry keeps one controller per user and drops controllers idle for longer
// than the TTL. Background jobs started by a dropped controller run to their
// poll budget and then stop.
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	ttl     time.Duration
	factory Factory
	base    context.Context
}

// NewRegistry creates a registry. base is the parent context for background jobs.
func NewRegistry(base context.Context, ttl time.Duration, factory Factory) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if base == nil {
		base = context.Background()
	}
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(userID string, _ interface{}) {
		telemetry.Info("workflow.session.evicted", map[string]any{"user_id": userID})
	})
	return &Registry{cache: c, ttl: ttl, factory: factory, base: base}
}

// Get returns the user's controller, creating it on first use. A changed token
// is swapped into the existing controller's client.
func (r *Registry) Get(userID, token string) (*Controller, error) {
	if userID == "" {
		return nil, errors.New("workflow: user id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if raw, ok := r.cache.Get(userID); ok {
		entry := raw.(*registryEntry)
		if token != "" && entry.token.Current() != token {
			entry.token.Set(token)
		}
		r.cache.Set(userID, entry, r.ttl)
		return entry.ctrl, nil
	}
	if r.factory == nil {
		return nil, errors.New("workflow: registry has no factory")
	}
	tok := tenderapi.NewMutableToken(token)
	entry := &registryEntry{ctrl: r.factory(userID, tok), token: tok}
	r.cache.Set(userID, entry, r.ttl)
	telemetry.Info("workflow.session.created", map[string]any{"user_id": userID})
	return entry.ctrl, nil
}

// Drop forgets a user's controller, e.g. on logout.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(userID)
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Background returns the context background jobs should run under.
func (r *Registry) Background() context.Context {
	return r.base
}
