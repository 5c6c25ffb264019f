package target

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"ghostsync/cli/internal/global"
)

type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Target
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		byID:  map[string]Target{},
		order: []string{},
	}
}

var TargetRegistry = NewRegistry()

func (r *Registry) Register(t Target) error {
	if r == nil {
		return errors.New("registry is nil")
	}
	if t == nil {
		return errors.New("target is nil")
	}
	id := strings.TrimSpace(t.ID())
	if id == "" {
		return errors.New("target id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("target %q already registered", id)
	}
	r.byID[id] = t
	r.order = append(r.order, id)
	return nil
}

func (r *Registry) MustRegister(t Target) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(id string) (Target, bool) {
	if r == nil {
		return nil, false
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

func (r *Registry) List() []Target {
	if r == nil {
		return []Target{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Target, 0, len(r.order))
	for _, id := range r.order {
		if t := r.byID[id]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Resolve loads the profile for id from store, creating profile.toml from the
// target's defaults when it does not exist yet.
func (r *Registry) Resolve(id string, store *global.ProfileStore) (Target, Profile, error) {
	t, ok := r.Get(id)
	if !ok {
		return nil, Profile{}, fmt.Errorf("unknown target app %q", id)
	}
	defaults := t.DefaultProfile()
	if store == nil {
		return t, defaults, nil
	}
	cfg, err := store.LoadOrInit(defaults.Config())
	if err != nil {
		return nil, Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if cfg.App != "" && cfg.App != t.ID() {
		// profile.toml was written for another app; keep the requested target.
		return t, defaults, nil
	}
	p := ProfileFromConfig(cfg)
	p.ID = t.ID()
	return t, p, nil
}
