package agent

import (
	"fmt"
	"sync"
)

// ResolverFunc resolves an agent key to a ready-to-run Loop. Installed once
// in managed mode (DB-backed, see NewManagedResolver); standalone mode skips
// it entirely and registers pre-built loops directly via Register.
type ResolverFunc func(agentKey string) (*Loop, error)

// agentEntry caches a resolved Loop so repeated Get calls for the same
// session don't re-hit the DB/provider registry on every message.
type agentEntry struct {
	loop *Loop
}

// Router looks up the Loop responsible for a session's target agent.
// Standalone mode populates it eagerly via Register; managed mode installs
// a DB-backed resolver and lets Get populate the cache lazily, invalidating
// entries on agent config changes.
type Router struct {
	mu       sync.RWMutex
	agents   map[string]*agentEntry
	resolver ResolverFunc
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{agents: make(map[string]*agentEntry)}
}

// Register installs a pre-built loop under agentKey (standalone mode, where
// every agent is constructed up front from config.json).
func (r *Router) Register(agentKey string, loop *Loop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentKey] = &agentEntry{loop: loop}
}

// SetResolver installs the managed-mode DB-backed resolver used by Get on a
// cache miss.
func (r *Router) SetResolver(resolver ResolverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolver = resolver
}

// Get returns the Loop for agentKey, resolving (and caching) it via the
// installed resolver on a cache miss.
func (r *Router) Get(agentKey string) (*Loop, error) {
	r.mu.RLock()
	entry, ok := r.agents[agentKey]
	resolver := r.resolver
	r.mu.RUnlock()
	if ok {
		return entry.loop, nil
	}
	if resolver == nil {
		return nil, fmt.Errorf("agent %q not found", agentKey)
	}

	loop, err := resolver(agentKey)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.agents[agentKey] = &agentEntry{loop: loop}
	r.mu.Unlock()
	return loop, nil
}

// List returns the keys of every currently registered/cached agent.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.agents))
	for k := range r.agents {
		keys = append(keys, k)
	}
	return keys
}
