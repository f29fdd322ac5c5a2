package command

import (
	"strings"
	"sync"
)

// Registry stores commands by canonical name and maintains a case-insensitive
// alias index over names and aliases. Every registration rebuilds the whole
// index from scratch — no incremental patching — so repeated dynamic
// registration can never leave stale alias entries. When two commands declare
// overlapping tokens the most recently registered command wins (last write
// wins, deliberately, to support hot-patchable command sets).
type Registry struct {
	mu    sync.RWMutex
	order []*Command          // registration order, oldest first
	index map[string]*Command // lowercased token -> command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Command)}
}

// Register adds or replaces a command and rebuilds the alias index. O(n) in
// the number of registered commands. Re-registering a name moves the command
// to the most-recent position so its tokens win collisions.
func (r *Registry) Register(cmd *Command) error {
	if err := cmd.validate(); err != nil {
		return err
	}

	canonical := strings.ToLower(cmd.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	for _, existing := range r.order {
		if strings.ToLower(existing.Name) != canonical {
			kept = append(kept, existing)
		}
	}
	r.order = append(kept, cmd)
	r.rebuildIndex()
	return nil
}

// rebuildIndex reconstructs the token index from registration order.
// Callers must hold r.mu.
func (r *Registry) rebuildIndex() {
	index := make(map[string]*Command, len(r.order)*2)
	for _, cmd := range r.order {
		index[strings.ToLower(cmd.Name)] = cmd
		for _, alias := range cmd.Aliases {
			index[strings.ToLower(alias)] = cmd
		}
	}
	r.index = index
}

// Resolve looks up a token (name or alias, optional leading slash,
// case-insensitive) in O(1).
func (r *Registry) Resolve(token string) (*Command, bool) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(token), "/"))
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.index[key]
	return cmd, ok
}

// All returns the registered commands in registration order.
func (r *Registry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
