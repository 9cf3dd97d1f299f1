package provider

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// Registry tracks live provider connections and the rosetta-stone mapping
// from ref prefixes to provider identities. It is mutated from multiple
// flows and guards its state with a single mutex; all listings return
// snapshot copies so fan-out iteration never races with mutation.
type Registry struct {
	mu       sync.RWMutex
	conns    []*Connection
	rosetta  map[string]music.ProviderID
	prefixes []string // declaration order, first declared is preferred
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rosetta: make(map[string]music.ProviderID),
	}
}

// Add records a connection as active.
func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = append(r.conns, c)
}

// Remove drops a connection from the active list. Removing a connection
// that is not present is a no-op.
func (r *Registry) Remove(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.conns {
		if have == c {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			return
		}
	}
}

// Active returns a snapshot copy of the active connection list.
func (r *Registry) Active() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, len(r.conns))
	copy(out, r.conns)
	return out
}

// Get returns the active connection for an identity, or nil.
func (r *Registry) Get(id music.ProviderID) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.id == id {
			return c
		}
	}
	return nil
}

// Count returns the number of active connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// MapPrefix records that a provider owns a rosetta prefix. The mapping is
// append-only for the session; on collision the last writer wins.
func (r *Registry) MapPrefix(prefix string, id music.ProviderID) {
	if prefix == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.rosetta[prefix]; ok && prev != id {
		log.Warn().
			Str("prefix", prefix).
			Str("previous", prev.String()).
			Str("new", id.String()).
			Msg("Rosetta prefix redeclared by another provider")
	} else if !ok {
		r.prefixes = append(r.prefixes, prefix)
	}
	r.rosetta[prefix] = id
}

// PrefixOwner returns the provider identity owning a prefix.
func (r *Registry) PrefixOwner(prefix string) (music.ProviderID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.rosetta[prefix]
	return id, ok
}

// Prefixes returns all declared prefixes in declaration order.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.prefixes))
	copy(out, r.prefixes)
	return out
}

// PreferredPrefix returns the first declared prefix, if any.
func (r *Registry) PreferredPrefix() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.prefixes) == 0 {
		return "", false
	}
	return r.prefixes[0], true
}
