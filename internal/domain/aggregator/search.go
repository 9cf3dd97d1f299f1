package aggregator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// searchMerger holds at most one cached search result. Incremental
// results for the same query are unioned into it; a result for another
// query replaces the cache wholesale.
type searchMerger struct {
	mu     sync.Mutex
	cached *music.SearchResult
}

// merge folds an incoming result into the cache and returns a snapshot of
// the merged state. Results carrying no identifier get one assigned so
// subscribers can correlate deliveries of the same search session.
func (m *searchMerger) merge(res *music.SearchResult) *music.SearchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The caller's record is never written to.
	id := res.Identifier
	if id == "" {
		id = uuid.NewString()
	}

	if m.cached == nil || m.cached.Query != res.Query {
		m.cached = res.Clone()
		m.cached.Identifier = id
		return m.cached.Clone()
	}

	// Same query: most recent session identifier wins, ref lists are
	// unioned preserving existing order.
	m.cached.Identifier = id
	m.cached.Songs = unionRefs(m.cached.Songs, res.Songs)
	m.cached.Artists = unionRefs(m.cached.Artists, res.Artists)
	m.cached.Albums = unionRefs(m.cached.Albums, res.Albums)
	m.cached.Playlists = unionRefs(m.cached.Playlists, res.Playlists)

	return m.cached.Clone()
}

// current returns a snapshot of the cached result, or nil.
func (m *searchMerger) current() *music.SearchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return nil
	}
	return m.cached.Clone()
}

// unionRefs appends entries of add not yet present in base.
func unionRefs(base, add []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, r := range base {
		seen[r] = struct{}{}
	}
	for _, r := range add {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			base = append(base, r)
		}
	}
	return base
}
