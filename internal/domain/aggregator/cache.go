package aggregator

import (
	"sync"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// Cache is the authoritative in-memory store of merged entities, keyed by
// ref alone. Provider identity is tracked per ref as metadata so that
// entities reported by more than one provider can be surfaced, but it is
// never part of the key: the cache holds one merged record per ref.
//
// Reads hand out clones; mutation happens only through the Put, Apply and
// Replace primitives, each performed atomically under the cache lock.
// Entities live for the lifetime of the process; there is no eviction.
type Cache struct {
	mu        sync.RWMutex
	songs     map[string]*music.Song
	albums    map[string]*music.Album
	artists   map[string]*music.Artist
	playlists map[string]*music.Playlist
	sources   map[string]map[string]struct{} // ref -> provider keys that reported it
}

// CacheStats summarizes cache contents.
type CacheStats struct {
	SongCount     int `json:"songs"`
	AlbumCount    int `json:"albums"`
	ArtistCount   int `json:"artists"`
	PlaylistCount int `json:"playlists"`
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		songs:     make(map[string]*music.Song),
		albums:    make(map[string]*music.Album),
		artists:   make(map[string]*music.Artist),
		playlists: make(map[string]*music.Playlist),
		sources:   make(map[string]map[string]struct{}),
	}
}

// RecordSource notes that a provider reported an entity, independently of
// whether the sighting changed the cached record. Identical re-reports
// still count: a second provider reporting the same playlist is exactly
// what MultiProviderPlaylists exists to surface.
func (c *Cache) RecordSource(ref string, id music.ProviderID) {
	if ref == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordSource(ref, id)
}

// recordSource must be called with the write lock held.
func (c *Cache) recordSource(ref string, id music.ProviderID) {
	if id.IsZero() {
		return
	}
	set, ok := c.sources[ref]
	if !ok {
		set = make(map[string]struct{}, 1)
		c.sources[ref] = set
	}
	set[id.String()] = struct{}{}
}

// Song returns a snapshot of the cached song, if present.
func (c *Cache) Song(ref string) (*music.Song, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.songs[ref]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// PutSong inserts or wholesale-overwrites a song record.
func (c *Cache) PutSong(id music.ProviderID, s *music.Song) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := s.Clone()
	if stored.Provider.IsZero() {
		stored.Provider = id
	}
	c.songs[s.Ref] = stored
	c.recordSource(s.Ref, id)
}

// ApplySong mutates the stored song under the cache lock. Returns false
// when the ref is not cached.
func (c *Cache) ApplySong(ref string, apply func(*music.Song)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.songs[ref]
	if !ok {
		return false
	}
	apply(s)
	return true
}

// Album returns a snapshot of the cached album, if present.
func (c *Cache) Album(ref string) (*music.Album, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.albums[ref]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// PutAlbum inserts or wholesale-overwrites an album record.
func (c *Cache) PutAlbum(id music.ProviderID, a *music.Album) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := a.Clone()
	if stored.Provider.IsZero() {
		stored.Provider = id
	}
	c.albums[a.Ref] = stored
	c.recordSource(a.Ref, id)
}

// ApplyAlbum mutates the stored album under the cache lock.
func (c *Cache) ApplyAlbum(ref string, apply func(*music.Album)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.albums[ref]
	if !ok {
		return false
	}
	apply(a)
	return true
}

// Artist returns a snapshot of the cached artist, if present.
func (c *Cache) Artist(ref string) (*music.Artist, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.artists[ref]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// PutArtist inserts or wholesale-overwrites an artist record.
func (c *Cache) PutArtist(id music.ProviderID, a *music.Artist) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := a.Clone()
	if stored.Provider.IsZero() {
		stored.Provider = id
	}
	c.artists[a.Ref] = stored
	c.recordSource(a.Ref, id)
}

// ApplyArtist mutates the stored artist under the cache lock.
func (c *Cache) ApplyArtist(ref string, apply func(*music.Artist)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.artists[ref]
	if !ok {
		return false
	}
	apply(a)
	return true
}

// Playlist returns a snapshot of the cached playlist, if present.
func (c *Cache) Playlist(ref string) (*music.Playlist, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.playlists[ref]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// PutPlaylist inserts or wholesale-overwrites a playlist record.
func (c *Cache) PutPlaylist(id music.ProviderID, p *music.Playlist) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := p.Clone()
	if stored.Provider.IsZero() {
		stored.Provider = id
	}
	c.playlists[p.Ref] = stored
	c.recordSource(p.Ref, id)
}

// ReplacePlaylist swaps the stored playlist's content for the incoming
// record in one atomic step: name, the full song sequence and the offline
// attributes. Concurrent readers never observe a partially rebuilt list.
// Returns false when the ref is not cached.
func (c *Cache) ReplacePlaylist(id music.ProviderID, p *music.Playlist) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.playlists[p.Ref]
	if !ok {
		return false
	}
	stored.Name = p.Name
	stored.SongRefs = append(stored.SongRefs[:0], p.SongRefs...)
	stored.OfflineCapable = p.OfflineCapable
	stored.OfflineStatus = p.OfflineStatus
	c.recordSource(p.Ref, id)
	return true
}

// Songs returns snapshots of all cached songs.
func (c *Cache) Songs() []*music.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*music.Song, 0, len(c.songs))
	for _, s := range c.songs {
		out = append(out, s.Clone())
	}
	return out
}

// Albums returns snapshots of all cached albums.
func (c *Cache) Albums() []*music.Album {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*music.Album, 0, len(c.albums))
	for _, a := range c.albums {
		out = append(out, a.Clone())
	}
	return out
}

// Artists returns snapshots of all cached artists.
func (c *Cache) Artists() []*music.Artist {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*music.Artist, 0, len(c.artists))
	for _, a := range c.artists {
		out = append(out, a.Clone())
	}
	return out
}

// Playlists returns snapshots of all cached playlists.
func (c *Cache) Playlists() []*music.Playlist {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*music.Playlist, 0, len(c.playlists))
	for _, p := range c.playlists {
		out = append(out, p.Clone())
	}
	return out
}

// SourceCount returns how many distinct providers have reported the ref.
func (c *Cache) SourceCount(ref string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources[ref])
}

// MultiProviderPlaylists returns playlists reported by more than one
// provider. They are flagged for the caller, not deduplicated.
func (c *Cache) MultiProviderPlaylists() []*music.Playlist {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*music.Playlist
	for ref, p := range c.playlists {
		if len(c.sources[ref]) > 1 {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Stats returns entity counts.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		SongCount:     len(c.songs),
		AlbumCount:    len(c.albums),
		ArtistCount:   len(c.artists),
		PlaylistCount: len(c.playlists),
	}
}
