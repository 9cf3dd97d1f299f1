// Package music defines the metadata entities federated from content providers.
package music

import "time"

// ProviderID identifies a content provider by name and endpoint. Two
// providers with the same name but different endpoints are distinct.
type ProviderID struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint,omitempty"`
}

// String returns the canonical "name@endpoint" form used as a map key.
func (p ProviderID) String() string {
	if p.Endpoint == "" {
		return p.Name
	}
	return p.Name + "@" + p.Endpoint
}

// IsZero reports whether the identity is unset.
func (p ProviderID) IsZero() bool {
	return p.Name == "" && p.Endpoint == ""
}

// OfflineStatus describes the offline availability of a song or playlist.
type OfflineStatus int

const (
	// OfflineNo means the entity is not available offline.
	OfflineNo OfflineStatus = iota
	// OfflinePending means an offline sync has been requested.
	OfflinePending
	// OfflineDownloading means the entity is currently syncing.
	OfflineDownloading
	// OfflineError means the last offline sync failed.
	OfflineError
	// OfflineReady means the entity is fully available offline.
	OfflineReady
)

// String returns the human-readable status name.
func (s OfflineStatus) String() string {
	switch s {
	case OfflinePending:
		return "pending"
	case OfflineDownloading:
		return "downloading"
	case OfflineError:
		return "error"
	case OfflineReady:
		return "ready"
	default:
		return "no"
	}
}

// Song is a single track. A song may exist as a stub (Loaded=false) known
// only by reference until a provider resolves its full metadata.
type Song struct {
	Ref           string        `json:"ref"`
	Title         string        `json:"title"`
	ArtistRef     string        `json:"artistRef,omitempty"`
	AlbumRef      string        `json:"albumRef,omitempty"`
	Duration      time.Duration `json:"duration"`
	Year          int           `json:"year,omitempty"`
	Provider      ProviderID    `json:"provider"`
	Available     bool          `json:"available"`
	OfflineStatus OfflineStatus `json:"offlineStatus"`
	SourceLogo    string        `json:"sourceLogo,omitempty"`
	Loaded        bool          `json:"loaded"`
}

// Identical reports whether both records carry the same observable data.
func (s *Song) Identical(o *Song) bool {
	if o == nil {
		return false
	}
	return s.Ref == o.Ref &&
		s.Title == o.Title &&
		s.ArtistRef == o.ArtistRef &&
		s.AlbumRef == o.AlbumRef &&
		s.Duration == o.Duration &&
		s.Year == o.Year &&
		s.Available == o.Available &&
		s.OfflineStatus == o.OfflineStatus &&
		s.SourceLogo == o.SourceLogo &&
		s.Loaded == o.Loaded
}

// Clone returns a deep copy.
func (s *Song) Clone() *Song {
	c := *s
	return &c
}

// Album groups songs. Song order within an album carries no meaning; the
// ref list behaves as a set.
type Album struct {
	Ref      string     `json:"ref"`
	Name     string     `json:"name"`
	Year     int        `json:"year,omitempty"`
	Provider ProviderID `json:"provider"`
	SongRefs []string   `json:"songRefs"`
	Loaded   bool       `json:"loaded"`
}

// AddSong appends a song ref if not already present. Returns true when added.
func (a *Album) AddSong(ref string) bool {
	if containsRef(a.SongRefs, ref) {
		return false
	}
	a.SongRefs = append(a.SongRefs, ref)
	return true
}

// Identical reports whether both records carry the same observable data.
// Song membership is compared as a set.
func (a *Album) Identical(o *Album) bool {
	if o == nil {
		return false
	}
	return a.Ref == o.Ref &&
		a.Name == o.Name &&
		a.Year == o.Year &&
		a.Loaded == o.Loaded &&
		sameRefSet(a.SongRefs, o.SongRefs)
}

// Clone returns a deep copy.
func (a *Album) Clone() *Album {
	c := *a
	c.SongRefs = cloneRefs(a.SongRefs)
	return &c
}

// Artist holds a name and the set of albums it appears on. Album links are
// derived transitively through songs, so the set only ever grows.
type Artist struct {
	Ref       string     `json:"ref"`
	Name      string     `json:"name"`
	Provider  ProviderID `json:"provider"`
	AlbumRefs []string   `json:"albumRefs"`
	Loaded    bool       `json:"loaded"`
}

// AddAlbum appends an album ref if not already present. Returns true when added.
func (a *Artist) AddAlbum(ref string) bool {
	if containsRef(a.AlbumRefs, ref) {
		return false
	}
	a.AlbumRefs = append(a.AlbumRefs, ref)
	return true
}

// Identical reports whether both records carry the same observable data.
func (a *Artist) Identical(o *Artist) bool {
	if o == nil {
		return false
	}
	return a.Ref == o.Ref &&
		a.Name == o.Name &&
		a.Loaded == o.Loaded &&
		sameRefSet(a.AlbumRefs, o.AlbumRefs)
}

// Clone returns a deep copy.
func (a *Artist) Clone() *Artist {
	c := *a
	c.AlbumRefs = cloneRefs(a.AlbumRefs)
	return &c
}

// Playlist is a user-ordered sequence of song refs. Unlike albums, order
// matters and duplicates are allowed.
type Playlist struct {
	Ref            string        `json:"ref"`
	Name           string        `json:"name"`
	Provider       ProviderID    `json:"provider"`
	SongRefs       []string      `json:"songRefs"`
	OfflineCapable bool          `json:"offlineCapable"`
	OfflineStatus  OfflineStatus `json:"offlineStatus"`
}

// Identical reports whether name, song sequence and offline attributes all
// match. The sequence comparison is order-sensitive.
func (p *Playlist) Identical(o *Playlist) bool {
	if o == nil {
		return false
	}
	return p.Ref == o.Ref &&
		p.Name == o.Name &&
		p.OfflineCapable == o.OfflineCapable &&
		p.OfflineStatus == o.OfflineStatus &&
		sameRefSeq(p.SongRefs, o.SongRefs)
}

// Clone returns a deep copy.
func (p *Playlist) Clone() *Playlist {
	c := *p
	c.SongRefs = cloneRefs(p.SongRefs)
	return &c
}

// Genre is reported by some providers but carries no reconciliation logic.
type Genre struct {
	Ref      string     `json:"ref"`
	Name     string     `json:"name"`
	Provider ProviderID `json:"provider"`
	SongRefs []string   `json:"songRefs,omitempty"`
}

// SearchResult holds deduplicated entity refs matching a query.
type SearchResult struct {
	Query      string   `json:"query"`
	Identifier string   `json:"identifier"`
	Songs      []string `json:"songs"`
	Artists    []string `json:"artists"`
	Albums     []string `json:"albums"`
	Playlists  []string `json:"playlists"`
}

// Clone returns a deep copy.
func (r *SearchResult) Clone() *SearchResult {
	c := *r
	c.Songs = cloneRefs(r.Songs)
	c.Artists = cloneRefs(r.Artists)
	c.Albums = cloneRefs(r.Albums)
	c.Playlists = cloneRefs(r.Playlists)
	return &c
}

func containsRef(refs []string, ref string) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

func cloneRefs(refs []string) []string {
	if refs == nil {
		return nil
	}
	out := make([]string, len(refs))
	copy(out, refs)
	return out
}

// sameRefSeq compares two ref sequences element by element.
func sameRefSeq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameRefSet compares two ref lists ignoring order and duplicates.
func sameRefSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, r := range a {
		as[r] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, r := range b {
		bs[r] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for r := range as {
		if _, ok := bs[r]; !ok {
			return false
		}
	}
	return true
}
