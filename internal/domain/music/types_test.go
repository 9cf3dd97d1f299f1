package music

import (
	"testing"
	"time"
)

func TestSongIdenticalMatchesAllObservableFields(t *testing.T) {
	base := &Song{
		Ref:       "prov:song:1",
		Title:     "Blue Train",
		ArtistRef: "prov:artist:coltrane",
		AlbumRef:  "prov:album:bluetrain",
		Duration:  643 * time.Second,
		Year:      1957,
		Available: true,
		Loaded:    true,
	}

	if !base.Identical(base.Clone()) {
		t.Error("clone should be identical to original")
	}

	changed := base.Clone()
	changed.Duration = 644 * time.Second
	if base.Identical(changed) {
		t.Error("duration change should break identity")
	}

	changed = base.Clone()
	changed.OfflineStatus = OfflineReady
	if base.Identical(changed) {
		t.Error("offline status change should break identity")
	}

	if base.Identical(nil) {
		t.Error("nil should never be identical")
	}
}

func TestAlbumIdentityIgnoresSongOrder(t *testing.T) {
	a := &Album{Ref: "prov:album:1", Name: "Kind of Blue", Year: 1959, Loaded: true,
		SongRefs: []string{"s1", "s2", "s3"}}
	b := a.Clone()
	b.SongRefs = []string{"s3", "s1", "s2"}

	if !a.Identical(b) {
		t.Error("album identity must not depend on song order")
	}

	b.SongRefs = []string{"s1", "s2"}
	if a.Identical(b) {
		t.Error("different membership should break identity")
	}
}

func TestAlbumAddSongDeduplicates(t *testing.T) {
	a := &Album{Ref: "prov:album:1"}
	if !a.AddSong("s1") {
		t.Error("first add should report true")
	}
	if a.AddSong("s1") {
		t.Error("duplicate add should report false")
	}
	if len(a.SongRefs) != 1 {
		t.Errorf("expected 1 song ref, got %d", len(a.SongRefs))
	}
}

func TestPlaylistIdentityIsOrderSensitive(t *testing.T) {
	p := &Playlist{Ref: "prov:playlist:1", Name: "Morning", SongRefs: []string{"s1", "s2"}}
	q := p.Clone()
	q.SongRefs = []string{"s2", "s1"}

	if p.Identical(q) {
		t.Error("playlist identity must respect song order")
	}

	q.SongRefs = []string{"s1", "s2"}
	if !p.Identical(q) {
		t.Error("same sequence should be identical")
	}

	q.OfflineCapable = true
	if p.Identical(q) {
		t.Error("offline capability change should break identity")
	}
}

func TestArtistAddAlbumDeduplicates(t *testing.T) {
	a := &Artist{Ref: "prov:artist:1", Name: "Miles Davis"}
	a.AddAlbum("al1")
	a.AddAlbum("al2")
	a.AddAlbum("al1")

	if len(a.AlbumRefs) != 2 {
		t.Errorf("expected 2 album refs, got %d", len(a.AlbumRefs))
	}
}

func TestCloneIsolatesRefSlices(t *testing.T) {
	p := &Playlist{Ref: "prov:playlist:1", SongRefs: []string{"s1"}}
	c := p.Clone()
	c.SongRefs[0] = "mutated"

	if p.SongRefs[0] != "s1" {
		t.Error("mutating a clone must not affect the original")
	}
}

func TestProviderIDString(t *testing.T) {
	id := ProviderID{Name: "deezer", Endpoint: "plugin.deezer"}
	if got := id.String(); got != "deezer@plugin.deezer" {
		t.Errorf("unexpected key form: %s", got)
	}
	if got := (ProviderID{Name: "local"}).String(); got != "local" {
		t.Errorf("endpoint-less id should be the bare name, got %s", got)
	}
	if !(ProviderID{}).IsZero() {
		t.Error("empty id should be zero")
	}
}
