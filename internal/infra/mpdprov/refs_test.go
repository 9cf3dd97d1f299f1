package mpdprov

import (
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

var testID = music.ProviderID{Name: "mpd", Endpoint: "localhost:6600"}

func TestRefRoundTrip(t *testing.T) {
	uri, ok := songURI(SongRef("Music/track.flac"))
	if !ok || uri != "Music/track.flac" {
		t.Errorf("song ref round trip broken: %q %v", uri, ok)
	}
	name, ok := albumName(AlbumRef("Discovery"))
	if !ok || name != "Discovery" {
		t.Errorf("album ref round trip broken: %q %v", name, ok)
	}
	if _, ok := songURI("spotify:song:abc"); ok {
		t.Error("foreign ref must not parse as an mpd song")
	}
	if _, ok := playlistName(SongRef("x")); ok {
		t.Error("song ref must not parse as a playlist")
	}
}

func TestSongFromAttrs(t *testing.T) {
	sng := songFromAttrs(testID, mpd.Attrs{
		"file":        "Music/Discovery/01.flac",
		"Title":       "One More Time",
		"Artist":      "Daft Punk",
		"AlbumArtist": "Daft Punk",
		"Album":       "Discovery",
		"Date":        "2001-03-12",
		"Time":        "320",
	})

	if sng.Ref != SongRef("Music/Discovery/01.flac") {
		t.Errorf("unexpected ref %q", sng.Ref)
	}
	if sng.Title != "One More Time" {
		t.Errorf("unexpected title %q", sng.Title)
	}
	if sng.ArtistRef != ArtistRef("Daft Punk") || sng.AlbumRef != AlbumRef("Discovery") {
		t.Errorf("relative refs wrong: %q %q", sng.ArtistRef, sng.AlbumRef)
	}
	if sng.Duration != 320*time.Second {
		t.Errorf("unexpected duration %v", sng.Duration)
	}
	if sng.Year != 2001 {
		t.Errorf("unexpected year %d", sng.Year)
	}
	if !sng.Loaded || !sng.Available {
		t.Error("MPD songs carry full tags and must be loaded and available")
	}
	if sng.Provider != testID {
		t.Errorf("provider identity not stamped: %v", sng.Provider)
	}
}

func TestSongFromAttrsFallsBackToFilename(t *testing.T) {
	sng := songFromAttrs(testID, mpd.Attrs{
		"file":     "Music/untagged/recording.mp3",
		"duration": "12.5",
	})

	if sng.Title != "recording" {
		t.Errorf("expected filename fallback title, got %q", sng.Title)
	}
	if sng.Duration != 12500*time.Millisecond {
		t.Errorf("float duration not parsed: %v", sng.Duration)
	}
	if sng.ArtistRef != "" || sng.AlbumRef != "" {
		t.Error("untagged song should carry no relative refs")
	}
}

func TestAlbumsFromSongsGroupsByAlbum(t *testing.T) {
	entries := []mpd.Attrs{
		{"file": "a/1.flac", "Album": "Discovery", "Date": "2001", "AlbumArtist": "Daft Punk"},
		{"file": "a/2.flac", "Album": "Discovery", "AlbumArtist": "Daft Punk"},
		{"file": "b/1.flac", "Album": "Homework", "AlbumArtist": "Daft Punk"},
		{"file": "c/1.flac"}, // untagged, skipped
	}

	albums := albumsFromSongs(testID, entries)
	if len(albums) != 2 {
		t.Fatalf("expected 2 albums, got %d", len(albums))
	}
	if albums[0].Name != "Discovery" || len(albums[0].SongRefs) != 2 {
		t.Errorf("Discovery grouping wrong: %+v", albums[0])
	}
	if albums[0].Year != 2001 {
		t.Errorf("year should come from the first tagged track, got %d", albums[0].Year)
	}
	if albums[1].Name != "Homework" || len(albums[1].SongRefs) != 1 {
		t.Errorf("Homework grouping wrong: %+v", albums[1])
	}
}

func TestArtistsFromSongsPrefersAlbumArtist(t *testing.T) {
	entries := []mpd.Attrs{
		{"file": "a/1.flac", "Album": "Tron", "Artist": "Daft Punk feat. X", "AlbumArtist": "Daft Punk"},
		{"file": "b/1.flac", "Album": "Solo", "Artist": "Someone Else"},
	}

	artists := artistsFromSongs(testID, entries)
	if len(artists) != 2 {
		t.Fatalf("expected 2 artists, got %d", len(artists))
	}
	if artists[0].Name != "Daft Punk" {
		t.Errorf("album artist should win over track artist, got %q", artists[0].Name)
	}
	if len(artists[0].AlbumRefs) != 1 || artists[0].AlbumRefs[0] != AlbumRef("Tron") {
		t.Errorf("album linkage wrong: %v", artists[0].AlbumRefs)
	}
}
