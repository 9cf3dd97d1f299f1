package remote

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/provider"
)

func newTestServer(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetSongsDecodesListing(t *testing.T) {
	srv := newTestServer(t, map[string]any{
		"/v1/songs": []songDTO{
			{Ref: "deezer:song:1", Title: "Harder", DurationSecs: 225, Loaded: true, Available: true},
			{Ref: "deezer:song:2", Title: "Better"},
		},
	})

	p, err := NewProvider("deezer", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	songs, err := p.GetSongs()
	if err != nil {
		t.Fatalf("GetSongs: %v", err)
	}
	if len(songs) != 2 {
		t.Fatalf("expected 2 songs, got %d", len(songs))
	}
	if songs[0].Title != "Harder" || songs[0].Duration != 225*time.Second {
		t.Errorf("decode wrong: %+v", songs[0])
	}
	if songs[0].Provider != p.ID() {
		t.Errorf("provider identity not stamped: %v", songs[0].Provider)
	}
}

func TestStatusEndpointDrivesReadiness(t *testing.T) {
	srv := newTestServer(t, map[string]any{
		"/v1/status": statusDTO{Setup: true, Authenticated: false},
	})

	p, err := NewProvider("qobuz", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	setup, err := p.IsSetup()
	if err != nil || !setup {
		t.Errorf("expected setup true, got %v %v", setup, err)
	}
	authed, err := p.IsAuthenticated()
	if err != nil || authed {
		t.Errorf("expected authenticated false, got %v %v", authed, err)
	}
}

func TestMissingEntityIsNotFoundNotDead(t *testing.T) {
	srv := newTestServer(t, map[string]any{})

	p, err := NewProvider("deezer", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, err = p.GetSong("deezer:song:missing")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if provider.IsDead(err) {
		t.Error("a 404 must not be classified as provider death")
	}
}

func TestServerErrorMeansProviderDead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	p, err := NewProvider("deezer", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, err = p.GetAlbums()
	if !provider.IsDead(err) {
		t.Errorf("expected provider-dead classification, got %v", err)
	}
}

func TestUnreachableServiceMeansProviderDead(t *testing.T) {
	p, err := NewProvider("deezer", "http://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, err = p.GetPlaylists()
	if !provider.IsDead(err) {
		t.Errorf("expected provider-dead classification, got %v", err)
	}
}

func TestInvalidBaseURLRejected(t *testing.T) {
	if _, err := NewProvider("x", "://not-a-url"); err == nil {
		t.Error("expected an error for an invalid base URL")
	}
}

// nopCallback satisfies the sink contract without doing anything.
type nopCallback struct{}

func (nopCallback) OnLoggedIn(music.ProviderID, bool)                          {}
func (nopCallback) OnLoggedOut(music.ProviderID)                               {}
func (nopCallback) OnPlaylistAddedOrUpdated(music.ProviderID, *music.Playlist) {}
func (nopCallback) OnSongUpdate(music.ProviderID, *music.Song)                 {}
func (nopCallback) OnAlbumUpdate(music.ProviderID, *music.Album)               {}
func (nopCallback) OnArtistUpdate(music.ProviderID, *music.Artist)             {}
func (nopCallback) OnGenreUpdate(music.ProviderID, *music.Genre)               {}
func (nopCallback) OnSongPlaying(music.ProviderID)                             {}
func (nopCallback) OnSongPaused(music.ProviderID)                              {}
func (nopCallback) OnTrackEnded(music.ProviderID)                              {}
func (nopCallback) OnSearchResult(*music.SearchResult)                         {}

func TestReRegisteringCallbackStartsOnlyOnePoller(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/changes" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(changesDTO{Cursor: 1}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	p, err := NewProvider("deezer", srv.URL, WithPollInterval(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// Drain the subscriber list to zero and subscribe again: the second
	// registration must not spawn a second poller racing the first.
	first := nopCallback{}
	if err := p.RegisterCallback(first); err != nil {
		t.Fatal(err)
	}
	if err := p.UnregisterCallback(first); err != nil {
		t.Fatal(err)
	}
	if err := p.RegisterCallback(nopCallback{}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)

	// One 50ms poller makes roughly 10 requests in half a second; two
	// would make roughly 20.
	if n := hits.Load(); n > 15 {
		t.Errorf("poll rate suggests duplicate pollers: %d requests", n)
	}
}
