// Package remote adapts an HTTP/JSON music service to the provider
// capability contract. Pushed updates are simulated by polling the
// service's change feed.
package remote

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	resty "resty.dev/v3"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/provider"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 5 * time.Second
)

// Provider talks to one remote music service over REST.
type Provider struct {
	http *resty.Client
	id   music.ProviderID

	pollInterval time.Duration

	cbMu      sync.Mutex
	callbacks []provider.Callback
	polling   bool

	stopOnce sync.Once
	stop     chan struct{}
	cursor   int64
}

var _ provider.Client = (*Provider)(nil)

// Option tweaks a remote provider.
type Option func(*Provider)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.http.SetTimeout(d)
	}
}

// WithPollInterval overrides the change feed polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		p.pollInterval = d
	}
}

// NewProvider creates a provider for the service at baseURL, e.g.
// "http://radio.local:8090".
func NewProvider(name, baseURL string, opts ...Option) (*Provider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider URL %s: %w", baseURL, err)
	}

	p := &Provider{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		id: music.ProviderID{
			Name:     name,
			Endpoint: u.Host,
		},
		pollInterval: defaultPollInterval,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ID returns the provider identity used for registration.
func (p *Provider) ID() music.ProviderID {
	return p.id
}

// Close stops the change poller and releases the HTTP client.
func (p *Provider) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return p.http.Close()
}

// wrap classifies a request outcome. Transport failures and server
// errors mean the provider may be dead; a 404 is a plain miss.
func wrap(res *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %v: %w", what, err, provider.ErrProviderDead)
	}
	if res.StatusCode() == http.StatusNotFound {
		return provider.ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("%s: http %d: %w", what, res.StatusCode(), provider.ErrProviderDead)
	}
	return nil
}

// IsSetup queries the service's status endpoint.
func (p *Provider) IsSetup() (bool, error) {
	var status statusDTO
	res, err := p.http.R().SetResult(&status).Get("/v1/status")
	if err := wrap(res, err, "status"); err != nil {
		return false, err
	}
	return status.Setup, nil
}

// IsAuthenticated queries the service's status endpoint.
func (p *Provider) IsAuthenticated() (bool, error) {
	var status statusDTO
	res, err := p.http.R().SetResult(&status).Get("/v1/status")
	if err := wrap(res, err, "status"); err != nil {
		return false, err
	}
	return status.Authenticated, nil
}

// GetSongs returns the service's full song listing.
func (p *Provider) GetSongs() ([]*music.Song, error) {
	var dtos []songDTO
	res, err := p.http.R().SetResult(&dtos).Get("/v1/songs")
	if err := wrap(res, err, "songs"); err != nil {
		return nil, err
	}
	songs := make([]*music.Song, 0, len(dtos))
	for _, d := range dtos {
		songs = append(songs, d.toSong(p.id))
	}
	return songs, nil
}

// GetAlbums returns the service's full album listing.
func (p *Provider) GetAlbums() ([]*music.Album, error) {
	var dtos []albumDTO
	res, err := p.http.R().SetResult(&dtos).Get("/v1/albums")
	if err := wrap(res, err, "albums"); err != nil {
		return nil, err
	}
	albums := make([]*music.Album, 0, len(dtos))
	for _, d := range dtos {
		albums = append(albums, d.toAlbum(p.id))
	}
	return albums, nil
}

// GetArtists returns the service's full artist listing.
func (p *Provider) GetArtists() ([]*music.Artist, error) {
	var dtos []artistDTO
	res, err := p.http.R().SetResult(&dtos).Get("/v1/artists")
	if err := wrap(res, err, "artists"); err != nil {
		return nil, err
	}
	artists := make([]*music.Artist, 0, len(dtos))
	for _, d := range dtos {
		artists = append(artists, d.toArtist(p.id))
	}
	return artists, nil
}

// GetPlaylists returns the service's full playlist listing.
func (p *Provider) GetPlaylists() ([]*music.Playlist, error) {
	var dtos []playlistDTO
	res, err := p.http.R().SetResult(&dtos).Get("/v1/playlists")
	if err := wrap(res, err, "playlists"); err != nil {
		return nil, err
	}
	playlists := make([]*music.Playlist, 0, len(dtos))
	for _, d := range dtos {
		playlists = append(playlists, d.toPlaylist(p.id))
	}
	return playlists, nil
}

// GetSong resolves a single song by ref.
func (p *Provider) GetSong(ref string) (*music.Song, error) {
	var dto songDTO
	res, err := p.http.R().SetResult(&dto).SetQueryParam("ref", ref).Get("/v1/song")
	if err := wrap(res, err, "song"); err != nil {
		return nil, err
	}
	return dto.toSong(p.id), nil
}

// GetArtist resolves a single artist by ref.
func (p *Provider) GetArtist(ref string) (*music.Artist, error) {
	var dto artistDTO
	res, err := p.http.R().SetResult(&dto).SetQueryParam("ref", ref).Get("/v1/artist")
	if err := wrap(res, err, "artist"); err != nil {
		return nil, err
	}
	return dto.toArtist(p.id), nil
}

// GetAlbum resolves a single album by ref.
func (p *Provider) GetAlbum(ref string) (*music.Album, error) {
	var dto albumDTO
	res, err := p.http.R().SetResult(&dto).SetQueryParam("ref", ref).Get("/v1/album")
	if err := wrap(res, err, "album"); err != nil {
		return nil, err
	}
	return dto.toAlbum(p.id), nil
}

// GetPlaylist resolves a single playlist by ref.
func (p *Provider) GetPlaylist(ref string) (*music.Playlist, error) {
	var dto playlistDTO
	res, err := p.http.R().SetResult(&dto).SetQueryParam("ref", ref).Get("/v1/playlist")
	if err := wrap(res, err, "playlist"); err != nil {
		return nil, err
	}
	return dto.toPlaylist(p.id), nil
}

// GetSupportedRosettaPrefixes queries the ref namespaces the service
// claims ownership of.
func (p *Provider) GetSupportedRosettaPrefixes() ([]string, error) {
	var dto rosettaDTO
	res, err := p.http.R().SetResult(&dto).Get("/v1/rosetta")
	if err := wrap(res, err, "rosetta"); err != nil {
		return nil, err
	}
	return dto.Prefixes, nil
}

// SetOfflineMode tells the service to stop or resume network access.
func (p *Provider) SetOfflineMode(enabled bool) error {
	res, err := p.http.R().SetBody(offlineDTO{Enabled: enabled}).Post("/v1/offline")
	return wrap(res, err, "offline")
}

// RegisterCallback subscribes a sink. The first subscriber starts the
// change feed poller, which then runs until Close.
func (p *Provider) RegisterCallback(cb provider.Callback) error {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()

	p.callbacks = append(p.callbacks, cb)
	// The poller outlives unregistration, so liveness is tracked
	// separately from the subscriber count: register, unregister,
	// register again must not end up with two pollers racing the cursor.
	if !p.polling {
		p.polling = true
		go p.poll()
	}
	return nil
}

// UnregisterCallback removes a subscriber.
func (p *Provider) UnregisterCallback(cb provider.Callback) error {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	for i, have := range p.callbacks {
		if have == cb {
			p.callbacks = append(p.callbacks[:i], p.callbacks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (p *Provider) snapshotCallbacks() []provider.Callback {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	out := make([]provider.Callback, len(p.callbacks))
	copy(out, p.callbacks)
	return out
}

// poll drains the service's change feed and re-emits entries as pushed
// updates until Close.
func (p *Provider) poll() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			if err := p.drainChanges(); err != nil {
				log.Warn().Err(err).Str("provider", p.id.String()).Msg("Change feed poll failed")
			}
		}
	}
}

func (p *Provider) drainChanges() error {
	var changes changesDTO
	res, err := p.http.R().
		SetResult(&changes).
		SetQueryParam("cursor", fmt.Sprintf("%d", p.cursor)).
		Get("/v1/changes")
	if err := wrap(res, err, "changes"); err != nil {
		return err
	}
	p.cursor = changes.Cursor

	for _, cb := range p.snapshotCallbacks() {
		for _, d := range changes.Songs {
			cb.OnSongUpdate(p.id, d.toSong(p.id))
		}
		for _, d := range changes.Albums {
			cb.OnAlbumUpdate(p.id, d.toAlbum(p.id))
		}
		for _, d := range changes.Artists {
			cb.OnArtistUpdate(p.id, d.toArtist(p.id))
		}
		for _, d := range changes.Playlists {
			cb.OnPlaylistAddedOrUpdated(p.id, d.toPlaylist(p.id))
		}
		if changes.Search != nil {
			cb.OnSearchResult(changes.Search.toSearchResult())
		}
	}
	return nil
}
