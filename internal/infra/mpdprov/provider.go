// Package mpdprov exposes a local MPD daemon as a content provider,
// wrapping the gompd client with reconnection logic.
package mpdprov

import (
	"fmt"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/provider"
)

// Provider adapts an MPD daemon to the provider capability contract. MPD
// is a local source: offline mode does not restrict it.
type Provider struct {
	mu       sync.RWMutex
	client   *mpd.Client
	watcher  *mpd.Watcher
	host     string
	port     int
	password string
	offline  bool

	id music.ProviderID

	cbMu      sync.Mutex
	callbacks []provider.Callback
}

var _ provider.Client = (*Provider)(nil)

// NewProvider creates a disconnected MPD provider.
func NewProvider(host string, port int, password string) *Provider {
	return &Provider{
		host:     host,
		port:     port,
		password: password,
		id: music.ProviderID{
			Name:     "mpd",
			Endpoint: fmt.Sprintf("%s:%d", host, port),
		},
	}
}

// ID returns the provider identity used for registration.
func (p *Provider) ID() music.ProviderID {
	return p.id
}

// Connect establishes the connection to MPD.
func (p *Provider) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connectLocked()
}

// connectLocked establishes connection (must hold lock).
func (p *Provider) connectLocked() error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	log.Info().Str("addr", addr).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	if p.password != "" {
		if err := client.Command("password %s", p.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	p.client = client
	log.Info().Msg("Connected to MPD")
	return nil
}

// ensureConnected checks the connection and reconnects if needed.
func (p *Provider) ensureConnected() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return p.connectLocked()
	}

	if err := p.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		p.client.Close()
		p.client = nil
		return p.connectLocked()
	}

	return nil
}

// Close closes the MPD connection and the change watcher.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		p.watcher.Close()
		p.watcher = nil
	}

	if p.client != nil {
		err := p.client.Close()
		p.client = nil
		return err
	}
	return nil
}

// IsSetup reports whether the daemon is reachable.
func (p *Provider) IsSetup() (bool, error) {
	if err := p.ensureConnected(); err != nil {
		return false, err
	}
	return true, nil
}

// IsAuthenticated reports whether the connection is usable. MPD
// authentication happens at connect time, so a live connection implies
// valid credentials.
func (p *Provider) IsAuthenticated() (bool, error) {
	if err := p.ensureConnected(); err != nil {
		return false, err
	}
	return true, nil
}

// GetSongs returns every song in the MPD database.
func (p *Provider) GetSongs() ([]*music.Song, error) {
	entries, err := p.listAll()
	if err != nil {
		return nil, err
	}

	songs := make([]*music.Song, 0, len(entries))
	for _, attrs := range entries {
		songs = append(songs, songFromAttrs(p.id, attrs))
	}
	return songs, nil
}

// GetAlbums derives album records from the MPD database listing.
func (p *Provider) GetAlbums() ([]*music.Album, error) {
	entries, err := p.listAll()
	if err != nil {
		return nil, err
	}
	return albumsFromSongs(p.id, entries), nil
}

// GetArtists derives artist records from the MPD database listing.
func (p *Provider) GetArtists() ([]*music.Artist, error) {
	entries, err := p.listAll()
	if err != nil {
		return nil, err
	}
	return artistsFromSongs(p.id, entries), nil
}

// GetPlaylists returns MPD's stored playlists with their full track
// sequences.
func (p *Provider) GetPlaylists() ([]*music.Playlist, error) {
	if err := p.ensureConnected(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	// AttrsList("playlist") tells the parser each entry starts with a
	// "playlist:" key.
	entries, err := p.client.Command("listplaylists").AttrsList("playlist")
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	playlists := make([]*music.Playlist, 0, len(entries))
	for _, attrs := range entries {
		name := attrs["playlist"]
		if name == "" {
			continue
		}
		pl, err := p.playlistLocked(name)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, pl)
	}
	return playlists, nil
}

// playlistLocked builds one playlist record (must hold lock).
func (p *Provider) playlistLocked(name string) (*music.Playlist, error) {
	contents, err := p.client.PlaylistContents(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %s: %w", name, err)
	}

	pl := &music.Playlist{
		Ref:      PlaylistRef(name),
		Name:     name,
		Provider: p.id,
		// Local storage: the tracks are on disk already.
		OfflineCapable: true,
		OfflineStatus:  music.OfflineReady,
	}
	for _, attrs := range contents {
		if uri := attrs["file"]; uri != "" {
			pl.SongRefs = append(pl.SongRefs, SongRef(uri))
		}
	}
	return pl, nil
}

// GetSong resolves a single song by ref.
func (p *Provider) GetSong(ref string) (*music.Song, error) {
	uri, ok := songURI(ref)
	if !ok {
		return nil, provider.ErrNotFound
	}
	if err := p.ensureConnected(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := p.client.Command("find file %s", uri).AttrsList("file")
	if err != nil {
		return nil, fmt.Errorf("failed to find song %s: %w", uri, err)
	}
	if len(entries) == 0 {
		return nil, provider.ErrNotFound
	}
	return songFromAttrs(p.id, entries[0]), nil
}

// GetAlbum resolves a single album by ref.
func (p *Provider) GetAlbum(ref string) (*music.Album, error) {
	name, ok := albumName(ref)
	if !ok {
		return nil, provider.ErrNotFound
	}
	entries, err := p.findAll("find album %s", name)
	if err != nil {
		return nil, err
	}

	albums := albumsFromSongs(p.id, entries)
	for _, alb := range albums {
		if alb.Ref == ref {
			return alb, nil
		}
	}
	return nil, provider.ErrNotFound
}

// GetArtist resolves a single artist by ref.
func (p *Provider) GetArtist(ref string) (*music.Artist, error) {
	name, ok := artistName(ref)
	if !ok {
		return nil, provider.ErrNotFound
	}
	entries, err := p.findAll("find albumartist %s", name)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		entries, err = p.findAll("find artist %s", name)
		if err != nil {
			return nil, err
		}
	}

	artists := artistsFromSongs(p.id, entries)
	for _, art := range artists {
		if art.Ref == ref {
			return art, nil
		}
	}
	return nil, provider.ErrNotFound
}

// GetPlaylist resolves a single stored playlist by ref.
func (p *Provider) GetPlaylist(ref string) (*music.Playlist, error) {
	name, ok := playlistName(ref)
	if !ok {
		return nil, provider.ErrNotFound
	}
	if err := p.ensureConnected(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.playlistLocked(name)
}

// GetSupportedRosettaPrefixes declares the mpd: ref namespace.
func (p *Provider) GetSupportedRosettaPrefixes() ([]string, error) {
	return []string{RosettaPrefix}, nil
}

// SetOfflineMode records the flag. MPD serves local files, so offline
// mode never restricts it.
func (p *Provider) SetOfflineMode(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = enabled
	return nil
}

// RegisterCallback subscribes a sink to database and playlist changes.
func (p *Provider) RegisterCallback(cb provider.Callback) error {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.callbacks = append(p.callbacks, cb)
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

// StartWatching subscribes to MPD subsystem events and re-emits database
// and stored-playlist changes to registered callbacks. Returns after the
// watcher is connected; events are handled on a background goroutine
// until Close.
func (p *Provider) StartWatching() error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	watcher, err := mpd.NewWatcher("tcp", addr, p.password, "database", "stored_playlist")
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	p.mu.Lock()
	p.watcher = watcher
	p.mu.Unlock()

	go func() {
		for {
			select {
			case subsystem, ok := <-watcher.Event:
				if !ok {
					return
				}
				p.handleChange(subsystem)
			case err, ok := <-watcher.Error:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("MPD watcher error")
				time.Sleep(time.Second)
			}
		}
	}()

	return nil
}

// handleChange pushes refreshed listings through the callbacks after an
// MPD subsystem reported a change.
func (p *Provider) handleChange(subsystem string) {
	log.Debug().Str("subsystem", subsystem).Msg("MPD subsystem changed")

	switch subsystem {
	case "database":
		songs, err := p.GetSongs()
		if err != nil {
			log.Error().Err(err).Msg("Unable to reload MPD songs")
			return
		}
		albums, err := p.GetAlbums()
		if err != nil {
			log.Error().Err(err).Msg("Unable to reload MPD albums")
			return
		}
		artists, err := p.GetArtists()
		if err != nil {
			log.Error().Err(err).Msg("Unable to reload MPD artists")
			return
		}
		for _, cb := range p.snapshotCallbacks() {
			for _, sng := range songs {
				cb.OnSongUpdate(p.id, sng)
			}
			for _, alb := range albums {
				cb.OnAlbumUpdate(p.id, alb)
			}
			for _, art := range artists {
				cb.OnArtistUpdate(p.id, art)
			}
		}

	case "stored_playlist":
		playlists, err := p.GetPlaylists()
		if err != nil {
			log.Error().Err(err).Msg("Unable to reload MPD playlists")
			return
		}
		for _, cb := range p.snapshotCallbacks() {
			for _, pl := range playlists {
				cb.OnPlaylistAddedOrUpdated(p.id, pl)
			}
		}
	}
}

// listAll fetches the full database listing, keeping only file entries.
func (p *Provider) listAll() ([]mpd.Attrs, error) {
	if err := p.ensureConnected(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := p.client.ListAllInfo("")
	if err != nil {
		return nil, fmt.Errorf("failed to list MPD database: %w", err)
	}

	files := entries[:0:0]
	for _, attrs := range entries {
		if attrs["file"] != "" {
			files = append(files, attrs)
		}
	}
	return files, nil
}

// findAll runs an MPD find command and returns its song entries.
func (p *Provider) findAll(format string, args ...interface{}) ([]mpd.Attrs, error) {
	if err := p.ensureConnected(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	// AttrsList("file") tells the parser each song starts with "file:" key
	entries, err := p.client.Command(format, args...).AttrsList("file")
	if err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}
	return entries, nil
}
