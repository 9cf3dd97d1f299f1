// Package aggregator federates music metadata from all connected content
// providers into one authoritative in-memory cache and fans out debounced
// batch notifications to local subscribers.
package aggregator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/provider"
)

// LocalCallback receives aggregated update events. Entity updates arrive
// in debounced batches; search results and provider connections arrive
// immediately.
type LocalCallback interface {
	OnSongUpdate(songs []*music.Song)
	OnAlbumUpdate(albums []*music.Album)
	OnArtistUpdate(artists []*music.Artist)
	OnPlaylistUpdate(playlists []*music.Playlist)
	OnSearchResult(result *music.SearchResult)
	OnProviderConnected(conn *provider.Connection)
}

// OfflineModeListener is notified when the process-wide offline mode
// toggles.
type OfflineModeListener interface {
	OnOfflineModeChange(enabled bool)
}

// Options configures the aggregator service.
type Options struct {
	// PropagationDelay is the debounce window for batched entity
	// notifications. Defaults to DefaultPropagationDelay.
	PropagationDelay time.Duration

	// Workers bounds the pool executing reconciliation walks off the
	// caller's goroutine. Defaults to 4.
	Workers int

	// Connectivity reports whether the machine has network access; when
	// set, IsOfflineMode combines it with the explicit toggle.
	Connectivity func() bool
}

// Service is the provider aggregation coordinator. It implements
// provider.Callback and may be invoked concurrently by different provider
// connections; within one provider, callbacks are processed in delivery
// order. Conflicting field updates from different providers resolve by
// arrival order (last writer wins) with no versioning.
type Service struct {
	registry *provider.Registry
	cache    *Cache
	pool     *pool.Pool
	notify   *notifier
	search   searchMerger

	tasks chan func() // serial run loop: flush delivery, registry mutation
	work  chan func() // fed to the bounded pool by the forwarder
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	mu               sync.RWMutex
	callbacks        []LocalCallback
	offlineListeners []OfflineModeListener
	offline          bool
	connectivity     func() bool
}

var _ provider.Callback = (*Service)(nil)

// NewService creates a stopped aggregator service.
func NewService(opts Options) *Service {
	if opts.PropagationDelay <= 0 {
		opts.PropagationDelay = DefaultPropagationDelay
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	s := &Service{
		registry:     provider.NewRegistry(),
		cache:        NewCache(),
		pool:         pool.New().WithMaxGoroutines(opts.Workers),
		tasks:        make(chan func(), 128),
		work:         make(chan func(), 256),
		done:         make(chan struct{}),
		connectivity: opts.Connectivity,
	}

	s.notify = newNotifier(opts.PropagationDelay, s.post, localFanout{
		songs: func(items []*music.Song) {
			for _, cb := range s.localCallbacks() {
				cb.OnSongUpdate(items)
			}
		},
		albums: func(items []*music.Album) {
			for _, cb := range s.localCallbacks() {
				cb.OnAlbumUpdate(items)
			}
		},
		artists: func(items []*music.Artist) {
			for _, cb := range s.localCallbacks() {
				cb.OnArtistUpdate(items)
			}
		},
		playlists: func(items []*music.Playlist) {
			for _, cb := range s.localCallbacks() {
				cb.OnPlaylistUpdate(items)
			}
		},
	})

	return s
}

// Start launches the serial run loop and the pool forwarder.
func (s *Service) Start() {
	s.wg.Add(2)
	go s.run()
	go s.forward()
	log.Info().Msg("Aggregator service started")
}

// Close stops notification delivery, the run loop and the worker pool.
// In-flight pool tasks are waited for; queued ones not yet forwarded are
// dropped.
func (s *Service) Close() {
	s.once.Do(func() {
		s.notify.stop()
		close(s.done)
		s.wg.Wait()
		s.pool.Wait()
		log.Info().Msg("Aggregator service stopped")
	})
}

// run is the single sequential execution context. Notification flushes
// and registry mutations execute here, so they are never concurrent with
// each other.
func (s *Service) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.tasks:
			fn()
		}
	}
}

// forward feeds queued work items to the bounded pool. It is the only
// goroutine submitting to the pool, so pool workers that schedule more
// work enqueue without blocking on a pool slot.
func (s *Service) forward() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.work:
			s.pool.Go(fn)
		}
	}
}

// post queues fn on the serial run loop.
func (s *Service) post(fn func()) {
	select {
	case <-s.done:
	case s.tasks <- fn:
	}
}

// scheduleWork queues fn for the bounded worker pool. If the queue is
// saturated the task runs on its own goroutine rather than blocking the
// caller.
func (s *Service) scheduleWork(fn func()) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.work <- fn:
	case <-s.done:
	default:
		go fn()
	}
}

// Cache exposes the entity cache for read access.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Registry exposes the provider registry.
func (s *Service) Registry() *provider.Registry {
	return s.registry
}

// AddLocalCallback registers a subscriber for aggregated updates.
func (s *Service) AddLocalCallback(cb LocalCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// RemoveLocalCallback unregisters a subscriber.
func (s *Service) RemoveLocalCallback(cb LocalCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, have := range s.callbacks {
		if have == cb {
			s.callbacks = append(s.callbacks[:i], s.callbacks[i+1:]...)
			return
		}
	}
}

func (s *Service) localCallbacks() []LocalCallback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LocalCallback, len(s.callbacks))
	copy(out, s.callbacks)
	return out
}

// RegisterProvider records a connected provider, subscribes the service
// as its callback sink and harvests its rosetta prefixes.
func (s *Service) RegisterProvider(conn *provider.Connection) {
	s.registry.Add(conn)

	client := conn.Client()
	if client == nil {
		log.Error().Str("provider", conn.ID().String()).Msg("Provider registered with a nil capability handle")
		return
	}

	if err := client.RegisterCallback(s); err != nil {
		// Maybe the service died already?
		log.Error().Err(err).Str("provider", conn.ID().String()).Msg("Unable to register as a callback")
		return
	}

	prefixes, err := client.GetSupportedRosettaPrefixes()
	if err != nil {
		log.Error().Err(err).Str("provider", conn.ID().String()).Msg("Unable to get rosetta prefixes")
	} else {
		for _, prefix := range prefixes {
			s.registry.MapPrefix(prefix, conn.ID())
		}
	}

	for _, cb := range s.localCallbacks() {
		cb.OnProviderConnected(conn)
	}

	log.Info().Str("provider", conn.ID().String()).Int("active", s.registry.Count()).Msg("Provider registered")
}

// UnregisterProvider queues removal of a connection. Removal runs on the
// serial loop so it never races an in-flight fan-out holding a snapshot.
// Telling the provider to drop us is best effort; it may already be dead.
func (s *Service) UnregisterProvider(conn *provider.Connection) {
	s.post(func() {
		s.registry.Remove(conn)
		if client := conn.Client(); client != nil {
			if err := client.UnregisterCallback(s); err != nil {
				log.Debug().Err(err).Str("provider", conn.ID().String()).Msg("Callback unregistration failed, provider likely dead")
			}
		}
		log.Info().Str("provider", conn.ID().String()).Msg("Provider unregistered")
	})
}

// SetOfflineMode toggles process-wide offline mode, propagates it to
// every registered provider and notifies offline-mode listeners.
func (s *Service) SetOfflineMode(enabled bool) {
	s.mu.Lock()
	s.offline = enabled
	listeners := make([]OfflineModeListener, len(s.offlineListeners))
	copy(listeners, s.offlineListeners)
	s.mu.Unlock()

	s.post(func() {
		for _, conn := range s.registry.Active() {
			client := conn.Client()
			if client == nil {
				s.UnregisterProvider(conn)
				continue
			}
			if err := client.SetOfflineMode(enabled); err != nil {
				log.Error().Err(err).Str("provider", conn.ID().String()).Msg("Cannot change offline mode")
			}
		}
	})

	for _, l := range listeners {
		l.OnOfflineModeChange(enabled)
	}
}

// IsOfflineMode reports whether the device should behave offline: either
// the explicit toggle is set or no network connectivity is detected.
func (s *Service) IsOfflineMode() bool {
	s.mu.RLock()
	offline := s.offline
	probe := s.connectivity
	s.mu.RUnlock()

	if offline {
		return true
	}
	if probe != nil {
		return !probe()
	}
	return false
}

// RegisterOfflineModeListener subscribes to offline mode changes.
func (s *Service) RegisterOfflineModeListener(l OfflineModeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offlineListeners = append(s.offlineListeners, l)
}

// UnregisterOfflineModeListener removes an offline mode subscriber.
func (s *Service) UnregisterOfflineModeListener(l OfflineModeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, have := range s.offlineListeners {
		if have == l {
			s.offlineListeners = append(s.offlineListeners[:i], s.offlineListeners[i+1:]...)
			return
		}
	}
}

// RosettaPrefixes returns all declared ref prefixes.
func (s *Service) RosettaPrefixes() []string {
	return s.registry.Prefixes()
}

// PreferredRosettaPrefix returns the first declared prefix, if any.
func (s *Service) PreferredRosettaPrefix() (string, bool) {
	return s.registry.PreferredPrefix()
}

// RosettaIdentifier resolves a prefix to its owning provider.
func (s *Service) RosettaIdentifier(prefix string) (music.ProviderID, bool) {
	return s.registry.PrefixOwner(prefix)
}

// GetAllPlaylists returns the cached playlist listing and kicks an
// asynchronous refresh; new entries reach subscribers via batched
// playlist notifications as providers answer.
func (s *Service) GetAllPlaylists() []*music.Playlist {
	go s.RefreshAll()
	return s.cache.Playlists()
}

// GetAllMultiProviderPlaylists returns playlists seen from more than one
// provider, flagged for the caller to surface as potential duplicates.
func (s *Service) GetAllMultiProviderPlaylists() []*music.Playlist {
	return s.cache.MultiProviderPlaylists()
}

// CurrentSearchResult returns a snapshot of the cached search result.
func (s *Service) CurrentSearchResult() *music.SearchResult {
	return s.search.current()
}

// OnLoggedIn handles provider login feedback. A successful login makes
// the provider's content reachable, so a refresh is kicked off.
func (s *Service) OnLoggedIn(id music.ProviderID, success bool) {
	log.Debug().Str("provider", id.String()).Bool("success", success).Msg("Provider login feedback")
	if success {
		go s.RefreshAll()
		return
	}
	log.Warn().Str("provider", id.String()).Msg("Provider login failed")
}

// OnLoggedOut handles provider logout. The cached entities stay; they
// will be refreshed when the provider logs back in.
func (s *Service) OnLoggedOut(id music.ProviderID) {
	log.Debug().Str("provider", id.String()).Msg("Provider logged out")
}

// OnSongUpdate reconciles an incoming song record into the cache.
func (s *Service) OnSongUpdate(id music.ProviderID, sng *music.Song) {
	if sng == nil || sng.Ref == "" {
		log.Warn().Str("provider", id.String()).Msg("Provider sent a null or ref-less song")
		return
	}
	// Every accepted sighting counts toward multi-provider tracking,
	// even when the record itself is an identical no-op.
	s.cache.RecordSource(sng.Ref, id)

	cached, ok := s.cache.Song(sng.Ref)
	changed := false
	wasLoaded := false

	if !ok {
		s.cache.PutSong(id, sng)
		cached, _ = s.cache.Song(sng.Ref)
		changed = true
	} else {
		wasLoaded = cached.Loaded
		if (sng.Loaded || !wasLoaded) && !cached.Identical(sng) {
			s.cache.ApplySong(sng.Ref, func(c *music.Song) {
				c.Title = sng.Title
				c.ArtistRef = sng.ArtistRef
				c.AlbumRef = sng.AlbumRef
				c.SourceLogo = sng.SourceLogo
				c.Duration = sng.Duration
				c.Year = sng.Year
				c.OfflineStatus = sng.OfflineStatus
				c.Available = sng.Available
				// Loaded is monotonic: a loaded record never regresses.
				c.Loaded = c.Loaded || sng.Loaded
			})
			cached, _ = s.cache.Song(sng.Ref)
			changed = true
		}
	}

	if !wasLoaded && cached.Loaded {
		s.linkSongRelatives(id, cached)
	}

	if changed {
		s.notify.songs.post(cached)
	}
}

// linkSongRelatives resolves a freshly loaded song's artist and album and
// records the album on the artist's album set.
func (s *Service) linkSongRelatives(id music.ProviderID, sng *music.Song) {
	if sng.ArtistRef == "" {
		return
	}
	artist := s.RetrieveArtist(sng.ArtistRef, id)
	if artist == nil {
		log.Debug().Str("song", sng.Ref).Str("artist", sng.ArtistRef).Msg("Song artist unresolved, skipping linkage")
		return
	}
	if sng.AlbumRef == "" {
		return
	}
	album := s.RetrieveAlbum(sng.AlbumRef, id)
	if album == nil {
		log.Debug().Str("song", sng.Ref).Str("album", sng.AlbumRef).Msg("Song album unresolved, skipping linkage")
		return
	}
	s.cache.ApplyArtist(artist.Ref, func(a *music.Artist) {
		a.AddAlbum(album.Ref)
	})
}

// OnAlbumUpdate reconciles an incoming album record. Song membership is
// merged as a set; a genuine change walks the album's songs to derive
// artist→album links transitively.
func (s *Service) OnAlbumUpdate(id music.ProviderID, alb *music.Album) {
	if alb == nil || alb.Ref == "" {
		log.Warn().Str("provider", id.String()).Msg("Provider sent a null or ref-less album")
		return
	}
	s.cache.RecordSource(alb.Ref, id)

	cached, ok := s.cache.Album(alb.Ref)
	changed := false

	if !ok {
		s.cache.PutAlbum(id, alb)
		cached, _ = s.cache.Album(alb.Ref)
		changed = true
	} else {
		s.cache.ApplyAlbum(alb.Ref, func(c *music.Album) {
			if alb.Loaded || !c.Loaded {
				if alb.Name != "" && c.Name != alb.Name {
					c.Name = alb.Name
					changed = true
				}
				if alb.Year != 0 && c.Year != alb.Year {
					c.Year = alb.Year
					changed = true
				}
			}
			for _, ref := range alb.SongRefs {
				if c.AddSong(ref) {
					changed = true
				}
			}
			if alb.Loaded && !c.Loaded {
				c.Loaded = true
				changed = true
			}
			if !alb.Provider.IsZero() {
				c.Provider = alb.Provider
			}
		})
		cached, _ = s.cache.Album(alb.Ref)
	}

	if !changed {
		return
	}

	final := cached
	origin := id
	if !alb.Provider.IsZero() {
		origin = alb.Provider
	}
	s.scheduleWork(func() {
		s.linkAlbumArtists(origin, final)
	})

	s.notify.albums.post(cached)
}

// linkAlbumArtists resolves every song an album declares and, once a song
// is loaded, records the album on its artist. Missing songs or artists
// are logged and skipped; linkage stays partial rather than failing.
func (s *Service) linkAlbumArtists(id music.ProviderID, alb *music.Album) {
	for _, songRef := range alb.SongRefs {
		sng := s.RetrieveSong(songRef, id)
		if sng == nil || !sng.Loaded {
			log.Debug().Str("album", alb.Ref).Str("song", songRef).Msg("Album song unresolved, skipping linkage")
			continue
		}
		origin := id
		if !sng.Provider.IsZero() {
			origin = sng.Provider
		}
		artist := s.RetrieveArtist(sng.ArtistRef, origin)
		if artist == nil {
			log.Debug().Str("album", alb.Ref).Str("artist", sng.ArtistRef).Msg("Song artist unresolved, skipping linkage")
			continue
		}
		s.cache.ApplyArtist(artist.Ref, func(a *music.Artist) {
			a.AddAlbum(alb.Ref)
		})
	}
}

// OnArtistUpdate reconciles an incoming artist record. Album sets are
// unioned, never replaced, so an update that brings nothing new is a
// no-op.
func (s *Service) OnArtistUpdate(id music.ProviderID, art *music.Artist) {
	if art == nil || art.Ref == "" {
		log.Warn().Str("provider", id.String()).Msg("Provider sent a null or ref-less artist")
		return
	}
	s.cache.RecordSource(art.Ref, id)

	cached, ok := s.cache.Artist(art.Ref)
	changed := false

	if !ok {
		s.cache.PutArtist(id, art)
		cached, _ = s.cache.Artist(art.Ref)
		changed = true
	} else {
		s.cache.ApplyArtist(art.Ref, func(c *music.Artist) {
			if art.Name != "" && c.Name != art.Name {
				c.Name = art.Name
				changed = true
			}
			for _, ref := range art.AlbumRefs {
				if c.AddAlbum(ref) {
					changed = true
				}
			}
			if art.Loaded && !c.Loaded {
				c.Loaded = true
				changed = true
			}
		})
		cached, _ = s.cache.Artist(art.Ref)
	}

	if changed {
		s.notify.artists.post(cached)
	}
}

// OnPlaylistAddedOrUpdated reconciles an incoming playlist. An accepted
// change replaces the stored song sequence wholesale, then resolves every
// referenced song in the background before notifying subscribers.
func (s *Service) OnPlaylistAddedOrUpdated(id music.ProviderID, pl *music.Playlist) {
	if pl == nil || pl.Ref == "" {
		log.Warn().Str("provider", id.String()).Msg("Provider sent a null or ref-less playlist")
		return
	}
	s.cache.RecordSource(pl.Ref, id)

	cached, ok := s.cache.Playlist(pl.Ref)
	changed := false

	if !ok {
		s.cache.PutPlaylist(id, pl)
		cached, _ = s.cache.Playlist(pl.Ref)
		changed = true
	} else if !cached.Identical(pl) {
		s.cache.ReplacePlaylist(id, pl)
		cached, _ = s.cache.Playlist(pl.Ref)
		changed = true
	}

	if !changed {
		return
	}

	final := cached
	s.scheduleWork(func() {
		for _, songRef := range final.SongRefs {
			s.RetrieveSong(songRef, id)
		}
		s.notify.playlists.post(final)
	})
}

// OnGenreUpdate is accepted but not reconciled.
func (s *Service) OnGenreUpdate(id music.ProviderID, g *music.Genre) {
	if g == nil {
		return
	}
	log.Debug().Str("provider", id.String()).Str("genre", g.Ref).Msg("Genre update ignored")
}

// OnSongPlaying is playback signalling, outside the reconciliation core.
func (s *Service) OnSongPlaying(id music.ProviderID) {}

// OnSongPaused is playback signalling, outside the reconciliation core.
func (s *Service) OnSongPaused(id music.ProviderID) {}

// OnTrackEnded is playback signalling, outside the reconciliation core.
func (s *Service) OnTrackEnded(id music.ProviderID) {}

// OnSearchResult merges an incoming search result and notifies all local
// subscribers immediately; search delivery is never debounced.
func (s *Service) OnSearchResult(res *music.SearchResult) {
	if res == nil {
		return
	}

	merged := s.search.merge(res)
	log.Debug().Str("query", merged.Query).
		Int("songs", len(merged.Songs)).
		Int("albums", len(merged.Albums)).
		Msg("Search result merged")

	for _, cb := range s.localCallbacks() {
		cb.OnSearchResult(merged)
	}
}

// RetrieveSong returns the cached song or fetches it from the given
// provider, feeding the result back through reconciliation. Retrieval
// fails soft: a dead provider yields nil, never an error to the caller.
func (s *Service) RetrieveSong(ref string, id music.ProviderID) *music.Song {
	if ref == "" {
		log.Warn().Msg("Requested a song with an empty ref")
		return nil
	}
	if cached, ok := s.cache.Song(ref); ok {
		return cached
	}

	client := s.clientFor(id, "song", ref)
	if client == nil {
		return nil
	}
	sng, err := client.GetSong(ref)
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Str("provider", id.String()).Msg("Unable to retrieve song")
		return nil
	}
	if sng == nil {
		return nil
	}
	s.OnSongUpdate(id, sng)
	out, _ := s.cache.Song(ref)
	return out
}

// RetrieveArtist returns the cached artist or fetches it from the given
// provider. Fails soft on provider death.
func (s *Service) RetrieveArtist(ref string, id music.ProviderID) *music.Artist {
	if ref == "" {
		log.Warn().Msg("Requested an artist with an empty ref")
		return nil
	}
	if cached, ok := s.cache.Artist(ref); ok {
		return cached
	}

	client := s.clientFor(id, "artist", ref)
	if client == nil {
		return nil
	}
	art, err := client.GetArtist(ref)
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Str("provider", id.String()).Msg("Unable to retrieve artist")
		return nil
	}
	if art == nil {
		return nil
	}
	s.OnArtistUpdate(id, art)
	out, _ := s.cache.Artist(ref)
	return out
}

// RetrieveAlbum returns the cached album or fetches it from the given
// provider. Fails soft on provider death.
func (s *Service) RetrieveAlbum(ref string, id music.ProviderID) *music.Album {
	if ref == "" {
		log.Warn().Msg("Requested an album with an empty ref")
		return nil
	}
	if cached, ok := s.cache.Album(ref); ok {
		return cached
	}

	client := s.clientFor(id, "album", ref)
	if client == nil {
		return nil
	}
	alb, err := client.GetAlbum(ref)
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Str("provider", id.String()).Msg("Unable to retrieve album")
		return nil
	}
	if alb == nil {
		return nil
	}
	s.OnAlbumUpdate(id, alb)
	out, _ := s.cache.Album(ref)
	return out
}

// RetrievePlaylist returns the cached playlist or fetches it from the
// given provider. Fails soft on provider death.
func (s *Service) RetrievePlaylist(ref string, id music.ProviderID) *music.Playlist {
	if ref == "" {
		log.Warn().Msg("Requested a playlist with an empty ref")
		return nil
	}
	if cached, ok := s.cache.Playlist(ref); ok {
		return cached
	}

	client := s.clientFor(id, "playlist", ref)
	if client == nil {
		return nil
	}
	pl, err := client.GetPlaylist(ref)
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Str("provider", id.String()).Msg("Unable to retrieve playlist")
		return nil
	}
	if pl == nil {
		return nil
	}
	s.OnPlaylistAddedOrUpdated(id, pl)
	out, _ := s.cache.Playlist(ref)
	return out
}

// clientFor resolves a provider identity to a usable capability handle.
// A connection with a broken handle is unregistered on discovery.
func (s *Service) clientFor(id music.ProviderID, kind, ref string) provider.Client {
	if id.IsZero() {
		return nil
	}
	conn := s.registry.Get(id)
	if conn == nil {
		log.Debug().Str("provider", id.String()).Str(kind, ref).Msg("Unknown provider identifier")
		return nil
	}
	client := conn.Client()
	if client == nil {
		log.Error().Str("provider", id.String()).Msg("Broken capability handle, unregistering provider")
		s.UnregisterProvider(conn)
		return nil
	}
	return client
}
