// Package provider defines the contract the aggregator expects from any
// out-of-process content provider, and the registry of live connections.
package provider

import (
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// Client is the capability interface of a connected provider. Every call
// crosses a process boundary and may fail with a transport error; callers
// must treat any error as a sign the provider may be dead.
type Client interface {
	// IsSetup reports whether the provider finished its initial setup.
	IsSetup() (bool, error)

	// IsAuthenticated reports whether the provider has valid credentials.
	IsAuthenticated() (bool, error)

	// GetSongs returns the provider's full song listing.
	GetSongs() ([]*music.Song, error)

	// GetAlbums returns the provider's full album listing.
	GetAlbums() ([]*music.Album, error)

	// GetArtists returns the provider's full artist listing.
	GetArtists() ([]*music.Artist, error)

	// GetPlaylists returns the provider's full playlist listing.
	GetPlaylists() ([]*music.Playlist, error)

	// GetSong resolves a single song by ref.
	GetSong(ref string) (*music.Song, error)

	// GetArtist resolves a single artist by ref.
	GetArtist(ref string) (*music.Artist, error)

	// GetAlbum resolves a single album by ref.
	GetAlbum(ref string) (*music.Album, error)

	// GetPlaylist resolves a single playlist by ref.
	GetPlaylist(ref string) (*music.Playlist, error)

	// GetSupportedRosettaPrefixes returns the ref namespaces this provider
	// claims ownership of.
	GetSupportedRosettaPrefixes() ([]string, error)

	// SetOfflineMode tells the provider to stop or resume network access.
	SetOfflineMode(enabled bool) error

	// RegisterCallback subscribes a sink to the provider's update stream.
	RegisterCallback(cb Callback) error

	// UnregisterCallback removes a previously registered sink.
	UnregisterCallback(cb Callback) error
}

// Callback is the sink interface providers invoke to push updates. It is
// implemented by the aggregator service. Calls may arrive concurrently
// from different providers; within one provider they arrive in order.
type Callback interface {
	OnLoggedIn(id music.ProviderID, success bool)
	OnLoggedOut(id music.ProviderID)
	OnPlaylistAddedOrUpdated(id music.ProviderID, p *music.Playlist)
	OnSongUpdate(id music.ProviderID, s *music.Song)
	OnAlbumUpdate(id music.ProviderID, a *music.Album)
	OnArtistUpdate(id music.ProviderID, a *music.Artist)
	OnGenreUpdate(id music.ProviderID, g *music.Genre)
	OnSongPlaying(id music.ProviderID)
	OnSongPaused(id music.ProviderID)
	OnTrackEnded(id music.ProviderID)
	OnSearchResult(r *music.SearchResult)
}

// Connection binds a provider identity to its capability handle. The
// handle may be nil if the transport is still connecting or already gone.
type Connection struct {
	id     music.ProviderID
	client Client
}

// NewConnection creates a connection record.
func NewConnection(id music.ProviderID, client Client) *Connection {
	return &Connection{id: id, client: client}
}

// ID returns the provider identity.
func (c *Connection) ID() music.ProviderID {
	return c.id
}

// Client returns the capability handle, or nil when broken.
func (c *Connection) Client() Client {
	return c.client
}
