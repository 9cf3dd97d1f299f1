package remote

import (
	"time"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// Wire representations of the remote provider's REST payloads. Durations
// travel as whole seconds.

type songDTO struct {
	Ref           string `json:"ref"`
	Title         string `json:"title"`
	ArtistRef     string `json:"artistRef"`
	AlbumRef      string `json:"albumRef"`
	DurationSecs  int    `json:"duration"`
	Year          int    `json:"year"`
	Available     bool   `json:"available"`
	OfflineStatus int    `json:"offlineStatus"`
	SourceLogo    string `json:"sourceLogo"`
	Loaded        bool   `json:"loaded"`
}

type albumDTO struct {
	Ref      string   `json:"ref"`
	Name     string   `json:"name"`
	Year     int      `json:"year"`
	SongRefs []string `json:"songs"`
	Loaded   bool     `json:"loaded"`
}

type artistDTO struct {
	Ref       string   `json:"ref"`
	Name      string   `json:"name"`
	AlbumRefs []string `json:"albums"`
	Loaded    bool     `json:"loaded"`
}

type playlistDTO struct {
	Ref            string   `json:"ref"`
	Name           string   `json:"name"`
	SongRefs       []string `json:"songs"`
	OfflineCapable bool     `json:"offlineCapable"`
	OfflineStatus  int      `json:"offlineStatus"`
}

type statusDTO struct {
	Setup         bool `json:"setup"`
	Authenticated bool `json:"authenticated"`
}

type rosettaDTO struct {
	Prefixes []string `json:"prefixes"`
}

type offlineDTO struct {
	Enabled bool `json:"enabled"`
}

type changesDTO struct {
	Cursor    int64         `json:"cursor"`
	Songs     []songDTO     `json:"songs"`
	Albums    []albumDTO    `json:"albums"`
	Artists   []artistDTO   `json:"artists"`
	Playlists []playlistDTO `json:"playlists"`
	Search    *searchDTO    `json:"search"`
}

type searchDTO struct {
	Query      string   `json:"query"`
	Identifier string   `json:"identifier"`
	Songs      []string `json:"songs"`
	Artists    []string `json:"artists"`
	Albums     []string `json:"albums"`
	Playlists  []string `json:"playlists"`
}

func (d songDTO) toSong(id music.ProviderID) *music.Song {
	return &music.Song{
		Ref:           d.Ref,
		Title:         d.Title,
		ArtistRef:     d.ArtistRef,
		AlbumRef:      d.AlbumRef,
		Duration:      time.Duration(d.DurationSecs) * time.Second,
		Year:          d.Year,
		Provider:      id,
		Available:     d.Available,
		OfflineStatus: music.OfflineStatus(d.OfflineStatus),
		SourceLogo:    d.SourceLogo,
		Loaded:        d.Loaded,
	}
}

func (d albumDTO) toAlbum(id music.ProviderID) *music.Album {
	return &music.Album{
		Ref:      d.Ref,
		Name:     d.Name,
		Year:     d.Year,
		Provider: id,
		SongRefs: d.SongRefs,
		Loaded:   d.Loaded,
	}
}

func (d artistDTO) toArtist(id music.ProviderID) *music.Artist {
	return &music.Artist{
		Ref:       d.Ref,
		Name:      d.Name,
		Provider:  id,
		AlbumRefs: d.AlbumRefs,
		Loaded:    d.Loaded,
	}
}

func (d playlistDTO) toPlaylist(id music.ProviderID) *music.Playlist {
	return &music.Playlist{
		Ref:            d.Ref,
		Name:           d.Name,
		Provider:       id,
		SongRefs:       d.SongRefs,
		OfflineCapable: d.OfflineCapable,
		OfflineStatus:  music.OfflineStatus(d.OfflineStatus),
	}
}

func (d searchDTO) toSearchResult() *music.SearchResult {
	return &music.SearchResult{
		Query:      d.Query,
		Identifier: d.Identifier,
		Songs:      d.Songs,
		Artists:    d.Artists,
		Albums:     d.Albums,
		Playlists:  d.Playlists,
	}
}
