package socketio

import (
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/provider"
)

// Wire payloads pushed to UI clients. Durations travel as whole seconds.

type songPayload struct {
	Ref           string `json:"ref"`
	Title         string `json:"title"`
	ArtistRef     string `json:"artistRef,omitempty"`
	AlbumRef      string `json:"albumRef,omitempty"`
	Duration      int    `json:"duration"`
	Year          int    `json:"year,omitempty"`
	Provider      string `json:"provider"`
	Available     bool   `json:"available"`
	OfflineStatus string `json:"offlineStatus"`
	SourceLogo    string `json:"sourceLogo,omitempty"`
	Loaded        bool   `json:"loaded"`
}

type albumPayload struct {
	Ref      string   `json:"ref"`
	Name     string   `json:"name"`
	Year     int      `json:"year,omitempty"`
	Provider string   `json:"provider"`
	Songs    []string `json:"songs"`
	Loaded   bool     `json:"loaded"`
}

type artistPayload struct {
	Ref      string   `json:"ref"`
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Albums   []string `json:"albums"`
	Loaded   bool     `json:"loaded"`
}

type playlistPayload struct {
	Ref            string   `json:"ref"`
	Name           string   `json:"name"`
	Provider       string   `json:"provider"`
	Songs          []string `json:"songs"`
	OfflineCapable bool     `json:"offlineCapable"`
	OfflineStatus  string   `json:"offlineStatus"`
}

type searchPayload struct {
	Query      string   `json:"query"`
	Identifier string   `json:"identifier"`
	Songs      []string `json:"songs"`
	Artists    []string `json:"artists"`
	Albums     []string `json:"albums"`
	Playlists  []string `json:"playlists"`
}

type providerPayload struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

func toSongPayload(s *music.Song) songPayload {
	return songPayload{
		Ref:           s.Ref,
		Title:         s.Title,
		ArtistRef:     s.ArtistRef,
		AlbumRef:      s.AlbumRef,
		Duration:      int(s.Duration.Seconds()),
		Year:          s.Year,
		Provider:      s.Provider.String(),
		Available:     s.Available,
		OfflineStatus: s.OfflineStatus.String(),
		SourceLogo:    s.SourceLogo,
		Loaded:        s.Loaded,
	}
}

func toSongPayloads(songs []*music.Song) []songPayload {
	out := make([]songPayload, 0, len(songs))
	for _, s := range songs {
		out = append(out, toSongPayload(s))
	}
	return out
}

func toAlbumPayloads(albums []*music.Album) []albumPayload {
	out := make([]albumPayload, 0, len(albums))
	for _, a := range albums {
		out = append(out, albumPayload{
			Ref:      a.Ref,
			Name:     a.Name,
			Year:     a.Year,
			Provider: a.Provider.String(),
			Songs:    a.SongRefs,
			Loaded:   a.Loaded,
		})
	}
	return out
}

func toArtistPayloads(artists []*music.Artist) []artistPayload {
	out := make([]artistPayload, 0, len(artists))
	for _, a := range artists {
		out = append(out, artistPayload{
			Ref:      a.Ref,
			Name:     a.Name,
			Provider: a.Provider.String(),
			Albums:   a.AlbumRefs,
			Loaded:   a.Loaded,
		})
	}
	return out
}

func toPlaylistPayloads(playlists []*music.Playlist) []playlistPayload {
	out := make([]playlistPayload, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, playlistPayload{
			Ref:            p.Ref,
			Name:           p.Name,
			Provider:       p.Provider.String(),
			Songs:          p.SongRefs,
			OfflineCapable: p.OfflineCapable,
			OfflineStatus:  p.OfflineStatus.String(),
		})
	}
	return out
}

func toSearchPayload(r *music.SearchResult) searchPayload {
	return searchPayload{
		Query:      r.Query,
		Identifier: r.Identifier,
		Songs:      r.Songs,
		Artists:    r.Artists,
		Albums:     r.Albums,
		Playlists:  r.Playlists,
	}
}

func toProviderPayload(conn *provider.Connection) providerPayload {
	id := conn.ID()
	return providerPayload{
		Name:     id.Name,
		Endpoint: id.Endpoint,
	}
}
