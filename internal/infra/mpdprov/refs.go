package mpdprov

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// RosettaPrefix is the ref namespace this provider claims.
const RosettaPrefix = "mpd:"

const (
	songRefPrefix     = RosettaPrefix + "song:"
	albumRefPrefix    = RosettaPrefix + "album:"
	artistRefPrefix   = RosettaPrefix + "artist:"
	playlistRefPrefix = RosettaPrefix + "playlist:"
)

// SongRef builds the canonical ref for an MPD database URI.
func SongRef(uri string) string { return songRefPrefix + uri }

// AlbumRef builds the canonical ref for an album name.
func AlbumRef(name string) string { return albumRefPrefix + name }

// ArtistRef builds the canonical ref for an artist name.
func ArtistRef(name string) string { return artistRefPrefix + name }

// PlaylistRef builds the canonical ref for a stored playlist name.
func PlaylistRef(name string) string { return playlistRefPrefix + name }

func songURI(ref string) (string, bool)     { return strings.CutPrefix(ref, songRefPrefix) }
func albumName(ref string) (string, bool)   { return strings.CutPrefix(ref, albumRefPrefix) }
func artistName(ref string) (string, bool)  { return strings.CutPrefix(ref, artistRefPrefix) }
func playlistName(ref string) (string, bool) {
	return strings.CutPrefix(ref, playlistRefPrefix)
}

// songFromAttrs converts an MPD database entry into a song record. MPD
// answers with full tag data, so the result is always fully loaded.
func songFromAttrs(id music.ProviderID, attrs mpd.Attrs) *music.Song {
	uri := attrs["file"]
	title := attrs["Title"]
	if title == "" {
		title = strings.TrimSuffix(path.Base(uri), path.Ext(uri))
	}

	sng := &music.Song{
		Ref:       SongRef(uri),
		Title:     title,
		Duration:  attrsDuration(attrs),
		Year:      attrsYear(attrs),
		Provider:  id,
		Available: true,
		Loaded:    true,
	}
	if artist := primaryArtist(attrs); artist != "" {
		sng.ArtistRef = ArtistRef(artist)
	}
	if album := attrs["Album"]; album != "" {
		sng.AlbumRef = AlbumRef(album)
	}
	return sng
}

// primaryArtist prefers the album artist tag over the track artist.
func primaryArtist(attrs mpd.Attrs) string {
	if artist := attrs["AlbumArtist"]; artist != "" {
		return artist
	}
	return attrs["Artist"]
}

func attrsDuration(attrs mpd.Attrs) time.Duration {
	if secs, err := strconv.Atoi(attrs["Time"]); err == nil {
		return time.Duration(secs) * time.Second
	}
	if secs, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

func attrsYear(attrs mpd.Attrs) int {
	date := attrs["Date"]
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// albumsFromSongs derives album records from a full song listing,
// grouping by album tag.
func albumsFromSongs(id music.ProviderID, songs []mpd.Attrs) []*music.Album {
	byName := make(map[string]*music.Album)
	var order []string

	for _, attrs := range songs {
		name := attrs["Album"]
		if name == "" {
			continue
		}
		alb, ok := byName[name]
		if !ok {
			alb = &music.Album{
				Ref:      AlbumRef(name),
				Name:     name,
				Year:     attrsYear(attrs),
				Provider: id,
				Loaded:   true,
			}
			byName[name] = alb
			order = append(order, name)
		}
		alb.AddSong(SongRef(attrs["file"]))
	}

	out := make([]*music.Album, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// artistsFromSongs derives artist records from a full song listing,
// grouping by album artist (falling back to track artist).
func artistsFromSongs(id music.ProviderID, songs []mpd.Attrs) []*music.Artist {
	byName := make(map[string]*music.Artist)
	var order []string

	for _, attrs := range songs {
		name := primaryArtist(attrs)
		if name == "" {
			continue
		}
		art, ok := byName[name]
		if !ok {
			art = &music.Artist{
				Ref:      ArtistRef(name),
				Name:     name,
				Provider: id,
				Loaded:   true,
			}
			byName[name] = art
			order = append(order, name)
		}
		if album := attrs["Album"]; album != "" {
			art.AddAlbum(AlbumRef(album))
		}
	}

	out := make([]*music.Artist, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}
