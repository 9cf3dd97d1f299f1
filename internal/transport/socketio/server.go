// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/aggregator"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/provider"
)

// Server handles Socket.io connections and pushes aggregated library
// updates to UI clients. It subscribes to the aggregator as a local
// callback, so every debounced batch becomes one broadcast.
type Server struct {
	io      *socket.Server
	agg     *aggregator.Service
	limiter *ConnectionLimiter
	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

// maxExternalClients bounds concurrent non-localhost UI connections.
const maxExternalClients = 4

var (
	_ aggregator.LocalCallback       = (*Server)(nil)
	_ aggregator.OfflineModeListener = (*Server)(nil)
)

// NewServer creates a new Socket.io server wired to the aggregator.
func NewServer(agg *aggregator.Service) (*Server, error) {
	// Configure Socket.io server options
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:      server,
		agg:     agg,
		limiter: NewConnectionLimiter(maxExternalClients),
		clients: make(map[string]*socket.Socket),
	}

	s.setupHandlers()
	agg.AddLocalCallback(s)
	agg.RegisterOfflineModeListener(s)

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		log.Info().Str("id", clientID).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		if _, evicted := s.limiter.TryAdd(clientID, clientIP(client)); evicted != "" {
			s.mu.Lock()
			old := s.clients[evicted]
			delete(s.clients, evicted)
			s.mu.Unlock()
			if old != nil {
				log.Info().Str("id", evicted).Msg("External client limit reached, evicting oldest")
				old.Disconnect(true)
			}
		}

		// Send initial library state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushPlaylists(client)
			s.pushOfflineMode(client)
		}()

		// Handle disconnect
		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
			s.limiter.Remove(clientID)
		})

		client.On("getPlaylists", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getPlaylists")
			s.pushPlaylists(client)
		})

		client.On("getMultiProviderPlaylists", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getMultiProviderPlaylists")
			client.Emit("pushMultiProviderPlaylists",
				toPlaylistPayloads(s.agg.GetAllMultiProviderPlaylists()))
		})

		client.On("getSearchResult", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getSearchResult")
			if res := s.agg.CurrentSearchResult(); res != nil {
				client.Emit("pushSearchResult", toSearchPayload(res))
			}
		})

		client.On("setOfflineMode", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("setOfflineMode")
			if len(args) > 0 {
				if m, ok := args[0].(map[string]interface{}); ok {
					if v, ok := m["value"].(bool); ok {
						s.agg.SetOfflineMode(v)
					}
				}
			}
		})

		client.On("getOfflineMode", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getOfflineMode")
			s.pushOfflineMode(client)
		})

		client.On("refresh", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("refresh")
			go s.agg.RefreshAll()
		})
	})
}

// pushPlaylists sends the cached playlist listing to a client and kicks
// a background refresh.
func (s *Server) pushPlaylists(client *socket.Socket) {
	client.Emit("pushPlaylists", toPlaylistPayloads(s.agg.GetAllPlaylists()))
}

// pushOfflineMode sends the current offline state to a client.
func (s *Server) pushOfflineMode(client *socket.Socket) {
	client.Emit("pushOfflineMode", map[string]interface{}{
		"value": s.agg.IsOfflineMode(),
	})
}

// OnSongUpdate broadcasts a debounced song batch.
func (s *Server) OnSongUpdate(songs []*music.Song) {
	log.Debug().Int("count", len(songs)).Msg("Broadcast songs")
	s.io.Emit("pushSongs", toSongPayloads(songs))
}

// OnAlbumUpdate broadcasts a debounced album batch.
func (s *Server) OnAlbumUpdate(albums []*music.Album) {
	log.Debug().Int("count", len(albums)).Msg("Broadcast albums")
	s.io.Emit("pushAlbums", toAlbumPayloads(albums))
}

// OnArtistUpdate broadcasts a debounced artist batch.
func (s *Server) OnArtistUpdate(artists []*music.Artist) {
	log.Debug().Int("count", len(artists)).Msg("Broadcast artists")
	s.io.Emit("pushArtists", toArtistPayloads(artists))
}

// OnPlaylistUpdate broadcasts a debounced playlist batch.
func (s *Server) OnPlaylistUpdate(playlists []*music.Playlist) {
	log.Debug().Int("count", len(playlists)).Msg("Broadcast playlists")
	s.io.Emit("pushPlaylists", toPlaylistPayloads(playlists))
}

// OnSearchResult broadcasts a merged search result immediately.
func (s *Server) OnSearchResult(result *music.SearchResult) {
	s.io.Emit("pushSearchResult", toSearchPayload(result))
}

// OnProviderConnected announces a newly registered provider.
func (s *Server) OnProviderConnected(conn *provider.Connection) {
	s.io.Emit("pushProviderConnected", toProviderPayload(conn))
}

// OnOfflineModeChange broadcasts the new offline state.
func (s *Server) OnOfflineModeChange(enabled bool) {
	s.io.Emit("pushOfflineMode", map[string]interface{}{
		"value": enabled,
	})
}

// clientIP extracts the remote IP from a socket handshake, normalizing
// IPv4-mapped IPv6 addresses.
func clientIP(client *socket.Socket) string {
	addr := client.Handshake().Address
	return strings.TrimPrefix(addr, "::ffff:")
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close unsubscribes from the aggregator and closes the Socket.io server.
func (s *Server) Close() error {
	s.agg.RemoveLocalCallback(s)
	s.agg.UnregisterOfflineModeListener(s)
	s.io.Close(nil)
	return nil
}
