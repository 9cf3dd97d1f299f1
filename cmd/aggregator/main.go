// Package main is the entry point for the Stellar metadata aggregator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/aggregator"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/provider"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/infra/mpdprov"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/infra/remote"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/transport/socketio"
	"github.com/edumarques81/stellar-metadata-aggregator/internal/version"
)

func main() {
	// Command line flags
	port := flag.String("port", "3001", "HTTP server port")
	mpdEnabled := flag.Bool("mpd", true, "Register the local MPD daemon as a provider")
	mpdHost := flag.String("mpd-host", "localhost", "MPD host")
	mpdPort := flag.Int("mpd-port", 6600, "MPD port")
	mpdPassword := flag.String("mpd-password", "", "MPD password")
	remotes := flag.String("remote", "", "Remote providers as name=url pairs, comma separated")
	propagationDelay := flag.Duration("propagation-delay", aggregator.DefaultPropagationDelay, "Debounce window for batched update notifications")
	workers := flag.Int("workers", 4, "Worker pool size for reconciliation walks")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Provider Aggregation Backend")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", *port).
		Bool("mpd", *mpdEnabled).
		Str("mpd_host", *mpdHost).
		Int("mpd_port", *mpdPort).
		Dur("propagation_delay", *propagationDelay).
		Int("workers", *workers).
		Msg("Configuration")

	// Create the aggregator service
	svc := aggregator.NewService(aggregator.Options{
		PropagationDelay: *propagationDelay,
		Workers:          *workers,
		Connectivity:     hasConnectivity,
	})
	svc.Start()
	defer svc.Close()

	// Create Socket.io server
	socketServer, err := socketio.NewServer(svc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	// Register the local MPD provider
	if *mpdEnabled {
		mpdProv := mpdprov.NewProvider(*mpdHost, *mpdPort, *mpdPassword)
		if err := mpdProv.Connect(); err != nil {
			log.Error().Err(err).Msg("MPD unavailable, continuing without it")
		} else {
			defer mpdProv.Close()
			if err := mpdProv.StartWatching(); err != nil {
				log.Error().Err(err).Msg("MPD change watcher unavailable")
			}
			svc.RegisterProvider(provider.NewConnection(mpdProv.ID(), mpdProv))
		}
	}

	// Register remote providers
	for _, spec := range splitRemotes(*remotes) {
		name, baseURL, ok := strings.Cut(spec, "=")
		if !ok {
			log.Fatal().Str("spec", spec).Msg("Remote provider must be name=url")
		}
		remoteProv, err := remote.NewProvider(name, baseURL)
		if err != nil {
			log.Fatal().Err(err).Str("name", name).Msg("Invalid remote provider")
		}
		defer remoteProv.Close()
		svc.RegisterProvider(provider.NewConnection(remoteProv.ID(), remoteProv))
	}

	// Prime the cache
	go svc.RefreshAll()

	// Setup HTTP server
	mux := http.NewServeMux()

	// Socket.io endpoint
	mux.Handle("/socket.io/", socketServer)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Cache().Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"providers": svc.Registry().Count(),
			"offline":   svc.IsOfflineMode(),
			"songs":     stats.SongCount,
			"albums":    stats.AlbumCount,
			"artists":   stats.ArtistCount,
			"playlists": stats.PlaylistCount,
		})
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.GetInfo())
	})

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+*port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

func splitRemotes(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hasConnectivity reports whether any network interface is up, read from
// sysfs. It feeds the derived offline mode: no link means behave as if
// offline even when the user toggle is off.
func hasConnectivity() bool {
	// Wired first (eth0, or end0 on newer Pi)
	for _, iface := range []string{"eth0", "end0"} {
		carrier := fmt.Sprintf("/sys/class/net/%s/carrier", iface)
		if data, err := os.ReadFile(carrier); err == nil {
			if strings.TrimSpace(string(data)) == "1" {
				return true
			}
		}
	}

	for _, iface := range []string{"wlan0", "wlan1"} {
		operstate := fmt.Sprintf("/sys/class/net/%s/operstate", iface)
		if data, err := os.ReadFile(operstate); err == nil {
			if strings.TrimSpace(string(data)) == "up" {
				return true
			}
		}
	}

	return false
}
