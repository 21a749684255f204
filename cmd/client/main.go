// Command client joins a listening room and keeps the local Spotify player
// in step with it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"musicroom-sync-client/internal/cache"
	"musicroom-sync-client/internal/client"
	"musicroom-sync-client/internal/logger"
	"musicroom-sync-client/internal/lookup"
	"musicroom-sync-client/internal/provider"
	"musicroom-sync-client/internal/status"
)

func main() {
	cfg := defaultConfig()

	app := &cli.App{
		Name:  "musicroom-client",
		Usage: "synchronized listening room client",
		Flags: flags(&cfg),
		Action: func(c *cli.Context) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(c.Context, cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func flags(cfg *Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "server-url",
			Usage:       "Realtime websocket endpoint",
			EnvVars:     []string{"SERVER_URL"},
			Value:       cfg.ServerURL,
			Destination: &cfg.ServerURL,
		},
		&cli.StringFlag{
			Name:        "api-base-url",
			Usage:       "REST API root used to look up the user and the room",
			EnvVars:     []string{"API_BASE_URL"},
			Destination: &cfg.APIBaseURL,
		},
		&cli.StringFlag{
			Name:        "access-token",
			Usage:       "Access token sent to the API and the realtime server",
			EnvVars:     []string{"ACCESS_TOKEN"},
			Destination: &cfg.AccessToken,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "User id, when neither the API nor the token provide one",
			EnvVars:     []string{"USER_ID"},
			Destination: &cfg.UserID,
		},
		&cli.StringFlag{
			Name:        "room",
			Aliases:     []string{"r"},
			Usage:       "Room to join",
			EnvVars:     []string{"ROOM_ID"},
			Destination: &cfg.RoomID,
		},
		&cli.StringFlag{
			Name:        "spotify-client-id",
			EnvVars:     []string{"SPOTIFY_CLIENT_ID"},
			Destination: &cfg.SpotifyClientID,
		},
		&cli.StringFlag{
			Name:        "spotify-client-secret",
			EnvVars:     []string{"SPOTIFY_CLIENT_SECRET"},
			Destination: &cfg.SpotifyClientSecret,
		},
		&cli.StringFlag{
			Name:        "spotify-access-token",
			EnvVars:     []string{"SPOTIFY_ACCESS_TOKEN"},
			Destination: &cfg.SpotifyAccessToken,
		},
		&cli.StringFlag{
			Name:        "spotify-refresh-token",
			EnvVars:     []string{"SPOTIFY_REFRESH_TOKEN"},
			Destination: &cfg.SpotifyRefreshToken,
		},
		&cli.StringFlag{
			Name:        "spotify-base-url",
			Usage:       "Override the Spotify Web API root",
			EnvVars:     []string{"SPOTIFY_BASE_URL"},
			Destination: &cfg.SpotifyBaseURL,
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Usage:       "Redis for the track metadata cache; empty disables it",
			EnvVars:     []string{"REDIS_URL"},
			Destination: &cfg.RedisURL,
		},
		&cli.DurationFlag{
			Name:        "track-ttl",
			EnvVars:     []string{"TRACK_TTL"},
			Value:       cache.DefaultTTL,
			Destination: &cfg.TrackTTL,
		},
		&cli.BoolFlag{
			Name:        "keep-synced",
			Usage:       "Re-sync playback with the room periodically",
			EnvVars:     []string{"KEEP_SYNCED"},
			Destination: &cfg.KeepSynced,
		},
		&cli.DurationFlag{
			Name:        "keep-synced-interval",
			EnvVars:     []string{"KEEP_SYNCED_INTERVAL"},
			Value:       cfg.KeepSyncedInterval,
			Destination: &cfg.KeepSyncedInterval,
		},
		&cli.DurationFlag{
			Name:        "device-poll-interval",
			EnvVars:     []string{"DEVICE_POLL_INTERVAL"},
			Value:       cfg.PollInterval,
			Destination: &cfg.PollInterval,
		},
		&cli.DurationFlag{
			Name:        "reconnect-delay",
			EnvVars:     []string{"RECONNECT_DELAY"},
			Value:       cfg.ReconnectDelay,
			Destination: &cfg.ReconnectDelay,
		},
		&cli.StringFlag{
			Name:        "status-addr",
			Usage:       "Listen address of the local status server; empty disables it",
			EnvVars:     []string{"STATUS_ADDR"},
			Value:       cfg.StatusAddr,
			Destination: &cfg.StatusAddr,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Logging level (debug, info, warn, error)",
			EnvVars:     []string{"LOG_LEVEL"},
			Value:       cfg.LogLevel,
			Destination: &cfg.LogLevel,
		},
		&cli.BoolFlag{
			Name:        "log-pretty",
			EnvVars:     []string{"LOG_PRETTY"},
			Destination: &cfg.LogPretty,
		},
	}
}

func run(parent context.Context, cfg Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov := provider.NewSpotifyClient(ctx, provider.SpotifyConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		AccessToken:  cfg.SpotifyAccessToken,
		RefreshToken: cfg.SpotifyRefreshToken,
		BaseURL:      cfg.SpotifyBaseURL,
	})

	clientCfg := client.Config{
		ServerURL:          cfg.ServerURL,
		AccessToken:        cfg.AccessToken,
		UserID:             cfg.UserID,
		RoomID:             cfg.RoomID,
		KeepSynced:         cfg.KeepSynced,
		KeepSyncedInterval: cfg.KeepSyncedInterval,
		PollInterval:       cfg.PollInterval,
		ReconnectDelay:     cfg.ReconnectDelay,
	}
	deps := client.Deps{Provider: prov}

	if cfg.APIBaseURL != "" {
		deps.Lookup = lookup.NewClient(cfg.APIBaseURL, cfg.AccessToken)
	} else if clientCfg.UserID == "" {
		claims, err := lookup.ClaimsFromToken(cfg.AccessToken)
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		clientCfg.UserID = claims.UserID
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("client: invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		deps.Tracks = cache.NewTrackCache(rdb, prov, cfg.TrackTTL, logger.For(log, "cache"))
	}

	c := client.New(clientCfg, deps, log)

	if cfg.StatusAddr != "" {
		srv := &http.Server{
			Addr: cfg.StatusAddr,
			Handler: status.NewServer(c, logger.For(log, "status")).Router(
				middleware.RequestID,
				middleware.RealIP,
				middleware.Logger,
				middleware.Recoverer,
				middleware.Timeout(60*time.Second),
			),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go serveStatus(srv, log)
		defer shutdownStatus(srv, log)
	}

	log.Info().Str("server", cfg.ServerURL).Str("room", cfg.RoomID).Msg("starting")
	err := c.Run(ctx)
	log.Info().Msg("stopped")
	return err
}

func serveStatus(srv *http.Server, log zerolog.Logger) {
	log.Info().Str("addr", srv.Addr).Msg("status server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("status server")
	}
}

func shutdownStatus(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("status server shutdown")
	}
}
