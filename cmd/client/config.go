package main

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"musicroom-sync-client/internal/client"
	"musicroom-sync-client/internal/device"
)

type Config struct {
	ServerURL   string
	APIBaseURL  string
	AccessToken string
	UserID      string
	RoomID      string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyAccessToken  string
	SpotifyRefreshToken string
	SpotifyBaseURL      string

	RedisURL string
	TrackTTL time.Duration

	KeepSynced         bool
	KeepSyncedInterval time.Duration
	PollInterval       time.Duration
	ReconnectDelay     time.Duration

	StatusAddr string
	LogLevel   string
	LogPretty  bool
}

func defaultConfig() Config {
	return Config{
		ServerURL:          "ws://localhost:3004/ws",
		KeepSyncedInterval: client.DefaultKeepSyncedInterval,
		PollInterval:       device.DefaultPollInterval,
		ReconnectDelay:     client.DefaultReconnectDelay,
		StatusAddr:         "127.0.0.1:8089",
		LogLevel:           "info",
	}
}

func (c *Config) validate() error {
	c.ServerURL = strings.TrimSpace(c.ServerURL)
	if c.ServerURL == "" {
		return errors.New("client: SERVER_URL is empty")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return errors.New("client: SERVER_URL must be a ws:// or wss:// url: " + c.ServerURL)
	}

	if c.APIBaseURL != "" {
		u, err := url.Parse(c.APIBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("client: API_BASE_URL must be an http(s) url: " + c.APIBaseURL)
		}
		if c.AccessToken == "" {
			return errors.New("client: API_BASE_URL needs ACCESS_TOKEN")
		}
	}
	if c.APIBaseURL == "" && c.AccessToken == "" && c.UserID == "" {
		return errors.New("client: set ACCESS_TOKEN or USER_ID to identify the user")
	}

	if c.SpotifyAccessToken == "" && c.SpotifyRefreshToken == "" {
		return errors.New("client: SPOTIFY_ACCESS_TOKEN or SPOTIFY_REFRESH_TOKEN is required")
	}
	if c.SpotifyRefreshToken != "" && (c.SpotifyClientID == "" || c.SpotifyClientSecret == "") {
		return errors.New("client: refreshing the Spotify token needs SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	}

	if c.KeepSyncedInterval <= 0 || c.PollInterval <= 0 || c.ReconnectDelay <= 0 {
		return errors.New("client: intervals must be positive")
	}
	return nil
}
