package main

import (
	"testing"
	"time"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.AccessToken = "tok"
	cfg.SpotifyAccessToken = "sp"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults with tokens", func(c *Config) {}, false},
		{"empty server url", func(c *Config) { c.ServerURL = "  " }, true},
		{"http server url", func(c *Config) { c.ServerURL = "http://localhost:3004/ws" }, true},
		{"wss server url", func(c *Config) { c.ServerURL = "wss://rooms.example.com/ws" }, false},
		{"api without token", func(c *Config) {
			c.APIBaseURL = "http://localhost:8080"
			c.AccessToken = ""
		}, true},
		{"bad api url", func(c *Config) { c.APIBaseURL = "localhost:8080" }, true},
		{"user id only", func(c *Config) {
			c.AccessToken = ""
			c.UserID = "u1"
		}, false},
		{"no identity", func(c *Config) { c.AccessToken = "" }, true},
		{"no spotify token", func(c *Config) { c.SpotifyAccessToken = "" }, true},
		{"refresh without client", func(c *Config) { c.SpotifyRefreshToken = "r" }, true},
		{"refresh with client", func(c *Config) {
			c.SpotifyRefreshToken = "r"
			c.SpotifyClientID = "id"
			c.SpotifyClientSecret = "secret"
		}, false},
		{"zero interval", func(c *Config) { c.KeepSyncedInterval = 0 }, true},
		{"negative reconnect delay", func(c *Config) { c.ReconnectDelay = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTrimsServerURL(t *testing.T) {
	cfg := validConfig()
	cfg.ServerURL = " ws://localhost:3004/ws "
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ServerURL != "ws://localhost:3004/ws" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
}
