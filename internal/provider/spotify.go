package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	// BaseURL overrides the Web API root, e.g. for a local proxy.
	BaseURL string
}

type SpotifyClient struct {
	api *spotify.Client
}

// NewSpotifyClient builds an authenticated client. The oauth2 transport
// refreshes the access token on its own once it expires.
func NewSpotifyClient(ctx context.Context, cfg SpotifyConfig) *SpotifyClient {
	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadCurrentlyPlaying,
		),
	)
	token := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
	}
	return NewSpotifyClientHTTP(auth.Client(ctx, token), cfg.BaseURL)
}

func NewSpotifyClientHTTP(httpClient *http.Client, baseURL string) *SpotifyClient {
	var opts []spotify.ClientOption
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, spotify.WithBaseURL(baseURL))
	}
	return &SpotifyClient{api: spotify.New(httpClient, opts...)}
}

func (c *SpotifyClient) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := c.api.PlayerDevices(ctx)
	if err != nil {
		return nil, wrap("list devices", err)
	}
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.ID == "" {
			continue
		}
		out = append(out, convertDevice(d))
	}
	return out, nil
}

func (c *SpotifyClient) PlaybackState(ctx context.Context) (PlaybackState, error) {
	st, err := c.api.PlayerState(ctx)
	if err != nil {
		return PlaybackState{}, wrap("playback state", err)
	}
	if st == nil {
		return PlaybackState{}, nil
	}

	out := PlaybackState{
		ContextURI: string(st.PlaybackContext.URI),
		Playing:    st.Playing,
		Progress:   time.Duration(int(st.Progress)) * time.Millisecond,
	}
	if st.Item != nil {
		out.ItemID = string(st.Item.ID)
	}
	if st.Device.ID != "" {
		d := convertDevice(st.Device)
		out.Device = &d
	}
	return out, nil
}

func (c *SpotifyClient) StartResume(ctx context.Context, req PlayRequest) error {
	opt := &spotify.PlayOptions{
		DeviceID:   deviceID(req.DeviceID),
		PositionMs: spotify.Numeric(req.Offset / time.Millisecond),
	}
	if req.ContextURI != "" {
		uri := spotify.URI(req.ContextURI)
		opt.PlaybackContext = &uri
		if req.TrackURI != "" {
			opt.PlaybackOffset = &spotify.PlaybackOffset{URI: spotify.URI(req.TrackURI)}
		}
	} else if req.TrackURI != "" {
		opt.URIs = []spotify.URI{spotify.URI(req.TrackURI)}
	}
	if err := c.api.PlayOpt(ctx, opt); err != nil {
		return wrap("start/resume", err)
	}
	return nil
}

func (c *SpotifyClient) Pause(ctx context.Context, id string) error {
	if err := c.api.PauseOpt(ctx, &spotify.PlayOptions{DeviceID: deviceID(id)}); err != nil {
		return wrap("pause", err)
	}
	return nil
}

func (c *SpotifyClient) SkipNext(ctx context.Context, id string) error {
	if err := c.api.NextOpt(ctx, &spotify.PlayOptions{DeviceID: deviceID(id)}); err != nil {
		return wrap("skip next", err)
	}
	return nil
}

func (c *SpotifyClient) SkipPrevious(ctx context.Context, id string) error {
	if err := c.api.PreviousOpt(ctx, &spotify.PlayOptions{DeviceID: deviceID(id)}); err != nil {
		return wrap("skip previous", err)
	}
	return nil
}

func (c *SpotifyClient) TransferPlayback(ctx context.Context, id string, play bool) error {
	if err := c.api.TransferPlayback(ctx, spotify.ID(id), play); err != nil {
		return wrap("transfer playback", err)
	}
	return nil
}

// Tracks looks up track metadata. The Web API caps one call at 50 ids.
func (c *SpotifyClient) Tracks(ctx context.Context, ids ...string) ([]Track, error) {
	out := make([]Track, 0, len(ids))
	for start := 0; start < len(ids); start += 50 {
		end := min(start+50, len(ids))
		batch := make([]spotify.ID, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, spotify.ID(id))
		}
		tracks, err := c.api.GetTracks(ctx, batch)
		if err != nil {
			return nil, wrap("tracks", err)
		}
		for _, t := range tracks {
			if t == nil {
				continue
			}
			out = append(out, convertTrack(t))
		}
	}
	return out, nil
}

func convertDevice(d spotify.PlayerDevice) Device {
	return Device{
		ID:               string(d.ID),
		Name:             d.Name,
		Kind:             d.Type,
		ActiveAtProvider: d.Active,
	}
}

func convertTrack(t *spotify.FullTrack) Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return Track{
		ID:       string(t.ID),
		Name:     t.Name,
		Artists:  strings.Join(artists, ", "),
		Album:    t.Album.Name,
		Duration: time.Duration(int(t.Duration)) * time.Millisecond,
	}
}

func deviceID(id string) *spotify.ID {
	if id == "" {
		return nil
	}
	sid := spotify.ID(id)
	return &sid
}

func wrap(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return &Error{Op: op, Status: apiErr.Status, Err: err}
	}
	return &Error{Op: op, Err: err}
}
