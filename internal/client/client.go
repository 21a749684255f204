// Package client builds the sync client's components and wires them to one
// realtime session.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"musicroom-sync-client/internal/clock"
	"musicroom-sync-client/internal/device"
	"musicroom-sync-client/internal/handshake"
	"musicroom-sync-client/internal/logger"
	"musicroom-sync-client/internal/notify"
	"musicroom-sync-client/internal/playback"
	"musicroom-sync-client/internal/protocol"
	"musicroom-sync-client/internal/provider"
	"musicroom-sync-client/internal/room"
	"musicroom-sync-client/internal/transport"
)

const (
	DefaultKeepSyncedInterval = 15 * time.Second
	DefaultReconnectDelay     = 2 * time.Second

	mediaTimeout = 30 * time.Second
)

var ErrNothingPlaying = fmt.Errorf("%w: room is not playing", room.ErrPrecondition)

// Lookup hydrates the current user and room before connecting.
type Lookup interface {
	CurrentUser(ctx context.Context) (protocol.User, error)
	Room(ctx context.Context, roomID string) (protocol.Room, error)
}

// TrackInfo is the track metadata cache.
type TrackInfo interface {
	Prefetch(ctx context.Context, ids []string)
	Duration(ctx context.Context, id string) (time.Duration, error)
}

type Config struct {
	ServerURL   string
	AccessToken string
	// UserID is used when there is no Lookup.
	UserID string
	// RoomID is joined once the session is ready.
	RoomID string

	KeepSynced         bool
	KeepSyncedInterval time.Duration
	PollInterval       time.Duration
	ReconnectDelay     time.Duration
	SyncPolicy         *playback.RetryPolicy
	Dialer             *websocket.Dialer
}

// Deps are the external collaborators. Lookup and Tracks are optional.
type Deps struct {
	Provider provider.Provider
	Lookup   Lookup
	Tracks   TrackInfo
	Notifier notify.Notifier
}

type Client struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	session *transport.Session
	hs      *handshake.Machine
	clock   *clock.Synchronizer
	devices *device.Reconciler
	poller  *device.Poller
	syncer  *playback.Syncer
	room    *room.Controls

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	lost   chan struct{}

	syncing atomic.Bool
	keep    *loop
	picker  atomic.Bool

	mu         sync.Mutex
	lastTarget *playback.Target
}

func New(cfg Config, deps Deps, log zerolog.Logger) *Client {
	if cfg.KeepSyncedInterval <= 0 {
		cfg.KeepSyncedInterval = DefaultKeepSyncedInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(logger.For(log, "notify"))
	}

	header := http.Header{}
	if cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AccessToken)
	}

	c := &Client{
		cfg:  cfg,
		deps: deps,
		log:  logger.For(log, "client"),
		hs:   handshake.NewMachine(),
		lost: make(chan struct{}, 1),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.session = transport.NewSession(transport.Config{
		URL:    cfg.ServerURL,
		Header: header,
		Dialer: cfg.Dialer,
	}, logger.For(log, "transport"))
	c.clock = clock.New(c.session, logger.For(log, "clock"))
	c.devices = device.NewReconciler(deps.Provider, deps.Notifier, logger.For(log, "device"))
	c.poller = device.NewPoller(c.devices, cfg.PollInterval)

	var opts []playback.Option
	if cfg.SyncPolicy != nil {
		opts = append(opts, playback.WithPolicy(*cfg.SyncPolicy))
	}
	c.syncer = playback.NewSyncer(deps.Provider, logger.For(log, "playback"), opts...)
	c.room = room.NewControls(c.session, c.hs, c.clock, logger.For(log, "room"))
	c.keep = newLoop(cfg.KeepSyncedInterval, c.keepSyncedTick)

	hsLog := logger.For(log, "handshake")
	c.hs.Subscribe(func(ev handshake.Event, prev, next handshake.State) {
		if prev != next {
			hsLog.Debug().Stringer("event", ev).Stringer("conn", next.Conn).Stringer("room", next.Room).Msg("transition")
		}
	})

	c.session.OnStateChange(c.onSessionState)
	c.session.On(protocol.EventConnected, c.onConnected)
	c.session.On(protocol.EventTimeSyncResponse, c.clock.OnTimeSyncResponse)
	c.room.Bind(c.session)
	c.room.OnMedia(c.onMedia)
	c.room.OnTracks(c.onTracks)

	return c
}

func (c *Client) Room() *room.Controls { return c.room }
func (c *Client) Handshake() *handshake.Machine { return c.hs }
func (c *Client) Clock() *clock.Synchronizer { return c.clock }
func (c *Client) Session() *transport.Session { return c.session }
func (c *Client) DeviceReconciler() *device.Reconciler { return c.devices }

// Hydrate loads the current user and the configured room.
func (c *Client) Hydrate(ctx context.Context) error {
	if c.deps.Lookup != nil {
		u, err := c.deps.Lookup.CurrentUser(ctx)
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		c.room.SetUser(&u)
	} else if c.cfg.UserID != "" {
		c.room.SetUser(&protocol.User{UserID: c.cfg.UserID})
	}
	if c.room.User() == nil {
		return fmt.Errorf("client: %w", room.ErrNoUser)
	}

	if c.cfg.RoomID == "" {
		return nil
	}
	r := protocol.Room{RoomID: c.cfg.RoomID}
	if c.deps.Lookup != nil {
		meta, err := c.deps.Lookup.Room(ctx, c.cfg.RoomID)
		if err != nil {
			c.log.Warn().Err(err).Str("room", c.cfg.RoomID).Msg("room lookup")
		} else {
			r = meta
		}
	}
	c.room.SetRoom(&r)
	return nil
}

// Open connects the session and starts the keep-synced loop if enabled.
func (c *Client) Open(ctx context.Context) error {
	if err := c.session.Open(ctx); err != nil {
		return err
	}
	if c.cfg.KeepSynced {
		c.keep.start(c.ctx)
	}
	return nil
}

// Run hydrates, connects and reconnects after every lost connection until
// ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Hydrate(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-c.lost:
		default:
		}

		if err := c.Open(ctx); err != nil {
			c.log.Warn().Err(err).Msg("connect")
		} else {
			select {
			case <-ctx.Done():
				return c.Close()
			case <-c.lost:
			}
		}

		select {
		case <-ctx.Done():
			return c.Close()
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// Close stops every background loop and the session.
func (c *Client) Close() error {
	c.keep.stop()
	c.poller.Stop()
	c.cancel()
	err := c.session.Close()
	c.wg.Wait()
	return err
}

func (c *Client) onSessionState(st transport.State) {
	switch st {
	case transport.Connected:
		c.hs.Dispatch(handshake.Reset)
		c.hs.Dispatch(handshake.TransportConnected)
		u := c.room.User()
		if u == nil {
			c.log.Warn().Msg("connected without a user")
			return
		}
		// the reply can race the emit, so the phase moves first
		c.hs.Dispatch(handshake.IdentitySent)
		if err := c.session.Emit(protocol.EventConnectUser, protocol.Identity{UserID: u.UserID}); err != nil {
			c.log.Warn().Err(err).Msg("send identity")
		}
	case transport.Disconnected:
		c.hs.Dispatch(handshake.Reset)
		select {
		case c.lost <- struct{}{}:
		default:
		}
	}
}

func (c *Client) onConnected(json.RawMessage) {
	c.hs.Dispatch(handshake.IdentityConfirmed)
	c.clock.RefreshAsync()

	roomID := c.cfg.RoomID
	if r := c.room.Room(); r != nil {
		roomID = r.RoomID
	}
	if roomID == "" {
		return
	}
	if err := c.room.JoinRoom(roomID); err != nil {
		c.log.Warn().Err(err).Str("room", roomID).Msg("rejoin")
	}
}

func (c *Client) onMedia(ev room.MediaEvent) {
	switch ev.Kind {
	case room.MediaPlay:
		if !c.keep.running() {
			return
		}
		c.background(func(ctx context.Context) {
			if err := c.SyncNow(ctx); err != nil {
				c.log.Debug().Err(err).Msg("sync after play")
			}
		})
	case room.MediaPause, room.MediaStop:
		c.background(c.pauseLocal)
	}
}

func (c *Client) onTracks(ids []string) {
	if c.deps.Tracks == nil {
		return
	}
	ids = append([]string(nil), ids...)
	c.background(func(ctx context.Context) {
		c.deps.Tracks.Prefetch(ctx, ids)
	})
}

func (c *Client) background(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, mediaTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// target is what local playback should match right now.
func (c *Client) target() (playback.Target, func() bool, error) {
	r := c.room.Room()
	if r == nil {
		return playback.Target{}, nil, room.ErrNoRoom
	}
	item, ok := c.room.CurrentItem()
	if !ok || !c.room.Playing() {
		return playback.Target{}, nil, ErrNothingPlaying
	}

	t := playback.Target{
		ContextURI: r.ContextURI(),
		TrackID:    item.SpotifyID,
		TrackURI:   item.TrackURI(),
	}
	if item.StartTime != nil {
		t.StartedAt = *item.StartTime
	}
	if d, ok := c.devices.Active(); ok {
		t.DeviceID = d.ID
	}

	roomID, trackID := r.RoomID, item.SpotifyID
	guard := func() bool {
		cur := c.room.Room()
		it, ok := c.room.CurrentItem()
		return cur != nil && cur.RoomID == roomID && ok && it.SpotifyID == trackID && c.room.Playing()
	}
	return t, guard, nil
}

// SyncNow makes local playback match the room. Only one run is active at a
// time; a second caller gets playback.ErrInProgress. A failed run is
// reported to the notifier exactly once.
func (c *Client) SyncNow(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		return playback.ErrInProgress
	}
	defer c.syncing.Store(false)

	if _, _, err := c.target(); err != nil {
		return err
	}
	if _, ok := c.devices.Active(); !ok {
		_ = c.devices.Refresh(ctx)
	}
	t, guard, err := c.target()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lastTarget = &t
	c.mu.Unlock()

	res, err := c.syncer.Sync(ctx, t, guard)
	switch {
	case err == nil:
		c.log.Debug().Int("attempts", res.Attempts).Str("track", t.TrackID).Msg("in sync")
		return nil
	case errors.Is(err, playback.ErrStale), errors.Is(err, context.Canceled):
		return err
	}
	c.log.Warn().Err(err).Int("attempts", res.Attempts).Str("track", t.TrackID).Msg("sync failed")
	c.deps.Notifier.Notify("Playback", "Could not sync playback with the room")
	return err
}

// pauseLocal pauses the provider if it is playing the room's item.
func (c *Client) pauseLocal(ctx context.Context) {
	c.mu.Lock()
	t := c.lastTarget
	c.mu.Unlock()
	if t == nil {
		return
	}
	st, err := c.deps.Provider.PlaybackState(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("playback state before pause")
		return
	}
	if !playback.Listening(st, *t) {
		return
	}
	if err := c.deps.Provider.Pause(ctx, st.Device.ID); err != nil {
		c.log.Warn().Err(err).Msg("pause")
		c.deps.Notifier.Notify("Playback", "Could not pause playback")
	}
}

// SetKeepSynced turns the periodic re-sync on or off. While it is off,
// playMedia does not trigger a sync either; SyncNow still works.
func (c *Client) SetKeepSynced(on bool) {
	if on {
		c.keep.start(c.ctx)
	} else {
		c.keep.stop()
	}
}

func (c *Client) keepSyncedTick(ctx context.Context) {
	if !c.room.Playing() {
		return
	}
	err := c.SyncNow(ctx)
	if err != nil && !errors.Is(err, room.ErrPrecondition) && !errors.Is(err, playback.ErrInProgress) {
		c.log.Debug().Err(err).Msg("keep synced")
	}
}
