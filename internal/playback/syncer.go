package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"musicroom-sync-client/internal/provider"
)

var (
	ErrSyncExhausted = errors.New("playback: not listening to the room after all attempts")
	ErrStale         = errors.New("playback: room or item changed during sync")
	ErrInProgress    = errors.New("playback: sync already running")
)

// Target is what the local provider should be playing.
type Target struct {
	DeviceID   string
	ContextURI string
	TrackID    string
	TrackURI   string
	// StartedAt is when the room started the item; zero means from the top.
	StartedAt time.Time
}

type Result struct {
	Attempts int
}

// Listening reports whether st already plays t on an active device.
func Listening(st provider.PlaybackState, t Target) bool {
	if st.Device == nil || !st.Device.ActiveAtProvider {
		return false
	}
	if t.ContextURI != "" && st.ContextURI != t.ContextURI {
		return false
	}
	return st.ItemID == t.TrackID
}

type Syncer struct {
	prov   provider.Provider
	policy RetryPolicy
	log    zerolog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

type Option func(*Syncer)

func WithPolicy(p RetryPolicy) Option {
	return func(s *Syncer) { s.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func NewSyncer(p provider.Provider, log zerolog.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		prov:   p,
		policy: DefaultPolicy(),
		log:    log,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sync starts playback of t until the provider reports it, up to
// MaxAttempts start calls. guard is consulted before every provider call;
// returning false ends the run with ErrStale.
func (s *Syncer) Sync(ctx context.Context, t Target, guard func() bool) (Result, error) {
	var res Result
	if !check(guard) {
		return res, ErrStale
	}

	st, err := s.prov.PlaybackState(ctx)
	if err != nil {
		return res, fmt.Errorf("playback: query state: %w", err)
	}
	if Listening(st, t) {
		return res, nil
	}

	for res.Attempts < s.policy.MaxAttempts {
		if !check(guard) {
			return res, ErrStale
		}
		res.Attempts++

		req := provider.PlayRequest{
			DeviceID:   t.DeviceID,
			ContextURI: t.ContextURI,
			TrackURI:   t.TrackURI,
			Offset:     s.offset(t),
		}
		if err := s.prov.StartResume(ctx, req); err != nil {
			s.log.Warn().Err(err).Int("attempt", res.Attempts).Msg("start/resume")
		}

		if err := s.sleep(ctx, s.policy.Delay(res.Attempts)); err != nil {
			return res, err
		}
		if !check(guard) {
			return res, ErrStale
		}

		st, err = s.prov.PlaybackState(ctx)
		if err != nil {
			return res, fmt.Errorf("playback: query state: %w", err)
		}
		if Listening(st, t) {
			s.log.Info().Int("attempts", res.Attempts).Str("track", t.TrackID).Msg("synced")
			return res, nil
		}
	}
	return res, ErrSyncExhausted
}

// offset is the wall-clock time since the room started the item.
func (s *Syncer) offset(t Target) time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	d := s.now().Sub(t.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

func check(guard func() bool) bool {
	return guard == nil || guard()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
