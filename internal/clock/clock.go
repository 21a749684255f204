// Package clock estimates the round-trip latency to the live server and the
// offset between the local and the server clock.
package clock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"musicroom-sync-client/internal/protocol"
)

var ErrProbeInFlight = errors.New("clock: probe already in flight")

// Transport is the subset of the session the synchronizer emits through.
type Transport interface {
	Connected() bool
	Emit(event string, payload any) error
	EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error)
}

type Estimate struct {
	RoundTripLatency time.Duration
	Offset           time.Duration
	ProbeInFlight    bool
}

type Option func(*Synchronizer)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.refreshTimeout = d }
}

type Synchronizer struct {
	tr             Transport
	log            zerolog.Logger
	now            func() time.Time
	refreshTimeout time.Duration

	mu  sync.Mutex
	est Estimate
}

func New(tr Transport, log zerolog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		tr:             tr,
		log:            log,
		now:            time.Now,
		refreshTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Synchronizer) Estimate() Estimate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est
}

// Probe measures one round trip to the server. Only one probe runs at a
// time; a concurrent call returns ErrProbeInFlight.
func (s *Synchronizer) Probe(ctx context.Context) error {
	s.mu.Lock()
	if s.est.ProbeInFlight {
		s.mu.Unlock()
		return ErrProbeInFlight
	}
	s.est.ProbeInFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.est.ProbeInFlight = false
		s.mu.Unlock()
	}()

	start := s.now()
	raw, err := s.tr.EmitWithAck(ctx, protocol.EventPing, nil)
	if err != nil {
		return fmt.Errorf("clock: ping: %w", err)
	}
	rtt := s.now().Sub(start)

	var ack protocol.PingAck
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ack); err != nil {
			s.log.Debug().Err(err).Msg("decode ping ack")
		}
	}

	s.mu.Lock()
	s.est.RoundTripLatency = rtt
	s.mu.Unlock()

	s.log.Debug().Dur("rtt", rtt).Int64("hit_time", ack.HitTime).Msg("probe")
	return nil
}

// TimeSync sends the local timestamp t0. The answer arrives as a
// time_sync_response event and is handled by HandleTimeSyncResponse.
func (s *Synchronizer) TimeSync() error {
	t0 := s.now().UnixMilli()
	if err := s.tr.Emit(protocol.EventTimeSync, protocol.TimeSyncRequest{T0: t0}); err != nil {
		return fmt.Errorf("clock: time sync: %w", err)
	}
	return nil
}

func (s *Synchronizer) HandleTimeSyncResponse(resp protocol.TimeSyncResponse) {
	t3 := s.now().UnixMilli()
	off := Offset(resp.T0, resp.T1, resp.T2, t3)

	s.mu.Lock()
	s.est.Offset = off
	s.mu.Unlock()

	s.log.Debug().Dur("offset", off).Msg("time sync")
}

// OnTimeSyncResponse decodes a raw time_sync_response payload.
func (s *Synchronizer) OnTimeSyncResponse(raw json.RawMessage) {
	var resp protocol.TimeSyncResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.log.Warn().Err(err).Msg("decode time sync response")
		return
	}
	s.HandleTimeSyncResponse(resp)
}

// Refresh probes the latency, then asks the server for its clock. A probe
// already in flight does not prevent the time sync.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	if !s.tr.Connected() {
		return nil
	}
	if err := s.Probe(ctx); err != nil && !errors.Is(err, ErrProbeInFlight) {
		return err
	}
	return s.TimeSync()
}

// RefreshAsync runs Refresh in the background and only logs failures.
func (s *Synchronizer) RefreshAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.log.Debug().Err(err).Msg("refresh")
		}
	}()
}

// SeekTime is the position into an item of length duration that started
// on the server at serverStart, as seen now.
func (s *Synchronizer) SeekTime(serverStart time.Time, duration time.Duration) time.Duration {
	return Seek(s.now(), s.Estimate().Offset, serverStart, duration)
}

// Offset is the NTP two-timestamp estimate ((t1-t0)+(t2-t3))/2, all
// arguments in milliseconds since epoch. Latency is assumed symmetric.
func Offset(t0, t1, t2, t3 int64) time.Duration {
	return time.Duration((t1-t0)+(t2-t3)) * time.Millisecond / 2
}

func Seek(now time.Time, offset time.Duration, serverStart time.Time, duration time.Duration) time.Duration {
	elapsed := now.Add(offset).Sub(serverStart)
	if elapsed < 0 {
		return 0
	}
	if elapsed > duration {
		return duration
	}
	return elapsed
}
