package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"musicroom-sync-client/internal/provider"
	"musicroom-sync-client/internal/provider/providertest"
)

var (
	phone  = provider.Device{ID: "dev", ActiveAtProvider: true}
	target = Target{
		DeviceID:   "dev",
		ContextURI: "spotify:playlist:p1",
		TrackID:    "t1",
		TrackURI:   "spotify:track:t1",
	}
	playingTarget = provider.PlaybackState{ContextURI: "spotify:playlist:p1", ItemID: "t1", Playing: true, Device: &phone}
	playingOther  = provider.PlaybackState{ContextURI: "spotify:playlist:p1", ItemID: "t0", Playing: true, Device: &phone}
)

func newSyncer(p provider.Provider, opts ...Option) *Syncer {
	s := NewSyncer(p, zerolog.Nop(), opts...)
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 10, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(9))
	assert.Equal(t, time.Duration(0), RetryPolicy{}.Delay(1))
}

func TestListening(t *testing.T) {
	assert.True(t, Listening(playingTarget, target))
	assert.False(t, Listening(playingOther, target))

	noDevice := playingTarget
	noDevice.Device = nil
	assert.False(t, Listening(noDevice, target))

	otherContext := playingTarget
	otherContext.ContextURI = "spotify:album:x"
	assert.False(t, Listening(otherContext, target))
}

func TestSync_AlreadyListening(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(playingTarget, nil)

	res, err := newSyncer(p).Sync(context.Background(), target, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Attempts)
	p.AssertNotCalled(t, "StartResume", mock.Anything, mock.Anything)
}

func TestSync_ConvergesOnThirdAttempt(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(playingOther, nil).Times(3)
	p.On("PlaybackState", mock.Anything).Return(playingTarget, nil)
	p.On("StartResume", mock.Anything, mock.Anything).Return(nil)

	res, err := newSyncer(p).Sync(context.Background(), target, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	p.AssertNumberOfCalls(t, "StartResume", 3)
}

func TestSync_ExhaustsAfterExactlyTenAttempts(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(playingOther, nil)
	p.On("StartResume", mock.Anything, mock.Anything).Return(nil)

	res, err := newSyncer(p).Sync(context.Background(), target, nil)
	assert.ErrorIs(t, err, ErrSyncExhausted)
	assert.Equal(t, 10, res.Attempts)
	p.AssertNumberOfCalls(t, "StartResume", 10)
}

func TestSync_StartErrorsCountAsAttempts(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(playingOther, nil)
	p.On("StartResume", mock.Anything, mock.Anything).Return(errors.New("no active device"))

	_, err := newSyncer(p, WithPolicy(RetryPolicy{MaxAttempts: 3})).Sync(context.Background(), target, nil)
	assert.ErrorIs(t, err, ErrSyncExhausted)
	p.AssertNumberOfCalls(t, "StartResume", 3)
}

func TestSync_OffsetFromStartTime(t *testing.T) {
	now := time.UnixMilli(100_000)
	tg := target
	tg.StartedAt = now.Add(-42 * time.Second)

	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(playingOther, nil).Once()
	p.On("PlaybackState", mock.Anything).Return(playingTarget, nil)
	p.On("StartResume", mock.Anything, provider.PlayRequest{
		DeviceID:   "dev",
		ContextURI: "spotify:playlist:p1",
		TrackURI:   "spotify:track:t1",
		Offset:     42 * time.Second,
	}).Return(nil).Once()

	_, err := newSyncer(p, WithClock(func() time.Time { return now })).Sync(context.Background(), tg, nil)
	require.NoError(t, err)
	p.AssertExpectations(t)
}

func TestSync_StaleGuard(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(playingOther, nil)
	p.On("StartResume", mock.Anything, mock.Anything).Return(nil)

	calls := 0
	guard := func() bool {
		calls++
		return calls < 4
	}

	res, err := newSyncer(p).Sync(context.Background(), target, guard)
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, 1, res.Attempts)
}

func TestSync_QueryErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(provider.PlaybackState{}, boom)

	_, err := newSyncer(p).Sync(context.Background(), target, nil)
	assert.ErrorIs(t, err, boom)
}

func TestSync_ContextCancelled(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("PlaybackState", mock.Anything).Return(playingOther, nil)
	p.On("StartResume", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSyncer(p).Sync(ctx, target, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
