package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"musicroom-sync-client/internal/notify"
	"musicroom-sync-client/internal/provider"
	"musicroom-sync-client/internal/provider/providertest"
)

var (
	devA = provider.Device{ID: "A", Name: "Phone", Kind: "Smartphone", ActiveAtProvider: true}
	devB = provider.Device{ID: "B", Name: "Laptop", Kind: "Computer"}
	devC = provider.Device{ID: "C", Name: "Speaker", Kind: "Speaker"}
)

func base() State {
	return State{Devices: []provider.Device{devA, devB, devC}, Confirmed: "A"}
}

func TestReduce(t *testing.T) {
	t.Run("empty id is a no-op", func(t *testing.T) {
		s, tr := Reduce(base(), Event{UserInitiated: true})
		assert.Nil(t, tr)
		assert.Equal(t, base(), s)
	})

	t.Run("unknown device is a no-op", func(t *testing.T) {
		s, tr := Reduce(base(), Event{DeviceID: "Z", UserInitiated: true})
		assert.Nil(t, tr)
		assert.Equal(t, base(), s)
	})

	t.Run("poll adopts the provider device", func(t *testing.T) {
		s, tr := Reduce(base(), Event{DeviceID: "B"})
		assert.Nil(t, tr)
		assert.Equal(t, "B", s.Confirmed)
		assert.Equal(t, "B", s.Current())
	})

	t.Run("user picks inactive device once", func(t *testing.T) {
		s, tr := Reduce(base(), Event{DeviceID: "B", UserInitiated: true})
		require.NotNil(t, tr)
		assert.Equal(t, "B", tr.DeviceID)
		assert.Equal(t, "B", s.Current())
		assert.Equal(t, "A", s.Confirmed)

		s, tr = Reduce(s, Event{DeviceID: "B", UserInitiated: true})
		assert.Nil(t, tr, "repeat before confirmation")
		assert.Equal(t, "B", s.Current())
	})

	t.Run("user picks device already active at provider", func(t *testing.T) {
		st := base()
		st.Confirmed = ""
		s, tr := Reduce(st, Event{DeviceID: "A", UserInitiated: true})
		assert.Nil(t, tr)
		assert.Equal(t, "A", s.Confirmed)
		assert.Nil(t, s.Pending)
	})

	t.Run("poll confirms the pending device", func(t *testing.T) {
		s, _ := Reduce(base(), Event{DeviceID: "B", UserInitiated: true})
		s, _ = Reduce(s, Event{DeviceID: "B"})
		assert.Nil(t, s.Pending)
		assert.Equal(t, "B", s.Confirmed)
	})

	t.Run("poll keeps an in-flight selection", func(t *testing.T) {
		s, _ := Reduce(base(), Event{DeviceID: "B", UserInitiated: true})
		s, _ = Reduce(s, Event{DeviceID: "C"})
		assert.Equal(t, "C", s.Confirmed)
		assert.Equal(t, "B", s.Current())
	})

	t.Run("poll overrides a settled selection", func(t *testing.T) {
		s, _ := Reduce(base(), Event{DeviceID: "B", UserInitiated: true})
		s = Settle(s, "B", "")
		s, _ = Reduce(s, Event{DeviceID: "C"})
		assert.Nil(t, s.Pending)
		assert.Equal(t, "C", s.Current())
	})
}

func TestSettle_KeepsOptimisticSelectionOnError(t *testing.T) {
	s, _ := Reduce(base(), Event{DeviceID: "B", UserInitiated: true})
	s = Settle(s, "B", "boom")
	require.NotNil(t, s.Pending)
	assert.False(t, s.Pending.InFlight)
	assert.Equal(t, "B", s.Current())
	assert.Equal(t, "boom", s.Err)
}

func TestWithDevices(t *testing.T) {
	s := base()
	s.Pending = &Pending{DeviceID: "C"}
	s = WithDevices(s, []provider.Device{devB})
	assert.Equal(t, "", s.Confirmed)
	assert.Nil(t, s.Pending)

	s = base()
	s.Pending = &Pending{DeviceID: "C", InFlight: true}
	s = WithDevices(s, []provider.Device{devA})
	require.NotNil(t, s.Pending)
}

func newReconciler(t *testing.T, p provider.Provider) (*Reconciler, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	r := NewReconciler(p, rec, zerolog.Nop())
	return r, rec
}

func TestReconciler_SelectTransfersOnce(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("ListDevices", mock.Anything).Return([]provider.Device{devA, devB}, nil)
	p.On("PlaybackState", mock.Anything).Return(provider.PlaybackState{Device: &devA}, nil)
	p.On("TransferPlayback", mock.Anything, "B", true).Return(nil).Once()

	r, rec := newReconciler(t, p)
	ctx := context.Background()
	require.NoError(t, r.Refresh(ctx))
	assert.Equal(t, "A", r.State().Current())

	require.NoError(t, r.Select(ctx, "B"))
	require.NoError(t, r.Select(ctx, "B"))

	p.AssertNumberOfCalls(t, "TransferPlayback", 1)
	assert.Equal(t, "B", r.State().Current())
	assert.Empty(t, rec.All())
}

func TestReconciler_TransferFailure(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("ListDevices", mock.Anything).Return([]provider.Device{devA, devB}, nil)
	p.On("PlaybackState", mock.Anything).Return(provider.PlaybackState{Device: &devA}, nil)
	p.On("TransferPlayback", mock.Anything, "B", true).Return(errors.New("offline"))

	r, rec := newReconciler(t, p)
	ctx := context.Background()
	require.NoError(t, r.Refresh(ctx))

	err := r.Select(ctx, "B")
	require.Error(t, err)

	st := r.State()
	assert.Equal(t, "B", st.Current(), "no rollback")
	assert.Equal(t, "offline", st.Err)
	require.Len(t, rec.All(), 1)

	// the next poll puts the provider back in charge
	require.NoError(t, r.Refresh(ctx))
	assert.Equal(t, "A", r.State().Current())
}

func TestReconciler_SelectUnknown(t *testing.T) {
	p := &providertest.MockProvider{}
	r, _ := newReconciler(t, p)

	err := r.Select(context.Background(), "B")
	assert.ErrorIs(t, err, ErrUnknownDevice)
	p.AssertNotCalled(t, "TransferPlayback", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_RefreshError(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("ListDevices", mock.Anything).Return(nil, errors.New("401"))

	r, rec := newReconciler(t, p)
	require.Error(t, r.Refresh(context.Background()))
	assert.Equal(t, "401", r.State().Err)
	assert.Len(t, rec.All(), 1)
}

func TestPoller(t *testing.T) {
	p := &providertest.MockProvider{}
	p.On("ListDevices", mock.Anything).Return([]provider.Device{devA}, nil)
	p.On("PlaybackState", mock.Anything).Return(provider.PlaybackState{Device: &devA}, nil)

	r, _ := newReconciler(t, p)
	poller := NewPoller(r, 10*time.Millisecond)

	ctx := context.Background()
	poller.SetVisible(ctx, true)
	poller.SetVisible(ctx, true)
	assert.True(t, poller.Running())

	assert.Eventually(t, func() bool {
		return r.State().Confirmed == "A"
	}, time.Second, 5*time.Millisecond)

	poller.SetVisible(ctx, false)
	assert.False(t, poller.Running())

	calls := len(p.Calls)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, calls, len(p.Calls), "no refresh after hide")

	poller.SetVisible(ctx, false)
}
