package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"musicroom-sync-client/internal/notify"
	"musicroom-sync-client/internal/provider"
)

var ErrUnknownDevice = errors.New("device: not in the provider's device list")

// Reconciler applies Reduce and runs the transfers it asks for.
type Reconciler struct {
	prov     provider.Provider
	notifier notify.Notifier
	log      zerolog.Logger

	mu    sync.Mutex
	state State
}

func NewReconciler(p provider.Provider, n notify.Notifier, log zerolog.Logger) *Reconciler {
	return &Reconciler{prov: p, notifier: n, log: log}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Active returns the currently selected device, if it is known.
func (r *Reconciler) Active() (provider.Device, bool) {
	st := r.State()
	return st.Lookup(st.Current())
}

// Select is a user-initiated device choice.
func (r *Reconciler) Select(ctx context.Context, id string) error {
	if _, ok := r.State().Lookup(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	return r.apply(ctx, Event{DeviceID: id, UserInitiated: true})
}

// Observe feeds a device the provider reports as active.
func (r *Reconciler) Observe(ctx context.Context, id string) error {
	return r.apply(ctx, Event{DeviceID: id})
}

func (r *Reconciler) apply(ctx context.Context, ev Event) error {
	r.mu.Lock()
	next, tr := Reduce(r.state, ev)
	r.state = next
	r.mu.Unlock()

	if tr == nil {
		return nil
	}

	r.log.Info().Str("device", tr.DeviceID).Msg("transfer playback")
	err := r.prov.TransferPlayback(ctx, tr.DeviceID, true)

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.mu.Lock()
	r.state = Settle(r.state, tr.DeviceID, msg)
	r.mu.Unlock()

	if err != nil {
		r.log.Warn().Err(err).Str("device", tr.DeviceID).Msg("transfer playback")
		r.notifier.Notify("Playback device", "Could not switch device: "+msg)
		return fmt.Errorf("device: transfer to %s: %w", tr.DeviceID, err)
	}
	return nil
}

// Refresh re-reads the device list and playback state from the provider and
// feeds the active device back as a non-user event.
func (r *Reconciler) Refresh(ctx context.Context) error {
	devices, err := r.prov.ListDevices(ctx)
	if err != nil {
		r.fail("Could not fetch devices", err)
		return fmt.Errorf("device: list: %w", err)
	}

	r.mu.Lock()
	r.state = WithDevices(r.state, devices)
	r.mu.Unlock()

	ps, err := r.prov.PlaybackState(ctx)
	if err != nil {
		r.fail("Could not fetch playback state", err)
		return fmt.Errorf("device: playback state: %w", err)
	}

	active := ""
	if ps.Device != nil {
		active = ps.Device.ID
	} else {
		for _, d := range devices {
			if d.ActiveAtProvider {
				active = d.ID
				break
			}
		}
	}
	return r.Observe(ctx, active)
}

func (r *Reconciler) fail(msg string, err error) {
	r.mu.Lock()
	r.state.Err = err.Error()
	r.mu.Unlock()
	r.log.Warn().Err(err).Msg(msg)
	r.notifier.Notify("Playback device", msg)
}
