// Package device reconciles the playback device the provider reports as
// active with the device the user asked for.
package device

import "musicroom-sync-client/internal/provider"

// Pending is a user selection the provider has not confirmed yet.
type Pending struct {
	DeviceID string
	InFlight bool
}

// State keeps the provider-authoritative device apart from user intent.
type State struct {
	Devices   []provider.Device
	Confirmed string
	Pending   *Pending
	Err       string
}

// Current is the device the user should see as selected.
func (s State) Current() string {
	if s.Pending != nil {
		return s.Pending.DeviceID
	}
	return s.Confirmed
}

func (s State) Lookup(id string) (provider.Device, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return provider.Device{}, false
}

type Event struct {
	DeviceID      string
	UserInitiated bool
}

// Transfer asks the provider to move playback to DeviceID.
type Transfer struct {
	DeviceID string
}

func Reduce(s State, ev Event) (State, *Transfer) {
	if ev.DeviceID == "" {
		return s, nil
	}
	dev, ok := s.Lookup(ev.DeviceID)
	if !ok {
		return s, nil
	}

	if !ev.UserInitiated {
		s.Confirmed = dev.ID
		if p := s.Pending; p != nil && (p.DeviceID == dev.ID || !p.InFlight) {
			s.Pending = nil
		}
		return s, nil
	}

	if dev.ActiveAtProvider {
		s.Confirmed = dev.ID
		s.Pending = nil
		return s, nil
	}
	if s.Current() == dev.ID {
		return s, nil
	}
	s.Pending = &Pending{DeviceID: dev.ID, InFlight: true}
	s.Err = ""
	return s, &Transfer{DeviceID: dev.ID}
}

// Settle marks the in-flight transfer to id as finished. A non-empty
// errMsg is recorded; the pending selection is kept either way.
func Settle(s State, id, errMsg string) State {
	if s.Pending != nil && s.Pending.DeviceID == id {
		p := *s.Pending
		p.InFlight = false
		s.Pending = &p
	}
	if errMsg != "" {
		s.Err = errMsg
	}
	return s
}

// WithDevices replaces the known device set. Selections pointing at
// devices that disappeared are dropped, unless a transfer is in flight.
func WithDevices(s State, devices []provider.Device) State {
	s.Devices = append([]provider.Device(nil), devices...)
	if _, ok := s.Lookup(s.Confirmed); !ok {
		s.Confirmed = ""
	}
	if p := s.Pending; p != nil && !p.InFlight {
		if _, ok := s.Lookup(p.DeviceID); !ok {
			s.Pending = nil
		}
	}
	return s
}
