// Package provider is the contract to the external playback service and
// its Spotify implementation.
package provider

import (
	"context"
	"fmt"
	"time"
)

type Provider interface {
	ListDevices(ctx context.Context) ([]Device, error)
	PlaybackState(ctx context.Context) (PlaybackState, error)
	StartResume(ctx context.Context, req PlayRequest) error
	Pause(ctx context.Context, deviceID string) error
	SkipNext(ctx context.Context, deviceID string) error
	SkipPrevious(ctx context.Context, deviceID string) error
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	Tracks(ctx context.Context, ids ...string) ([]Track, error)
}

type Device struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	ActiveAtProvider bool   `json:"active"`
}

// PlaybackState is what the provider reports as playing right now. Device
// is nil when nothing is active.
type PlaybackState struct {
	ContextURI string        `json:"contextUri"`
	ItemID     string        `json:"itemId"`
	Playing    bool          `json:"playing"`
	Progress   time.Duration `json:"progress"`
	Device     *Device       `json:"device,omitempty"`
}

// PlayRequest starts or resumes playback of TrackURI inside ContextURI,
// Offset into the track.
type PlayRequest struct {
	DeviceID   string
	ContextURI string
	TrackURI   string
	Offset     time.Duration
}

type Track struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Artists  string        `json:"artists"`
	Album    string        `json:"album"`
	Duration time.Duration `json:"duration"`
}

// Error is a failed provider call. Status is the HTTP status when the
// provider answered, 0 otherwise.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
