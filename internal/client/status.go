package client

import (
	"context"
	"time"

	"musicroom-sync-client/internal/status"
)

var _ status.Backend = (*Client)(nil)

const snapshotLookupTimeout = 500 * time.Millisecond

func (c *Client) Snapshot(ctx context.Context) status.Snapshot {
	hs := c.hs.State()
	est := c.clock.Estimate()

	s := status.Snapshot{
		Transport:     c.session.State().String(),
		Handshake:     hs.Conn.String(),
		RoomPhase:     hs.Room.String(),
		Playing:       c.room.Playing(),
		QueueLength:   len(c.room.Queue()),
		RTTMs:         est.RoundTripLatency.Milliseconds(),
		OffsetMs:      est.Offset.Milliseconds(),
		Syncing:       c.syncing.Load(),
		KeepSynced:    c.keep.running(),
		PickerVisible: c.picker.Load(),
	}
	if u := c.room.User(); u != nil {
		s.UserID = u.UserID
	}
	if r := c.room.Room(); r != nil {
		s.RoomID = r.RoomID
	}
	if d, ok := c.devices.Active(); ok {
		s.Device = d.Name
	}

	item, ok := c.room.CurrentItem()
	if !ok {
		return s
	}
	s.CurrentTrack = item.SpotifyID
	if item.StartTime == nil || c.deps.Tracks == nil {
		return s
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotLookupTimeout)
	defer cancel()
	dur, err := c.deps.Tracks.Duration(ctx, item.SpotifyID)
	if err != nil {
		c.log.Debug().Err(err).Str("track", item.SpotifyID).Msg("track duration")
		return s
	}
	s.PositionMs = c.clock.SeekTime(*item.StartTime, dur).Milliseconds()
	return s
}

func (c *Client) Devices() status.Devices {
	st := c.devices.State()
	return status.Devices{
		Current: st.Current(),
		Pending: st.Pending != nil && st.Pending.InFlight,
		Error:   st.Err,
		Devices: st.Devices,
	}
}

func (c *Client) SelectDevice(ctx context.Context, id string) error {
	return c.devices.Select(ctx, id)
}

// SetPickerVisible starts device polling while the picker is shown.
func (c *Client) SetPickerVisible(visible bool) {
	c.picker.Store(visible)
	c.poller.SetVisible(c.ctx, visible)
}
