package room

import (
	"encoding/json"
	"errors"
	"time"

	"musicroom-sync-client/internal/handshake"
	"musicroom-sync-client/internal/protocol"
	"musicroom-sync-client/internal/transport"
)

// Subscriber is the inbound half of the transport session.
type Subscriber interface {
	On(event string, h transport.Handler)
}

// Bind registers the room's inbound handlers on sub.
func (c *Controls) Bind(sub Subscriber) {
	on(c, sub, protocol.EventUserJoinedRoom, c.HandleUserJoined)
	on(c, sub, protocol.EventUserLeftRoom, c.HandleUserLeft)
	on(c, sub, protocol.EventLiveChatHistory, c.HandleChatHistory)
	on(c, sub, protocol.EventLiveMessage, c.HandleLiveMessage)
	on(c, sub, protocol.EventEmojiReaction, c.HandleReaction)
	on(c, sub, protocol.EventError, c.HandleServerError)
	on(c, sub, protocol.EventQueueState, c.HandleQueueState)
	on(c, sub, protocol.EventSongAdded, c.HandleSongAdded)
	on(c, sub, protocol.EventSongRemoved, c.HandleSongRemoved)
	on(c, sub, protocol.EventVoteUpdated, c.HandleVoteUpdated)
	on(c, sub, protocol.EventPlayMedia, c.HandlePlayMedia)
	on(c, sub, protocol.EventCurrentMedia, c.HandlePlayMedia)
	on(c, sub, protocol.EventPauseMedia, c.HandlePauseMedia)
	on(c, sub, protocol.EventStopMedia, c.HandleStopMedia)
	on(c, sub, protocol.EventDirectMsg, c.HandleDirectMessage)
	on(c, sub, protocol.EventDMHistory, c.HandleDMHistory)
	on(c, sub, protocol.EventUserOnline, c.HandleUserOnline)
	on(c, sub, protocol.EventUserOffline, c.HandleUserOffline)
	on(c, sub, protocol.EventChatModified, c.HandleChatModified)
}

// on decodes the payload into T before calling h. Contract violations are
// logged at error level, everything else at debug.
func on[T any](c *Controls, sub Subscriber, event string, h func(T) error) {
	sub.On(event, func(raw json.RawMessage) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			c.log.Error().Err(err).Str("event", event).Msg("decode")
			return
		}
		if err := h(v); err != nil {
			if errors.Is(err, ErrContract) {
				c.log.Error().Err(err).Str("event", event).Msg("contract")
				return
			}
			c.log.Debug().Err(err).Str("event", event).Msg("handle")
		}
	})
}

func (c *Controls) isSelf(userID string) bool {
	u := c.User()
	return u != nil && userID != "" && u.UserID == userID
}

// HandleUserJoined confirms our own join and fetches the room's chat and
// queue. Joins by other users need nothing.
func (c *Controls) HandleUserJoined(ev protocol.ChatEvent) error {
	if !c.isSelf(ev.UserID) {
		return nil
	}
	c.hs.Dispatch(handshake.RoomJoinConfirmed)
	if err := c.RequestLiveChatHistory(); err != nil && !errors.Is(err, ErrPrecondition) {
		return err
	}
	if err := c.RequestRoomQueue(); err != nil && !errors.Is(err, ErrPrecondition) {
		return err
	}
	return nil
}

func (c *Controls) HandleUserLeft(ev protocol.ChatEvent) error {
	if c.isSelf(ev.UserID) {
		c.hs.Dispatch(handshake.RoomLeaveConfirmed)
	}
	return nil
}

func (c *Controls) HandleChatHistory(history []protocol.LiveChatMessage) error {
	c.hs.Dispatch(handshake.RoomChatReceived)
	c.mu.Lock()
	c.chat = append([]protocol.LiveChatMessage(nil), history...)
	c.mu.Unlock()
	return nil
}

func (c *Controls) HandleLiveMessage(ev protocol.ChatEvent) error {
	if ev.Body == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil || (ev.Body.RoomID != "" && ev.Body.RoomID != c.room.RoomID) {
		return nil
	}
	c.chat = append(c.chat, *ev.Body)
	return nil
}

func (c *Controls) HandleReaction(r protocol.EmojiReaction) error {
	if c.isSelf(r.UserID) {
		return nil
	}
	c.mu.Lock()
	c.reactions = append(c.reactions, r)
	if n := len(c.reactions); n > maxReactions {
		c.reactions = append([]protocol.EmojiReaction(nil), c.reactions[n-maxReactions:]...)
	}
	c.mu.Unlock()
	return nil
}

func (c *Controls) HandleServerError(ev protocol.ChatEvent) error {
	c.log.Warn().Str("message", ev.ErrorMessage).Msg("server error")
	return nil
}

func (c *Controls) HandleQueueState(st protocol.QueueState) error {
	c.mu.Lock()
	if c.room != nil && st.Room.RoomID != "" && st.Room.RoomID != c.room.RoomID {
		c.mu.Unlock()
		return nil
	}
	if st.Room.RoomID != "" {
		room := st.Room
		c.room = &room
	}
	c.mu.Unlock()
	c.hs.Dispatch(handshake.RoomQueueReceived)

	c.queue.Replace(st.Songs)
	c.votes.Load(st.Votes)
	c.fireTracks(trackIDs(st.Songs))
	return nil
}

func (c *Controls) HandleSongAdded(ev protocol.QueueEvent) error {
	for _, s := range ev.Songs {
		c.queue.Upsert(s)
	}
	c.fireTracks(trackIDs(ev.Songs))
	return nil
}

func (c *Controls) HandleSongRemoved(ev protocol.QueueEvent) error {
	for _, s := range ev.Songs {
		if c.queue.Remove(s) {
			c.votes.Forget(s.SpotifyID)
		}
	}
	return nil
}

func (c *Controls) HandleVoteUpdated(ev protocol.QueueEvent) error {
	if len(ev.Songs) == 0 {
		return &contractError{event: protocol.EventVoteUpdated, msg: "no song"}
	}
	for _, s := range ev.Songs {
		if !c.queue.Upsert(s) {
			c.log.Debug().Str("track", s.SpotifyID).Uint64("version", s.Version).Msg("stale vote update")
		}
	}
	return nil
}

// HandlePlayMedia handles both playMedia and currentMedia.
func (c *Controls) HandlePlayMedia(ev protocol.PlaybackEvent) error {
	if ev.UTCTime == nil {
		c.log.Debug().Msg("play media without start time")
		return nil
	}
	if ev.SpotifyID == nil || *ev.SpotifyID == "" {
		return &contractError{event: protocol.EventPlayMedia, msg: "server did not return song id"}
	}

	start := time.UnixMilli(*ev.UTCTime).UTC()
	song := protocol.RoomSong{SpotifyID: *ev.SpotifyID, StartTime: &start}
	if ev.Song != nil {
		song = *ev.Song
		if song.SpotifyID == "" {
			song.SpotifyID = *ev.SpotifyID
		}
		if song.StartTime == nil {
			song.StartTime = &start
		}
	}

	c.mu.Lock()
	c.current = &song
	c.playing = true
	c.mu.Unlock()

	c.fireTracks([]string{song.SpotifyID})
	c.fireMedia(MediaEvent{Kind: MediaPlay, Song: &song})
	return nil
}

func (c *Controls) HandlePauseMedia(ev protocol.PlaybackEvent) error {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	c.fireMedia(MediaEvent{Kind: MediaPause})
	return nil
}

func (c *Controls) HandleStopMedia(ev protocol.PlaybackEvent) error {
	c.mu.Lock()
	c.playing = false
	c.current = nil
	c.mu.Unlock()
	c.fireMedia(MediaEvent{Kind: MediaStop})
	return nil
}

func (c *Controls) HandleDirectMessage(m protocol.DirectMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inConversation(m) {
		return nil
	}
	c.dms = append(c.dms, m)
	sortDMs(c.dms)
	return nil
}

func (c *Controls) HandleDMHistory(history []protocol.DirectMessage) error {
	c.hs.Dispatch(handshake.DMsReceived)
	dms := append([]protocol.DirectMessage(nil), history...)
	sortDMs(dms)
	c.mu.Lock()
	c.dms = dms
	c.mu.Unlock()
	return nil
}

func (c *Controls) HandleUserOnline(u protocol.Identity) error {
	if c.isSelf(u.UserID) {
		c.hs.Dispatch(handshake.DMJoinConfirmed)
	}
	return nil
}

func (c *Controls) HandleUserOffline(u protocol.Identity) error {
	if c.isSelf(u.UserID) {
		c.hs.Dispatch(handshake.DMLeaveConfirmed)
	}
	return nil
}

// HandleChatModified applies an edit or delete of a direct message.
func (c *Controls) HandleChatModified(m protocol.ModifyDM) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.dms {
		if c.dms[i].Index != m.Message.Index {
			continue
		}
		switch m.Action {
		case protocol.ModifyActionEdit:
			c.dms[i].MessageBody = m.Message.MessageBody
			c.dms[i].IsEdited = true
		case protocol.ModifyActionDelete:
			c.dms = append(c.dms[:i], c.dms[i+1:]...)
		default:
			return &contractError{event: protocol.EventChatModified, msg: "unknown action " + m.Action}
		}
		return nil
	}
	return nil
}

func trackIDs(songs []protocol.RoomSong) []string {
	ids := make([]string, 0, len(songs))
	for _, s := range songs {
		if s.SpotifyID != "" {
			ids = append(ids, s.SpotifyID)
		}
	}
	return ids
}
