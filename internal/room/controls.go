// Package room is the client's view of the room it is in and the guarded
// commands it can send about it.
package room

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"musicroom-sync-client/internal/handshake"
	"musicroom-sync-client/internal/protocol"
	"musicroom-sync-client/internal/vote"
)

// Emitter is the outbound half of the transport session.
type Emitter interface {
	Connected() bool
	Emit(event string, payload any) error
}

// ClockRefresher is refreshed ahead of server-timestamped commands.
type ClockRefresher interface {
	RefreshAsync()
}

type MediaKind int

const (
	MediaPlay MediaKind = iota
	MediaPause
	MediaStop
)

// MediaEvent reports a playback command broadcast by the server. Song is
// set for MediaPlay.
type MediaEvent struct {
	Kind MediaKind
	Song *protocol.RoomSong
}

const maxReactions = 50

type Controls struct {
	tr    Emitter
	hs    *handshake.Machine
	clock ClockRefresher
	log   zerolog.Logger
	now   func() time.Time

	queue *Queue
	votes *vote.Book

	mu          sync.Mutex
	user        *protocol.User
	room        *protocol.Room
	current     *protocol.RoomSong
	playing     bool
	chat        []protocol.LiveChatMessage
	reactions   []protocol.EmojiReaction
	participant *protocol.User
	dms         []protocol.DirectMessage

	onMedia  []func(MediaEvent)
	onTracks []func(ids []string)
}

func NewControls(tr Emitter, hs *handshake.Machine, clock ClockRefresher, log zerolog.Logger) *Controls {
	return &Controls{
		tr:    tr,
		hs:    hs,
		clock: clock,
		log:   log,
		now:   time.Now,
		queue: NewQueue(),
		votes: vote.NewBook(),
	}
}

// OnMedia registers fn for server playback commands.
func (c *Controls) OnMedia(fn func(MediaEvent)) {
	c.mu.Lock()
	c.onMedia = append(c.onMedia, fn)
	c.mu.Unlock()
}

// OnTracks registers fn for track ids that showed up in the room, so their
// metadata can be fetched ahead of time.
func (c *Controls) OnTracks(fn func(ids []string)) {
	c.mu.Lock()
	c.onTracks = append(c.onTracks, fn)
	c.mu.Unlock()
}

func (c *Controls) SetUser(u *protocol.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

func (c *Controls) User() *protocol.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// SetRoom replaces the room metadata. Switching to another room drops the
// state of the previous one.
func (c *Controls) SetRoom(r *protocol.Room) {
	c.mu.Lock()
	switching := c.room == nil || r == nil || c.room.RoomID != r.RoomID
	c.room = r
	c.mu.Unlock()
	if switching {
		c.resetRoomState()
	}
}

func (c *Controls) Room() *protocol.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// CurrentItem is the item the room is playing, if any.
func (c *Controls) CurrentItem() (protocol.RoomSong, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return protocol.RoomSong{}, false
	}
	return *c.current, true
}

func (c *Controls) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Controls) Queue() []Item { return c.queue.Items() }

func (c *Controls) MyVote(spotifyID string) vote.Direction {
	u := c.User()
	if u == nil {
		return vote.None
	}
	return c.votes.Get(u.UserID, spotifyID)
}

func (c *Controls) Messages() []protocol.LiveChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.LiveChatMessage(nil), c.chat...)
}

func (c *Controls) Reactions() []protocol.EmojiReaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.EmojiReaction(nil), c.reactions...)
}

// CanControlRoom reports whether the current user created the room.
func (c *Controls) CanControlRoom() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil || c.user == nil || c.room.Creator == nil {
		return false
	}
	return c.room.Creator.UserID == c.user.UserID
}

// ready checks the preconditions shared by every command: connected, a
// known user and, if needRoom, a current room.
func (c *Controls) ready(op string, needRoom bool) (protocol.User, protocol.Room, error) {
	if !c.tr.Connected() {
		c.log.Debug().Str("op", op).Msg("skipped: not connected")
		return protocol.User{}, protocol.Room{}, ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		c.log.Debug().Str("op", op).Msg("skipped: no user")
		return protocol.User{}, protocol.Room{}, ErrNoUser
	}
	if !needRoom {
		return *c.user, protocol.Room{}, nil
	}
	if c.room == nil {
		c.log.Debug().Str("op", op).Msg("skipped: no room")
		return protocol.User{}, protocol.Room{}, ErrNoRoom
	}
	return *c.user, *c.room, nil
}

func (c *Controls) emit(event string, payload any) error {
	if err := c.tr.Emit(event, payload); err != nil {
		c.log.Warn().Err(err).Str("event", event).Msg("emit")
		return err
	}
	return nil
}

// volatile sends a message whose loss does not matter.
func (c *Controls) volatile(event string, payload any) {
	if err := c.tr.Emit(event, payload); err != nil {
		c.log.Debug().Err(err).Str("event", event).Msg("volatile emit dropped")
	}
}

func (c *Controls) chatEvent(u protocol.User, roomID, body string) protocol.ChatEvent {
	return protocol.ChatEvent{
		UserID: u.UserID,
		Body: &protocol.LiveChatMessage{
			MessageBody: body,
			Sender:      u,
			RoomID:      roomID,
			DateCreated: c.now().UTC(),
		},
	}
}

// JoinRoom enters roomID and asks for its chat history.
func (c *Controls) JoinRoom(roomID string) error {
	u, _, err := c.ready("joinRoom", false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.room == nil || c.room.RoomID != roomID {
		c.mu.Unlock()
		c.SetRoom(&protocol.Room{RoomID: roomID})
		c.hs.Dispatch(handshake.ClearRoom)
	} else {
		c.mu.Unlock()
	}

	if err := c.emit(protocol.EventJoinRoom, c.chatEvent(u, roomID, "")); err != nil {
		return err
	}
	c.hs.Dispatch(handshake.RoomJoinSent)

	if err := c.RequestLiveChatHistory(); err != nil {
		c.log.Debug().Err(err).Msg("chat history after join")
	}
	return nil
}

// LeaveRoom leaves the current room. Local room state is dropped even when
// the leave cannot be sent.
func (c *Controls) LeaveRoom() error {
	c.mu.Lock()
	u, r := c.user, c.room
	c.mu.Unlock()
	if u == nil {
		return ErrNoUser
	}
	if r == nil {
		return ErrNoRoom
	}

	c.hs.Dispatch(handshake.RoomLeaveStarted)
	var err error
	if c.tr.Connected() {
		err = c.emit(protocol.EventLeaveRoom, c.chatEvent(*u, r.RoomID, ""))
	} else {
		err = ErrNotConnected
	}

	c.mu.Lock()
	c.room = nil
	c.mu.Unlock()
	c.resetRoomState()
	c.hs.Dispatch(handshake.ClearRoom)
	return err
}

func (c *Controls) resetRoomState() {
	c.mu.Lock()
	c.current = nil
	c.playing = false
	c.chat = nil
	c.reactions = nil
	c.mu.Unlock()
	c.queue.Clear()
	c.votes.Clear()
}

// SendLiveChatMessage posts text to the room chat. Blank text is ignored.
func (c *Controls) SendLiveChatMessage(text string) error {
	u, r, err := c.ready("liveMessage", true)
	if err != nil {
		return err
	}
	c.clock.RefreshAsync()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.emit(protocol.EventLiveMessage, c.chatEvent(u, r.RoomID, text))
}

// SendReaction broadcasts an emoji. Delivery is best effort.
func (c *Controls) SendReaction(emoji string) error {
	u, _, err := c.ready("emojiReaction", false)
	if err != nil {
		return err
	}
	c.volatile(protocol.EventEmojiReaction, protocol.EmojiReaction{
		DateCreated: c.now().UTC(),
		Body:        emoji,
		UserID:      u.UserID,
	})
	return nil
}

func (c *Controls) RequestLiveChatHistory() error {
	u, r, err := c.ready("getLiveChatHistory", true)
	if err != nil {
		return err
	}
	if !c.hs.TryRequest(handshake.RoomChatRequested) {
		c.log.Debug().Msg("chat history already requested")
		return ErrDuplicateRequest
	}
	return c.emit(protocol.EventGetLiveChatHistory, c.chatEvent(u, r.RoomID, ""))
}

func (c *Controls) RequestRoomQueue() error {
	_, r, err := c.ready("requestQueue", true)
	if err != nil {
		return err
	}
	if !c.hs.TryRequest(handshake.RoomQueueRequested) {
		c.log.Debug().Msg("queue already requested")
		return ErrDuplicateRequest
	}
	c.volatile(protocol.EventRequestQueue, protocol.RoomRequest{RoomID: r.RoomID})
	return nil
}

// refreshQueue follows a queue mutation with a fresh snapshot request.
func (c *Controls) refreshQueue(roomID string) {
	c.hs.Dispatch(handshake.RoomQueueRequested)
	c.volatile(protocol.EventRequestQueue, protocol.RoomRequest{RoomID: roomID})
}

func (c *Controls) queueEvent(roomID string, songs []protocol.RoomSong) protocol.QueueEvent {
	return protocol.QueueEvent{Songs: songs, RoomID: roomID, CreatedAt: c.now().UTC()}
}

func (c *Controls) EnqueueSongs(songs ...protocol.RoomSong) error {
	_, r, err := c.ready("enqueueSong", true)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return nil
	}
	if err := c.emit(protocol.EventEnqueueSong, c.queueEvent(r.RoomID, songs)); err != nil {
		return err
	}
	c.queue.AddLocal(songs)
	c.refreshQueue(r.RoomID)
	return nil
}

func (c *Controls) DequeueSongs(songs ...protocol.RoomSong) error {
	_, r, err := c.ready("dequeueSong", true)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return nil
	}
	if err := c.emit(protocol.EventDequeueSong, c.queueEvent(r.RoomID, songs)); err != nil {
		return err
	}
	c.queue.RemoveLocal(songs)
	c.refreshQueue(r.RoomID)
	return nil
}

func (c *Controls) ClearQueue() error {
	_, r, err := c.ready("clearQueue", true)
	if err != nil {
		return err
	}
	if err := c.emit(protocol.EventClearQueue, protocol.RoomRequest{RoomID: r.RoomID}); err != nil {
		return err
	}
	c.refreshQueue(r.RoomID)
	return nil
}

func (c *Controls) Upvote(song protocol.RoomSong) error {
	return c.castVote(song, true)
}

func (c *Controls) Downvote(song protocol.RoomSong) error {
	return c.castVote(song, false)
}

func (c *Controls) castVote(song protocol.RoomSong, up bool) error {
	u, r, err := c.ready("vote", true)
	if err != nil {
		return err
	}
	prev := c.votes.Get(u.UserID, song.SpotifyID)
	tr := c.votes.Apply(u.UserID, song.SpotifyID, up)
	if err := c.emit(tr.Event, c.queueEvent(r.RoomID, []protocol.RoomSong{song})); err != nil {
		c.votes.Set(u.UserID, song.SpotifyID, prev)
		return err
	}
	c.queue.AddDelta(song, tr.Delta)
	return nil
}

func (c *Controls) playbackCommand(event string) error {
	u, r, err := c.ready(event, true)
	if err != nil {
		return err
	}
	c.clock.RefreshAsync()
	return c.emit(event, protocol.PlaybackEvent{UserID: u.UserID, RoomID: r.RoomID})
}

func (c *Controls) StartPlayback() error { return c.playbackCommand(protocol.EventInitPlay) }
func (c *Controls) PausePlayback() error { return c.playbackCommand(protocol.EventInitPause) }
func (c *Controls) NextTrack() error     { return c.playbackCommand(protocol.EventInitSkip) }
func (c *Controls) PrevTrack() error     { return c.playbackCommand(protocol.EventInitPrev) }

func (c *Controls) fireMedia(ev MediaEvent) {
	c.mu.Lock()
	fns := append([](func(MediaEvent))(nil), c.onMedia...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Controls) fireTracks(ids []string) {
	if len(ids) == 0 {
		return
	}
	c.mu.Lock()
	fns := append([](func([]string))(nil), c.onTracks...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ids)
	}
}
