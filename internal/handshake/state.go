// Package handshake tracks the realtime connection lifecycle and the
// request/response pairing of room, chat, queue and direct-message
// exchanges. It never performs I/O.
package handshake

type ConnPhase int

const (
	ConnDisconnected ConnPhase = iota
	ConnConnected
	ConnIdentifying
	ConnReady
)

func (p ConnPhase) String() string {
	switch p {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnected:
		return "connected"
	case ConnIdentifying:
		return "identifying"
	case ConnReady:
		return "ready"
	}
	return "unknown"
}

// RoomPhase is used for both room membership and the DM channel.
type RoomPhase int

const (
	RoomIdle RoomPhase = iota
	RoomJoining
	RoomJoined
	RoomLeaving
)

func (p RoomPhase) String() string {
	switch p {
	case RoomIdle:
		return "idle"
	case RoomJoining:
		return "joining"
	case RoomJoined:
		return "joined"
	case RoomLeaving:
		return "leaving"
	}
	return "unknown"
}

// FetchPhase pairs one history request with its response.
type FetchPhase int

const (
	FetchIdle FetchPhase = iota
	FetchRequested
	FetchReceived
)

func (p FetchPhase) String() string {
	switch p {
	case FetchIdle:
		return "idle"
	case FetchRequested:
		return "requested"
	case FetchReceived:
		return "received"
	}
	return "unknown"
}

// State is the full handshake record. The zero value is the initial state.
type State struct {
	Conn  ConnPhase
	Room  RoomPhase
	Chat  FetchPhase
	Queue FetchPhase
	DM    RoomPhase
	DMs   FetchPhase
}

func (s State) SocketConnected() bool   { return s.Conn != ConnDisconnected }
func (s State) SentIdentity() bool      { return s.Conn == ConnIdentifying || s.Conn == ConnReady }
func (s State) IdentityConfirmed() bool { return s.Conn == ConnReady }

// SocketInitialized holds once the transport is connected and the server
// has confirmed who we are.
func (s State) SocketInitialized() bool { return s.Conn == ConnReady }

func (s State) SentRoomJoin() bool       { return s.Room == RoomJoining || s.Room == RoomJoined }
func (s State) RoomJoined() bool         { return s.Room == RoomJoined }
func (s State) RoomChatRequested() bool  { return s.Chat == FetchRequested }
func (s State) RoomChatReceived() bool   { return s.Chat == FetchReceived }
func (s State) RoomQueueRequested() bool { return s.Queue == FetchRequested }
func (s State) RoomQueueReceived() bool  { return s.Queue == FetchReceived }
func (s State) SentDMJoin() bool         { return s.DM == RoomJoining }
func (s State) DMJoined() bool           { return s.DM == RoomJoined }
func (s State) DMsRequested() bool       { return s.DMs == FetchRequested }
func (s State) DMsReceived() bool        { return s.DMs == FetchReceived }

// CanRequestRoomChat reports whether a chat history request may be issued.
func (s State) CanRequestRoomChat() bool  { return s.Chat != FetchRequested }
func (s State) CanRequestRoomQueue() bool { return s.Queue != FetchRequested }
func (s State) CanRequestDMs() bool       { return s.DMs != FetchRequested }
