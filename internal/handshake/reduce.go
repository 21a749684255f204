package handshake

type Event int

const (
	Reset Event = iota
	TransportConnected
	IdentitySent
	IdentityConfirmed
	Revalidate

	RoomJoinSent
	RoomJoinConfirmed
	RoomLeaveStarted
	RoomLeaveConfirmed
	ClearRoom

	RoomChatRequested
	RoomChatReceived
	RoomQueueRequested
	RoomQueueReceived

	DMJoinRequested
	DMJoinConfirmed
	DMLeaveRequested
	DMLeaveConfirmed
	DMsRequested
	DMsReceived
)

var eventNames = [...]string{
	Reset:              "reset",
	TransportConnected: "transport_connected",
	IdentitySent:       "identity_sent",
	IdentityConfirmed:  "identity_confirmed",
	Revalidate:         "revalidate",
	RoomJoinSent:       "room_join_sent",
	RoomJoinConfirmed:  "room_join_confirmed",
	RoomLeaveStarted:   "room_leave_started",
	RoomLeaveConfirmed: "room_leave_confirmed",
	ClearRoom:          "clear_room",
	RoomChatRequested:  "room_chat_requested",
	RoomChatReceived:   "room_chat_received",
	RoomQueueRequested: "room_queue_requested",
	RoomQueueReceived:  "room_queue_received",
	DMJoinRequested:    "dm_join_requested",
	DMJoinConfirmed:    "dm_join_confirmed",
	DMLeaveRequested:   "dm_leave_requested",
	DMLeaveConfirmed:   "dm_leave_confirmed",
	DMsRequested:       "dms_requested",
	DMsReceived:        "dms_received",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// Reduce returns the state after applying ev. Responses that arrive
// without a matching request leave the state untouched, as do repeated
// requests.
func Reduce(s State, ev Event) State {
	switch ev {
	case Reset:
		return State{}

	case TransportConnected:
		return State{Conn: ConnConnected}
	case IdentitySent:
		if s.Conn == ConnDisconnected {
			return s
		}
		return State{Conn: ConnIdentifying}
	case IdentityConfirmed:
		if s.Conn != ConnIdentifying {
			return s
		}
		s.Conn = ConnReady
	case Revalidate:
		if s.Conn == ConnDisconnected {
			s.Conn = ConnConnected
		}

	case RoomJoinSent:
		if s.Room == RoomJoining || s.Room == RoomJoined {
			return s
		}
		s.Room = RoomJoining
	case RoomJoinConfirmed:
		if s.Room != RoomJoining {
			return s
		}
		s.Room = RoomJoined
	case RoomLeaveStarted:
		if s.Room == RoomIdle {
			return s
		}
		s.Room = RoomLeaving
	case RoomLeaveConfirmed, ClearRoom:
		s.Room = RoomIdle
		s.Chat = FetchIdle
		s.Queue = FetchIdle

	case RoomChatRequested:
		s.Chat = FetchRequested
	case RoomChatReceived:
		s.Chat = receive(s.Chat)
	case RoomQueueRequested:
		s.Queue = FetchRequested
	case RoomQueueReceived:
		s.Queue = receive(s.Queue)

	case DMJoinRequested:
		if s.DM == RoomJoining {
			return s
		}
		s.DM = RoomJoining
		s.DMs = FetchIdle
	case DMJoinConfirmed:
		if s.DM != RoomJoining {
			return s
		}
		s.DM = RoomJoined
		s.DMs = FetchIdle
	case DMLeaveRequested:
		if s.DM == RoomIdle {
			return s
		}
		s.DM = RoomLeaving
		s.DMs = FetchIdle
	case DMLeaveConfirmed:
		s.DM = RoomIdle
		s.DMs = FetchIdle
	case DMsRequested:
		s.DMs = FetchRequested
	case DMsReceived:
		s.DMs = receive(s.DMs)
	}
	return s
}

func receive(p FetchPhase) FetchPhase {
	if p != FetchRequested {
		return p
	}
	return FetchReceived
}
