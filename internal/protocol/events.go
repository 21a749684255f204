// Package protocol holds the realtime event catalogue and the payloads
// exchanged with the live server.
package protocol

// Connection
const (
	EventConnectUser = "connectUser"
	EventConnected   = "connected"
	EventError       = "error"
)

// Room lifecycle
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventUserJoinedRoom = "userJoinedRoom"
	EventUserLeftRoom   = "userLeftRoom"
)

// Live chat
const (
	EventLiveMessage        = "liveMessage"
	EventGetLiveChatHistory = "getLiveChatHistory"
	EventLiveChatHistory    = "liveChatHistory"
	EventEmojiReaction      = "emojiReaction"
)

// Queue and voting
const (
	EventEnqueueSong  = "enqueueSong"
	EventDequeueSong  = "dequeueSong"
	EventClearQueue   = "clearQueue"
	EventUpvoteSong   = "upvoteSong"
	EventDownvoteSong = "downvoteSong"
	EventSwapSongVote = "swapSongVote"
	EventUndoSongVote = "undoSongVote"
	EventRequestQueue = "requestQueue"
	EventSongAdded    = "songAdded"
	EventSongRemoved  = "songRemoved"
	EventVoteUpdated  = "voteUpdated"
	EventQueueState   = "queueState"
)

// Synchronised playback
const (
	EventInitPlay     = "initPlay"
	EventInitPause    = "initPause"
	EventInitSkip     = "initSkip"
	EventInitPrev     = "initPrev"
	EventPlayMedia    = "playMedia"
	EventPauseMedia   = "pauseMedia"
	EventStopMedia    = "stopMedia"
	EventCurrentMedia = "currentMedia"
)

// Direct messages
const (
	EventEnterDM      = "enterDirectMessage"
	EventExitDM       = "exitDirectMessage"
	EventDirectMsg    = "directMessage"
	EventModifyDM     = "modifyDirectMessage"
	EventGetDMHistory = "getDirectMessageHistory"
	EventDMHistory    = "dmHistory"
	EventUserOnline   = "userOnline"
	EventUserOffline  = "userOffline"
	EventChatModified = "chatModified"
)

// Clock
const (
	EventPing             = "ping"
	EventTimeSync         = "time_sync"
	EventTimeSyncResponse = "time_sync_response"
)

// DM modification actions carried by EventModifyDM.
const (
	ModifyActionEdit   = "edit"
	ModifyActionDelete = "delete"
)
