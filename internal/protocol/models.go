package protocol

import "time"

const (
	trackURIPrefix    = "spotify:track:"
	playlistURIPrefix = "spotify:playlist:"
)

type User struct {
	UserID            string `json:"userID"`
	Username          string `json:"username"`
	ProfileName       string `json:"profile_name,omitempty"`
	HasSpotifyAccount bool   `json:"hasSpotifyAccount"`
}

type Room struct {
	RoomID            string `json:"roomID"`
	Name              string `json:"room_name"`
	Creator           *User  `json:"creator,omitempty"`
	SpotifyPlaylistID string `json:"spotifyPlaylistID"`
}

// ContextURI is the provider context the room manages playback in.
func (r Room) ContextURI() string {
	if r.SpotifyPlaylistID == "" {
		return ""
	}
	return playlistURIPrefix + r.SpotifyPlaylistID
}

// RoomSong is one queue entry. Score is the server's aggregate; Version is
// the server's stamp for the entry and 0 when the server did not stamp it.
type RoomSong struct {
	SpotifyID     string     `json:"spotifyID"`
	UserID        string     `json:"userID"`
	Index         int        `json:"index"`
	Score         int        `json:"score"`
	PlaylistIndex int        `json:"playlistIndex"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	Version       uint64     `json:"version,omitempty"`
}

func (s RoomSong) TrackURI() string {
	return TrackURI(s.SpotifyID)
}

func TrackURI(spotifyID string) string {
	if spotifyID == "" {
		return ""
	}
	return trackURIPrefix + spotifyID
}

type Vote struct {
	UserID    string    `json:"userID"`
	SpotifyID string    `json:"spotifyID"`
	IsUpvote  bool      `json:"isUpvote"`
	CreatedAt time.Time `json:"createdAt"`
}

type LiveChatMessage struct {
	MessageID   string    `json:"messageID"`
	MessageBody string    `json:"messageBody"`
	Sender      User      `json:"sender"`
	RoomID      string    `json:"roomID"`
	DateCreated time.Time `json:"dateCreated"`
}

type ChatEvent struct {
	UserID       string           `json:"userID"`
	Body         *LiveChatMessage `json:"body,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

type QueueEvent struct {
	Songs     []RoomSong `json:"songs"`
	RoomID    string     `json:"roomID"`
	CreatedAt time.Time  `json:"createdAt"`
}

type QueueState struct {
	Room  Room       `json:"room"`
	Songs []RoomSong `json:"songs"`
	Votes []Vote     `json:"votes"`
}

type RoomRequest struct {
	RoomID string `json:"roomID"`
}

// PlaybackEvent is sent for initPlay/initPause/... and received for
// playMedia/pauseMedia/stopMedia/currentMedia. UTCTime is the server's
// start time of the current item in milliseconds since epoch.
type PlaybackEvent struct {
	UserID       string    `json:"userID,omitempty"`
	RoomID       string    `json:"roomID"`
	SpotifyID    *string   `json:"spotifyID"`
	UTCTime      *int64    `json:"UTC_time"`
	Song         *RoomSong `json:"song,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

type DirectMessage struct {
	Index       int        `json:"index"`
	MessageBody string     `json:"messageBody"`
	Sender      User       `json:"sender"`
	Recipient   User       `json:"recipient"`
	DateSent    time.Time  `json:"dateSent"`
	DateRead    *time.Time `json:"dateRead,omitempty"`
	IsRead      bool       `json:"isRead"`
	PID         string     `json:"pID"`
	IsEdited    bool       `json:"isEdited,omitempty"`
	IsDeleted   bool       `json:"isDeleted,omitempty"`
}

type DMEvent struct {
	UserID        string `json:"userID"`
	ParticipantID string `json:"participantID"`
}

type ModifyDM struct {
	UserID        string        `json:"userID"`
	ParticipantID string        `json:"participantID"`
	Action        string        `json:"action"`
	Message       DirectMessage `json:"message"`
}

type EmojiReaction struct {
	DateCreated time.Time `json:"date_created"`
	Body        string    `json:"body"`
	UserID      string    `json:"userID"`
}

type Identity struct {
	UserID string `json:"userID"`
}

type TimeSyncRequest struct {
	T0 int64 `json:"t0"`
}

// TimeSyncResponse carries the client's t0, the server receipt time t1 and
// the server send time t2, all in milliseconds since epoch.
type TimeSyncResponse struct {
	T0 int64 `json:"t0"`
	T1 int64 `json:"t1"`
	T2 int64 `json:"t2"`
}

type PingAck struct {
	HitTime int64 `json:"hitTime,omitempty"`
}
