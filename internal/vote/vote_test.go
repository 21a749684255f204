package vote

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"musicroom-sync-client/internal/protocol"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		name string
		up   bool
		from Direction
		want Transition
	}{
		{"upvote from none", true, None, Transition{Up, protocol.EventUpvoteSong, 1}},
		{"upvote from up undoes", true, Up, Transition{None, protocol.EventUndoSongVote, -1}},
		{"upvote from down swaps", true, Down, Transition{Up, protocol.EventSwapSongVote, 2}},
		{"downvote from none", false, None, Transition{Down, protocol.EventDownvoteSong, -1}},
		{"downvote from down undoes", false, Down, Transition{None, protocol.EventUndoSongVote, 1}},
		{"downvote from up swaps", false, Up, Transition{Down, protocol.EventSwapSongVote, -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Transition
			if tt.up {
				got = Upvote(tt.from)
			} else {
				got = Downvote(tt.from)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBook_Apply(t *testing.T) {
	b := NewBook()

	tr := b.Apply("u1", "t1", true)
	assert.Equal(t, 1, tr.Delta)
	assert.Equal(t, Up, b.Get("u1", "t1"))

	tr = b.Apply("u1", "t1", true)
	assert.Equal(t, -1, tr.Delta)
	assert.Equal(t, None, b.Get("u1", "t1"))

	b.Apply("u1", "t1", false)
	assert.Equal(t, Down, b.Get("u1", "t1"))

	tr = b.Apply("u1", "t1", true)
	assert.Equal(t, protocol.EventSwapSongVote, tr.Event)
	assert.Equal(t, 2, tr.Delta)
	assert.Equal(t, Up, b.Get("u1", "t1"))

	// other users and tracks are independent
	assert.Equal(t, None, b.Get("u2", "t1"))
	assert.Equal(t, None, b.Get("u1", "t2"))
}

func TestBook_LoadAndForget(t *testing.T) {
	b := NewBook()
	b.Set("u1", "t9", Up)

	b.Load([]protocol.Vote{
		{UserID: "u1", SpotifyID: "t1", IsUpvote: true},
		{UserID: "u2", SpotifyID: "t1", IsUpvote: false},
		{UserID: "u1", SpotifyID: "t2", IsUpvote: false},
	})
	assert.Equal(t, None, b.Get("u1", "t9"))
	assert.Equal(t, Up, b.Get("u1", "t1"))
	assert.Equal(t, Down, b.Get("u2", "t1"))

	b.Forget("t1")
	assert.Equal(t, None, b.Get("u1", "t1"))
	assert.Equal(t, Down, b.Get("u1", "t2"))

	b.Clear()
	assert.Equal(t, None, b.Get("u1", "t2"))
}
