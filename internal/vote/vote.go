// Package vote is the per-user vote toggle for queue items.
package vote

import (
	"sync"

	"musicroom-sync-client/internal/protocol"
)

type Direction int

const (
	None Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "none"
}

// Transition is the outcome of one vote request: the next direction, the
// event to emit and the optimistic score delta to apply locally.
type Transition struct {
	Next  Direction
	Event string
	Delta int
}

func Upvote(cur Direction) Transition {
	switch cur {
	case Up:
		return Transition{Next: None, Event: protocol.EventUndoSongVote, Delta: -1}
	case Down:
		return Transition{Next: Up, Event: protocol.EventSwapSongVote, Delta: 2}
	default:
		return Transition{Next: Up, Event: protocol.EventUpvoteSong, Delta: 1}
	}
}

func Downvote(cur Direction) Transition {
	switch cur {
	case Down:
		return Transition{Next: None, Event: protocol.EventUndoSongVote, Delta: 1}
	case Up:
		return Transition{Next: Down, Event: protocol.EventSwapSongVote, Delta: -2}
	default:
		return Transition{Next: Down, Event: protocol.EventDownvoteSong, Delta: -1}
	}
}

type key struct {
	user, track string
}

// Book holds at most one vote per (user, track).
type Book struct {
	mu    sync.Mutex
	votes map[key]Direction
}

func NewBook() *Book {
	return &Book{votes: make(map[key]Direction)}
}

func (b *Book) Get(user, track string) Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.votes[key{user, track}]
}

func (b *Book) Set(user, track string, d Direction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d == None {
		delete(b.votes, key{user, track})
		return
	}
	b.votes[key{user, track}] = d
}

// Apply computes and records the transition for a vote request.
func (b *Book) Apply(user, track string, up bool) Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{user, track}
	var tr Transition
	if up {
		tr = Upvote(b.votes[k])
	} else {
		tr = Downvote(b.votes[k])
	}
	if tr.Next == None {
		delete(b.votes, k)
	} else {
		b.votes[k] = tr.Next
	}
	return tr
}

// Load replaces the book with the server's vote list.
func (b *Book) Load(votes []protocol.Vote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.votes = make(map[key]Direction, len(votes))
	for _, v := range votes {
		d := Down
		if v.IsUpvote {
			d = Up
		}
		b.votes[key{v.UserID, v.SpotifyID}] = d
	}
}

func (b *Book) Clear() {
	b.mu.Lock()
	b.votes = make(map[key]Direction)
	b.mu.Unlock()
}

// Forget drops every vote on track.
func (b *Book) Forget(track string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.votes {
		if k.track == track {
			delete(b.votes, k)
		}
	}
}
