package room

import (
	"sort"
	"sync"

	"musicroom-sync-client/internal/protocol"
)

// Item is one queue entry as the client shows it.
type Item struct {
	Song protocol.RoomSong
	// Delta is the optimistic vote change not yet confirmed by the server.
	Delta int
	// Order is the local insertion sequence, used to break score ties.
	Order int
}

func (i Item) Score() int { return i.Song.Score + i.Delta }

type entry struct {
	song    protocol.RoomSong
	delta   int
	order   int
	version uint64
}

// Queue is the room queue: server state plus optimistic vote deltas.
//
// Server updates carry a version. An update stamped with a version not
// newer than the last one applied to the entry is dropped, so a late
// snapshot cannot clobber a prediction made on top of a newer one. An
// unstamped update (version 0) always applies. Applying a server update
// discards the entry's optimistic delta.
type Queue struct {
	mu      sync.Mutex
	entries []*entry
	seq     int
}

func NewQueue() *Queue {
	return &Queue{}
}

func sameSong(a, b protocol.RoomSong) bool {
	if a.SpotifyID != b.SpotifyID {
		return false
	}
	return a.Index == 0 || b.Index == 0 || a.Index == b.Index
}

func (q *Queue) find(s protocol.RoomSong) int {
	for i, e := range q.entries {
		if sameSong(e.song, s) {
			return i
		}
	}
	return -1
}

func stale(e *entry, s protocol.RoomSong) bool {
	return s.Version != 0 && s.Version <= e.version
}

func (q *Queue) add(s protocol.RoomSong) {
	q.seq++
	q.entries = append(q.entries, &entry{song: s, order: q.seq, version: s.Version})
}

func (e *entry) apply(s protocol.RoomSong) {
	e.song = s
	e.delta = 0
	if s.Version != 0 {
		e.version = s.Version
	}
}

// Replace applies a full server snapshot. Entries missing from the
// snapshot are removed.
func (q *Queue) Replace(songs []protocol.RoomSong) {
	q.mu.Lock()
	defer q.mu.Unlock()

	old := q.entries
	q.entries = make([]*entry, 0, len(songs))
	for _, s := range songs {
		var match *entry
		for i, e := range old {
			if e != nil && sameSong(e.song, s) {
				match = e
				old[i] = nil
				break
			}
		}
		if match == nil {
			q.add(s)
			continue
		}
		if !stale(match, s) {
			match.apply(s)
		}
		q.entries = append(q.entries, match)
	}
}

// Upsert applies one authoritative song update. It reports whether the
// update was applied.
func (q *Queue) Upsert(s protocol.RoomSong) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.find(s)
	if i < 0 {
		q.add(s)
		return true
	}
	e := q.entries[i]
	if stale(e, s) {
		return false
	}
	e.apply(s)
	return true
}

// Remove drops s unless the removal is older than the entry.
func (q *Queue) Remove(s protocol.RoomSong) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.find(s)
	if i < 0 || stale(q.entries[i], s) {
		return false
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return true
}

// AddLocal appends songs the user just enqueued, ahead of the broadcast.
func (q *Queue) AddLocal(songs []protocol.RoomSong) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range songs {
		if q.find(s) < 0 {
			s.Version = 0
			q.add(s)
		}
	}
}

func (q *Queue) RemoveLocal(songs []protocol.RoomSong) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range songs {
		if i := q.find(s); i >= 0 {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
		}
	}
}

// AddDelta applies an optimistic score change to the song's entry.
func (q *Queue) AddDelta(s protocol.RoomSong, delta int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.find(s)
	if i < 0 {
		return false
	}
	q.entries[i].delta += delta
	return true
}

// Items returns the queue ordered by score, highest first, then by
// insertion order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	out := make([]Item, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, Item{Song: e.song, Delta: e.delta, Order: e.order})
	}
	q.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score() != out[j].Score() {
			return out[i].Score() > out[j].Score()
		}
		return out[i].Order < out[j].Order
	})
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.entries = nil
	q.mu.Unlock()
}
