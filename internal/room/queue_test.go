package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicroom-sync-client/internal/protocol"
)

func song(id string, index, score int, version uint64) protocol.RoomSong {
	return protocol.RoomSong{SpotifyID: id, Index: index, Score: score, Version: version}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Song.SpotifyID
	}
	return out
}

func TestQueue_OrderByScoreThenInsertion(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{
		song("a", 1, 0, 0),
		song("b", 2, 3, 0),
		song("c", 3, 0, 0),
		song("d", 4, 3, 0),
	})

	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(q.Items()))
}

func TestQueue_OptimisticDelta(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{song("a", 1, 1, 1), song("b", 2, 1, 1)})

	require.True(t, q.AddDelta(song("b", 2, 0, 0), 1))
	items := q.Items()
	assert.Equal(t, []string{"b", "a"}, ids(items))
	assert.Equal(t, 2, items[0].Score())
	assert.Equal(t, 1, items[0].Delta)

	assert.False(t, q.AddDelta(song("zzz", 9, 0, 0), 1))
}

func TestQueue_StaleUpdateKeepsPrediction(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{song("a", 1, 0, 5)})
	q.AddDelta(song("a", 1, 0, 0), 1)

	// Snapshot from before the vote arrives late.
	applied := q.Upsert(song("a", 1, 0, 4))
	assert.False(t, applied)
	items := q.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Score())

	// Same version is not newer either.
	assert.False(t, q.Upsert(song("a", 1, 0, 5)))

	// The confirmation replaces the prediction.
	assert.True(t, q.Upsert(song("a", 1, 1, 6)))
	items = q.Items()
	assert.Equal(t, 1, items[0].Score())
	assert.Equal(t, 0, items[0].Delta)
}

func TestQueue_UnversionedUpdateAlwaysApplies(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{song("a", 1, 0, 7)})
	q.AddDelta(song("a", 1, 0, 0), -1)

	assert.True(t, q.Upsert(song("a", 1, 4, 0)))
	items := q.Items()
	assert.Equal(t, 4, items[0].Score())
	assert.Equal(t, 0, items[0].Delta)

	// The entry keeps its last version.
	assert.False(t, q.Upsert(song("a", 1, 9, 7)))
}

func TestQueue_ReplaceRespectsStaleness(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{song("a", 1, 2, 3), song("b", 2, 0, 1)})
	q.AddDelta(song("a", 1, 0, 0), 1)

	q.Replace([]protocol.RoomSong{song("a", 1, 0, 2), song("c", 3, 0, 1)})

	items := q.Items()
	assert.Equal(t, []string{"a", "c"}, ids(items))
	assert.Equal(t, 3, items[0].Score())
}

func TestQueue_ReplaceKeepsInsertionOrder(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{song("a", 1, 0, 0), song("b", 2, 0, 0)})
	// Server lists b first now, but ties still break by first arrival.
	q.Replace([]protocol.RoomSong{song("b", 2, 0, 0), song("a", 1, 0, 0)})

	assert.Equal(t, []string{"a", "b"}, ids(q.Items()))
}

func TestQueue_SameTrackTwice(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{song("a", 1, 0, 0), song("a", 2, 0, 0)})
	require.Equal(t, 2, q.Len())

	assert.True(t, q.Remove(song("a", 2, 0, 0)))
	items := q.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Song.Index)
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue()
	q.Replace([]protocol.RoomSong{song("a", 1, 0, 4)})

	assert.False(t, q.Remove(song("a", 1, 0, 3)))
	assert.Equal(t, 1, q.Len())
	assert.False(t, q.Remove(song("b", 1, 0, 0)))
	assert.True(t, q.Remove(song("a", 1, 0, 5)))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_LocalEdits(t *testing.T) {
	q := NewQueue()
	q.AddLocal([]protocol.RoomSong{song("a", 0, 0, 9), song("b", 0, 0, 0)})
	q.AddLocal([]protocol.RoomSong{song("a", 0, 0, 0)})
	require.Equal(t, 2, q.Len())

	// Local entries carry no version, so the first stamped update lands.
	assert.True(t, q.Upsert(song("a", 1, 2, 1)))

	q.RemoveLocal([]protocol.RoomSong{song("b", 0, 0, 0)})
	assert.Equal(t, []string{"a"}, ids(q.Items()))

	q.Clear()
	assert.Equal(t, 0, q.Len())
}
