package handshake

import "sync"

// Listener observes every applied transition, including no-ops.
type Listener func(ev Event, prev, next State)

// Machine is a concurrency-safe holder around Reduce.
type Machine struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
}

func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dispatch applies ev and returns the resulting state.
func (m *Machine) Dispatch(ev Event) State {
	m.mu.Lock()
	prev := m.state
	next := Reduce(prev, ev)
	m.state = next
	ls := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range ls {
		l(ev, prev, next)
	}
	return next
}

// TryRequest moves a fetch group to Requested if it is not already there.
// It returns false when the request would be a duplicate. The check and
// the transition happen under one lock so two callers cannot both win.
func (m *Machine) TryRequest(ev Event) bool {
	m.mu.Lock()
	prev := m.state
	ok := true
	switch ev {
	case RoomChatRequested:
		ok = prev.CanRequestRoomChat()
	case RoomQueueRequested:
		ok = prev.CanRequestRoomQueue()
	case DMsRequested:
		ok = prev.CanRequestDMs()
	}
	if !ok {
		m.mu.Unlock()
		return false
	}
	next := Reduce(prev, ev)
	m.state = next
	ls := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range ls {
		l(ev, prev, next)
	}
	return true
}

func (m *Machine) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}
