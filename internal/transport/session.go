package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State of the session's single connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrSendFull     = errors.New("transport: send buffer full")
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   string          `json:"ackId,omitempty"`
}

// Frames of this type answer an earlier EmitWithAck.
const TypeAck = "ack"

// Handler receives the raw payload of an inbound event.
type Handler func(payload json.RawMessage)

type Config struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

// Session owns one long-lived websocket connection. Inbound events are
// dispatched serially from the read goroutine, so handlers observe the
// connection's FIFO order and must not block.
type Session struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	handlers map[string][]Handler
	acks     map[string]chan json.RawMessage
	watchers []func(State)
}

func NewSession(cfg Config, log zerolog.Logger) *Session {
	return &Session{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string][]Handler),
		acks:     make(map[string]chan json.RawMessage),
	}
}

// On registers h for event. Handlers survive reconnects.
func (s *Session) On(event string, h Handler) {
	s.mu.Lock()
	s.handlers[event] = append(s.handlers[event], h)
	s.mu.Unlock()
}

// OnStateChange registers fn to be called on every state transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Connected() bool {
	return s.State() == Connected
}

// Open dials the server. It is a no-op when the session is already open.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = Connecting
	s.mu.Unlock()
	s.notify(Connecting)

	dialer := s.cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		s.mu.Lock()
		s.state = Disconnected
		s.mu.Unlock()
		s.notify(Disconnected)
		return fmt.Errorf("transport: dial %s: %w", s.cfg.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	send := make(chan []byte, sendBuffer)
	done := make(chan struct{})

	s.mu.Lock()
	s.conn = conn
	s.send = send
	s.done = done
	s.state = Connected
	s.mu.Unlock()

	go s.writePump(conn, send, done)
	go s.readPump(conn)

	s.log.Info().Str("url", s.cfg.URL).Msg("connected")
	s.notify(Connected)
	return nil
}

// Close tears the connection down. Pending acks fail with ErrNotConnected.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.teardown(conn)
	return nil
}

// Reconnect closes the current connection (if any) and dials again.
func (s *Session) Reconnect(ctx context.Context) error {
	if err := s.Close(); err != nil {
		return err
	}
	return s.Open(ctx)
}

// Emit queues event for sending. It never blocks.
func (s *Session) Emit(event string, payload any) error {
	return s.emit(event, payload, "")
}

// EmitWithAck sends event and waits for the server's acknowledgement.
func (s *Session) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)

	s.mu.Lock()
	s.acks[id] = ch
	s.mu.Unlock()

	if err := s.emit(event, payload, id); err != nil {
		s.dropAck(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		s.dropAck(id)
		return nil, ctx.Err()
	case p, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		return p, nil
	}
}

func (s *Session) emit(event string, payload any, ackID string) error {
	msg := Message{Type: event, AckID: ackID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("transport: encode %s: %w", event, err)
		}
		msg.Payload = raw
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return ErrNotConnected
	}
	select {
	case s.send <- b:
		return nil
	default:
		return ErrSendFull
	}
}

func (s *Session) dropAck(id string) {
	s.mu.Lock()
	delete(s.acks, id)
	s.mu.Unlock()
}

func (s *Session) dispatch(msg Message) {
	if msg.Type == TypeAck {
		s.mu.Lock()
		ch, ok := s.acks[msg.AckID]
		delete(s.acks, msg.AckID)
		s.mu.Unlock()
		if ok {
			ch <- msg.Payload
		}
		return
	}

	s.mu.Lock()
	hs := append([]Handler(nil), s.handlers[msg.Type]...)
	s.mu.Unlock()
	if len(hs) == 0 {
		s.log.Debug().Str("event", msg.Type).Msg("no handler")
		return
	}
	for _, h := range hs {
		h(msg.Payload)
	}
}

// teardown is idempotent per connection: only the first caller for conn
// changes state.
func (s *Session) teardown(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	close(s.done)
	_ = conn.Close()
	s.conn = nil
	s.state = Disconnected
	for id, ch := range s.acks {
		close(ch)
		delete(s.acks, id)
	}
	s.mu.Unlock()

	s.log.Info().Msg("disconnected")
	s.notify(Disconnected)
}

func (s *Session) notify(st State) {
	s.mu.Lock()
	ws := append([](func(State))(nil), s.watchers...)
	s.mu.Unlock()
	for _, fn := range ws {
		fn(st)
	}
}
