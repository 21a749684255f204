// Package notify delivers user-visible, non-blocking notifications.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

type Notifier interface {
	Notify(title, message string)
}

// Func adapts a plain function to Notifier.
type Func func(title, message string)

func (f Func) Notify(title, message string) { f(title, message) }

type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(title, message string) {
	n.log.Warn().Str("title", title).Msg(message)
}

type Notification struct {
	Title   string
	Message string
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(title, message string) {
	r.mu.Lock()
	r.list = append(r.list, Notification{Title: title, Message: message})
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(title, message string) {
	for _, n := range m {
		n.Notify(title, message)
	}
}
