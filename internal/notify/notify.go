// Package notify carries the engine's user-facing notification events.
// The engine only emits; presentation is an external consumer.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

type Notifier interface {
	Notify(n Notification)
}

// Log writes notifications to the global zerolog logger.
type Log struct{}

func (Log) Notify(n Notification) {
	ev := log.Info()
	switch n.Level {
	case LevelWarn:
		ev = log.Warn()
	case LevelError:
		ev = log.Error()
	}
	ev.Time("at", n.At).Msg(n.Message)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Notify(Notification) {}

// Recorder keeps notifications in memory, for tests and for surfacing the
// recent feed over the API.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n.Message)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

// Fanout delivers each notification to every sink in order.
type Fanout []Notifier

func (f Fanout) Notify(n Notification) {
	for _, s := range f {
		s.Notify(n)
	}
}
