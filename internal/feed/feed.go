// Package feed models the change-data-capture stream the engine consumes.
//
// The engine never talks to the upstream database directly; it reads a
// channel of row-change events and leaves delivery, ordering and reconnect
// concerns to the Source implementation. This keeps back-pressure explicit:
// a slow engine slows the channel, not a callback stack.
package feed

import "context"

// Op is the row operation that produced a change event.
type Op string

// Supported change operations.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Event is one raw row change from the upstream store.
// Old is nil for inserts.
type Event struct {
	Table string         `json:"table"`
	Op    Op             `json:"operation"`
	New   map[string]any `json:"new"`
	Old   map[string]any `json:"old,omitempty"`
}

// Source delivers change events until the context is cancelled or Close is
// called. Implementations own reconnection; the events channel is closed
// only on terminal shutdown.
type Source interface {
	Events() <-chan Event
	Close() error
}

// ChanSource adapts a plain channel to the Source interface. Used by tests
// and by embedders that already have an event stream.
type ChanSource struct {
	C chan Event
}

// NewChanSource creates a buffered channel source.
func NewChanSource(buffer int) *ChanSource {
	return &ChanSource{C: make(chan Event, buffer)}
}

// Events implements Source.
func (s *ChanSource) Events() <-chan Event { return s.C }

// Close implements Source.
func (s *ChanSource) Close() error {
	close(s.C)
	return nil
}

// Emit enqueues an event, blocking until the dispatcher drains the channel
// or the context is cancelled.
func (s *ChanSource) Emit(ctx context.Context, ev Event) error {
	select {
	case s.C <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
