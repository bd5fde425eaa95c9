package stream

import (
	"context"
	"sync"
	"time"
)

// Event describes a credential or payment lifecycle action for the live
// activity feed. Subjects are principal or order identifiers; secrets and
// token material never appear here.
type Event struct {
	Type      string            `json:"type"` // e.g. "auth.login", "payment.verified"
	Subject   string            `json:"subject"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, subject string, fields map[string]string) Event {
	return Event{
		Type:      eventType,
		Subject:   subject,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// Stream fan-outs lifecycle events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
