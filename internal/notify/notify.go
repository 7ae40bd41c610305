// Package notify decouples the engine from whatever front end delivers
// reports to players. The engine pushes messages at a Sink; transports
// plug in behind it.
package notify

import (
	"log/slog"
	"sync"
)

// Operator is the reserved recipient for messages that need a human
// administrator rather than a player.
const Operator = "operator"

// Sink receives messages addressed to a player (or the Operator).
// Implementations must be safe for concurrent use and must not block the
// caller for long.
type Sink interface {
	Notify(recipientID, message string)
}

// LogSink writes every message to the process log. The default sink when
// no transport is attached.
type LogSink struct{}

// Notify implements Sink.
func (LogSink) Notify(recipientID, message string) {
	slog.Info("notify", "recipient", recipientID, "message", message)
}

// MemorySink records messages for inspection. Used in tests and by the
// HTTP API's outbox endpoint.
type MemorySink struct {
	mu       sync.Mutex
	messages map[string][]string
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{messages: make(map[string][]string)}
}

// Notify implements Sink.
func (s *MemorySink) Notify(recipientID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[recipientID] = append(s.messages[recipientID], message)
}

// Messages returns a copy of everything sent to recipientID.
func (s *MemorySink) Messages(recipientID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages[recipientID]))
	copy(out, s.messages[recipientID])
	return out
}

// Drain returns and clears everything sent to recipientID.
func (s *MemorySink) Drain(recipientID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.messages[recipientID]
	delete(s.messages, recipientID)
	return out
}

// Tee fans one message out to several sinks.
type Tee []Sink

// Notify implements Sink.
func (t Tee) Notify(recipientID, message string) {
	for _, s := range t {
		s.Notify(recipientID, message)
	}
}
