package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Event represents an audit entry for a tool call or a categorization write.
type Event struct {
	// Type describes the event kind.
	Type string
	// Tool is the tool name, if any.
	Tool string
	// CallID links the event to a model tool call.
	CallID string
	// FamilyID scopes the event.
	FamilyID string
	// Status is the outcome (ok, error).
	Status string
	// Reason provides additional context.
	Reason string
}

// Logger records audit events.
type Logger interface {
	// Record stores an audit event.
	Record(ctx context.Context, event Event)
}

// StdLogger writes audit events to slog.
type StdLogger struct {
	logger *slog.Logger
}

// New returns a StdLogger.
func New(logger *slog.Logger) *StdLogger {
	return &StdLogger{logger: logger}
}

// Record logs an audit event.
func (l *StdLogger) Record(_ context.Context, event Event) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("audit",
		"type", event.Type,
		"tool", event.Tool,
		"call_id", event.CallID,
		"family_id", event.FamilyID,
		"status", event.Status,
		"reason", event.Reason,
	)
}

// Recorder keeps events in memory; tests use it to assert on audit trails.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record appends event.
func (r *Recorder) Record(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
