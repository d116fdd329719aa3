// Package audit provides AuditSink implementations: a zap-backed sink
// for production and a recording sink for tests. The core treats audit
// delivery as fire-and-forget; neither sink can abort a workflow.
package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/event"
)

// ZapSink writes audit events to the structured log
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a log-backed audit sink
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("audit")}
}

// Record logs the event; it never returns an error
func (s *ZapSink) Record(_ context.Context, e *event.Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("kind", e.Kind.String()),
		zap.String("actor", e.Actor),
		zap.String("business_id", e.BusinessID),
		zap.String("severity", string(e.Severity)),
		zap.Time("timestamp", e.Timestamp),
		zap.Any("payload", e.Payload),
	}
	if e.BatchID != "" {
		fields = append(fields, zap.String("batch_id", e.BatchID))
	}
	if e.SessionID != "" {
		fields = append(fields, zap.String("session_id", e.SessionID))
	}

	switch e.Severity {
	case event.SeverityCritical:
		s.logger.Error(e.Description, fields...)
	case event.SeverityWarning:
		s.logger.Warn(e.Description, fields...)
	default:
		s.logger.Info(e.Description, fields...)
	}
	return nil
}

// Sink is re-declared here to avoid an import cycle with the port
// package; any Record implementation satisfies both.
type Sink interface {
	Record(ctx context.Context, e *event.Event) error
}

// Fanout delivers every event to all sinks. The first error is
// returned, after every sink has seen the event.
type Fanout struct {
	sinks []Sink
}

// NewFanout combines multiple sinks into one
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Record forwards the event to each sink
func (f *Fanout) Record(ctx context.Context, e *event.Event) error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Record(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordingSink captures events in memory for assertions
type RecordingSink struct {
	mu     sync.Mutex
	events []*event.Event
}

// NewRecordingSink creates an in-memory audit sink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Record appends the event
func (s *RecordingSink) Record(_ context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything recorded so far
func (s *RecordingSink) Events() []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*event.Event{}, s.events...)
}

// ByKind returns the recorded events of one kind
func (s *RecordingSink) ByKind(kind event.Kind) []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*event.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
