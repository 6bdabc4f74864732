package audit

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// SinkImpl implements domain.AuditSink on a buffered channel drained by one
// writer goroutine. Record never blocks the request path: when the buffer is
// full the event is dropped and counted rather than stalling a handler.
type SinkImpl struct {
	events chan *domain.AuditEvent
	logger zerolog.Logger
	done   chan struct{}
}

// NewSink creates and starts a new audit sink.
func NewSink(logger zerolog.Logger, buffer int) *SinkImpl {
	if buffer <= 0 {
		buffer = 1024
	}
	s := &SinkImpl{
		events: make(chan *domain.AuditEvent, buffer),
		logger: logger.With().Str("component", "audit").Logger(),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record implements domain.AuditSink.
func (s *SinkImpl) Record(event *domain.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn().Str("event_type", string(event.EventType)).Msg("audit buffer full, event dropped")
	}
}

// Close flushes buffered events and stops the writer.
func (s *SinkImpl) Close() {
	close(s.events)
	<-s.done
}

func (s *SinkImpl) drain() {
	defer close(s.done)
	for event := range s.events {
		entry := s.logger.Info()
		if !event.Success {
			entry = s.logger.Warn()
		}
		entry = entry.
			Str("event_type", string(event.EventType)).
			Time("event_time", event.Timestamp).
			Bool("success", event.Success)
		if event.SessionID != "" {
			entry = entry.Str("session_id", event.SessionID)
		}
		if event.StaffID != "" {
			entry = entry.Str("staff_id", event.StaffID)
		}
		if event.RequestID != "" {
			entry = entry.Str("request_id", event.RequestID)
		}
		if event.ConsultationID != "" {
			entry = entry.Str("consultation_id", event.ConsultationID)
		}
		if event.Origin != "" {
			entry = entry.Str("origin", event.Origin)
		}
		if event.ErrorMsg != "" {
			entry = entry.Str("error_msg", event.ErrorMsg)
		}
		if len(event.Metadata) > 0 {
			entry = entry.Fields(map[string]interface{}{"metadata": event.Metadata})
		}
		entry.Msg("audit event")
	}
}
