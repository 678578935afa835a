package hubauth

import (
	"io"
	"log/slog"

	"github.com/swahilipot/hubauth/internal/audit"
)

// AuditEvent is one security-relevant record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives audit events on the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// NewChannelSink forwards events to a buffered channel, mainly for tests.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink logs events through logger.
func NewSlogSink(logger *slog.Logger) *audit.SlogSink {
	return audit.NewSlogSink(logger)
}
