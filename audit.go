package gatekeeper

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/gatekeeper/internal/audit"
)

// AuditEvent is one security-relevant engine event.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
// Implementations must be safe for use from that goroutine and should not
// block for long; a slow sink fills the buffer.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	SlogSink       = audit.SlogSink
	MultiSink      = audit.MultiSink
)

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewSlogSink logs each event as one structured record.
func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }
