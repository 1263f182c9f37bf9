package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Event is one security-relevant engine event.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink consumes events. The dispatcher calls Emit from a single goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a consumer goroutine over a buffered channel.
// Emit blocks while the channel is full unless ctx ends first.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.ch }

// JSONWriterSink writes newline-delimited JSON.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// SlogSink logs each event as one record named after its type. Failures log
// at Warn.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "audit")}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, event.EventType, eventAttrs(event)...)
}

func eventAttrs(event Event) []slog.Attr {
	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs, slog.Time("timestamp", event.Timestamp), slog.Bool("success", event.Success))
	for _, kv := range [...]struct{ key, val string }{
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"ip", event.IP},
		{"error", event.Error},
	} {
		if kv.val != "" {
			attrs = append(attrs, slog.String(kv.key, kv.val))
		}
	}
	if len(event.Metadata) > 0 {
		group := make([]any, 0, len(event.Metadata))
		for _, k := range slices.Sorted(maps.Keys(event.Metadata)) {
			group = append(group, slog.String(k, event.Metadata[k]))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}
	return attrs
}

// MultiSink forwards every event to each sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
