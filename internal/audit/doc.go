// Package audit delivers engine audit events to sinks off the request path.
//
// A [Dispatcher] owns a buffered channel and one worker goroutine. When the
// buffer is full it either drops the event and counts it or blocks the
// caller until space, context cancellation or Close. Sinks cover the usual
// destinations: a channel, newline-delimited JSON, slog and fan-out.
// Which events exist is decided by the engine.
package audit
