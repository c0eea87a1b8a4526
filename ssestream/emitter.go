// Package ssestream implements the framed SSE wire format used to relay
// tool-call progress: one frame is an "id:" line, a "data:" line, and a
// blank line. The Emitter writes frames on a live response; the Decoder
// incrementally reads them back on the caller side.
package ssestream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/turbobackend/mcpbridge/protocol"
)

var (
	ErrEmitterClosed    = errors.New("stream emitter is closed")
	ErrEmitterNotOpen   = errors.New("stream emitter is not open")
	ErrFlushUnsupported = errors.New("streaming is unsupported by response writer")
)

// Emitter writes framed events onto one open streaming response. One counter
// numbers every frame of the session, the initial liveness frame included,
// so emitted ids are strictly increasing from 1. Not safe for concurrent
// use; a session is owned by a single handler goroutine.
type Emitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	nextID  int64
	opened  bool
	closed  bool
}

func NewEmitter(w http.ResponseWriter) *Emitter {
	return &Emitter{w: w}
}

// Open writes the stream headers and commits the response to SSE. After Open
// no regular envelope can be written on this response.
func (e *Emitter) Open() error {
	if e.closed {
		return ErrEmitterClosed
	}
	if e.opened {
		return nil
	}

	flusher, ok := e.w.(http.Flusher)
	if !ok {
		return ErrFlushUnsupported
	}
	e.flusher = flusher

	header := e.w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.flusher.Flush()

	e.opened = true
	return nil
}

// SendRaw writes one frame with an explicit sequence id. String payloads
// pass through verbatim; anything else is JSON-encoded.
func (e *Emitter) SendRaw(id int64, payload any) error {
	if e.closed {
		return ErrEmitterClosed
	}
	if !e.opened {
		return ErrEmitterNotOpen
	}

	data, ok := payload.(string)
	if !ok {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode frame payload: %w", err)
		}
		data = string(encoded)
	}

	if _, err := fmt.Fprintf(e.w, "id: %d\ndata: %s\n\n", id, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	e.flusher.Flush()
	return nil
}

// SendLiveness emits the initial empty frame that signals the channel is
// live. It takes the first sequence id of the session.
func (e *Emitter) SendLiveness() error {
	return e.SendRaw(e.allocID(), "")
}

// SendProgress allocates the next sequence id and emits a progress
// notification frame.
func (e *Emitter) SendProgress(message string, progress float64) error {
	return e.SendRaw(e.allocID(), protocol.NewProgress(message, progress))
}

// SendTerminal allocates the next sequence id and emits the payload that
// ends the session. The caller must Close afterwards.
func (e *Emitter) SendTerminal(payload any) error {
	return e.SendRaw(e.allocID(), payload)
}

// Close seals the emitter. Every later send fails with ErrEmitterClosed;
// the underlying response ends when the handler returns.
func (e *Emitter) Close() {
	e.closed = true
}

func (e *Emitter) allocID() int64 {
	e.nextID++
	return e.nextID
}
