// Package stream rebuilds generated text from an incremental event stream.
//
// The wire format is line oriented: each event is a `data: <json>` line whose
// JSON carries choices[0].delta.content, and the stream ends at
// `data: [DONE]` or when the connection closes. Chunks may split lines and
// JSON payloads anywhere.
package stream

import (
	"bytes"
	"encoding/json"
	"strings"

	"notebook-backend/internal/model"
	"notebook-backend/pkg/logger"
)

const (
	dataPrefix   = "data: "
	eventPrefix  = "event: "
	doneSentinel = "[DONE]"

	DefaultMaxPendingBytes = 1 << 20
	DefaultMaxRetries      = 8
)

// Sink receives every snapshot of the accumulated text, in order.
type Sink func(snapshot string)

type options struct {
	maxPendingBytes int
	maxRetries      int
}

type Option func(*options)

// WithMaxPendingBytes caps both an unterminated line and a held payload.
func WithMaxPendingBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPendingBytes = n
		}
	}
}

// WithMaxRetries caps how many continuation lines a held payload may absorb.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// held is a data payload that failed to decode and is waiting for the rest of
// its JSON.
type held struct {
	payload string
	event   string
	retries int
}

// Assembler is a push parser: feed it raw chunks, collect snapshots.
// It is not safe for concurrent use; one Assembler serves one request.
type Assembler struct {
	opts       options
	pending    []byte
	discarding bool
	text       strings.Builder
	event      string
	held       *held
	done       bool
	err        error
}

func NewAssembler(opts ...Option) *Assembler {
	o := options{
		maxPendingBytes: DefaultMaxPendingBytes,
		maxRetries:      DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Assembler{opts: o}
}

// Feed appends a chunk and processes every complete line in the buffer.
// It returns the snapshots produced, one per non-empty delta.
func (a *Assembler) Feed(chunk []byte) []string {
	if a.done {
		return nil
	}

	if a.discarding {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return nil
		}
		chunk = chunk[i+1:]
		a.discarding = false
	}

	a.pending = append(a.pending, chunk...)

	var snapshots []string
	consumed := 0
	for !a.done {
		i := bytes.IndexByte(a.pending[consumed:], '\n')
		if i < 0 {
			break
		}
		line := string(a.pending[consumed : consumed+i])
		consumed += i + 1
		if snap, ok := a.processLine(strings.TrimSuffix(line, "\r")); ok {
			snapshots = append(snapshots, snap)
		}
	}

	if a.done {
		a.pending = nil
		return snapshots
	}

	if consumed > 0 {
		a.pending = append(a.pending[:0:0], a.pending[consumed:]...)
	}
	if len(a.pending) > a.opts.maxPendingBytes {
		logger.Warnf("stream: discarding unterminated line of %d bytes", len(a.pending))
		a.pending = nil
		a.discarding = true
	}

	return snapshots
}

// Finish finalizes the stream after the connection closed. A trailing line
// without a newline is still processed; a payload that never became valid
// JSON is dropped. Closing without [DONE] is not an error.
func (a *Assembler) Finish() []string {
	var snapshots []string
	if !a.done && !a.discarding && len(a.pending) > 0 {
		line := strings.TrimSuffix(string(a.pending), "\r")
		a.pending = nil
		if snap, ok := a.processLine(line); ok {
			snapshots = append(snapshots, snap)
		}
	}
	if a.held != nil {
		a.dropHeld("stream closed")
	}
	a.done = true
	a.pending = nil
	return snapshots
}

// Text returns the accumulated response so far.
func (a *Assembler) Text() string {
	return a.text.String()
}

// Done reports whether [DONE] was seen or Finish was called.
func (a *Assembler) Done() bool {
	return a.done
}

// Err returns the error reported by the server through an `event: error`
// line, if any.
func (a *Assembler) Err() error {
	return a.err
}

func (a *Assembler) processLine(line string) (string, bool) {
	if a.held != nil {
		if isContinuation(line) {
			return a.continueHeld(line)
		}
		a.dropHeld("event ended before payload completed")
	}

	if line == "" {
		a.event = ""
		return "", false
	}
	if strings.HasPrefix(line, ":") {
		return "", false
	}
	if strings.HasPrefix(line, eventPrefix) {
		a.event = strings.TrimSpace(line[len(eventPrefix):])
		return "", false
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneSentinel {
		a.done = true
		return "", false
	}

	// an event name applies only to the next data line
	event := a.event
	a.event = ""
	return a.decode(payload, event)
}

func (a *Assembler) decode(payload, event string) (string, bool) {
	if event == "error" {
		var e model.ErrorResponse
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			a.hold(payload, event)
			return "", false
		}
		if e.Error != "" && a.err == nil {
			a.err = &ServerError{Message: e.Error}
		}
		return "", false
	}

	var env model.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		a.hold(payload, event)
		return "", false
	}

	delta := env.DeltaContent()
	if delta == "" {
		return "", false
	}
	a.text.WriteString(delta)
	return a.text.String(), true
}

func (a *Assembler) hold(payload, event string) {
	if len(payload) > a.opts.maxPendingBytes {
		logger.Warnf("stream: dropping oversized malformed payload (%d bytes)", len(payload))
		return
	}
	a.held = &held{payload: payload, event: event}
}

func (a *Assembler) continueHeld(line string) (string, bool) {
	h := a.held
	h.payload += "\n" + line
	h.retries++

	if len(h.payload) > a.opts.maxPendingBytes {
		a.dropHeld("payload exceeded size limit")
		return "", false
	}

	a.held = nil
	snap, ok := a.decode(h.payload, h.event)
	if a.held == nil {
		return snap, ok
	}
	// still invalid; decode re-held it with a fresh counter
	a.held.retries = h.retries
	if a.held.retries >= a.opts.maxRetries {
		a.dropHeld("retry limit reached")
	}
	return "", false
}

func (a *Assembler) dropHeld(reason string) {
	logger.Warnf("stream: dropping malformed payload (%s): %.80q", reason, a.held.payload)
	a.held = nil
}

// isContinuation reports whether line can be the remainder of a payload
// split across lines, as opposed to the start of something new.
func isContinuation(line string) bool {
	if line == "" {
		return false
	}
	for _, prefix := range []string{"data:", ":", "event:", "id:", "retry:"} {
		if strings.HasPrefix(line, prefix) {
			return false
		}
	}
	return true
}
