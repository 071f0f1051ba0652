package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"notebook-backend/internal/model"
)

// SSEWriter emits event-stream lines in the envelope format the stream
// assembler consumes. Safe for concurrent use by a heartbeat goroutine.
type SSEWriter struct {
	w  http.ResponseWriter
	mu sync.Mutex
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w}
}

func (s *SSEWriter) Write(event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}

	s.flush()
	return nil
}

// WriteDelta sends one text fragment wrapped in a delta envelope.
func (s *SSEWriter) WriteDelta(content string) error {
	data, err := json.Marshal(model.NewDeltaEnvelope(content))
	if err != nil {
		return err
	}
	return s.Write("", string(data))
}

func (s *SSEWriter) WriteError(message string) error {
	data, err := json.Marshal(model.ErrorResponse{Error: message})
	if err != nil {
		return err
	}
	return s.Write("error", string(data))
}

// Comment writes an SSE comment line, used as a keep-alive.
func (s *SSEWriter) Comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSEWriter) Close() error {
	return s.Write("", "[DONE]")
}

func (s *SSEWriter) flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
