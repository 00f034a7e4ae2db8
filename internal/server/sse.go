package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEWriter writes numbered Server-Sent Events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	nextID  int
}

// NewSSEWriter sets the stream headers and tells the client to reconnect
// after retry if the connection drops.
func NewSSEWriter(w http.ResponseWriter, retry time.Duration) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	s := &SSEWriter{w: w, flusher: flusher, nextID: 1}
	if retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n\n", retry.Milliseconds()); err != nil {
			return nil, err
		}
		flusher.Flush()
	}
	return s, nil
}

// WriteEvent sends data as JSON under event.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.nextID, event, payload); err != nil {
		return err
	}
	s.nextID++
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", ErrorResponse{Error: message}) //nolint:errcheck
}

// WriteComplete sends the final workflow projection
func (s *SSEWriter) WriteComplete(status any) {
	s.WriteEvent("complete", status) //nolint:errcheck
}
