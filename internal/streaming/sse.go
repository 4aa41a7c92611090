package streaming

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/aigateway/aigateway/pkg/types"
)

// SSEWriter frames canonical chunks as Server-Sent Events: each chunk is
// written as "data: <json>\n\n" and flushed immediately so tokens reach the
// client without buffering.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares w for event streaming and writes the SSE headers.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteChunk emits one canonical chunk as an SSE event.
func (s *SSEWriter) WriteChunk(chunk *types.StreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "%s %s\n\n", SSEDataPrefix, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteDone emits the terminal "data: [DONE]" frame. It is written
// unconditionally after the chunk sequence ends.
func (s *SSEWriter) WriteDone() error {
	if _, err := fmt.Fprintf(s.w, "%s %s\n\n", SSEDataPrefix, SSEDone); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
