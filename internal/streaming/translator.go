// Package streaming translates backend incremental streams into canonical
// chat completion chunks and frames them as SSE events. Backends emit
// line-oriented JSON, optionally prefixed with an SSE "data:" marker and
// optionally terminated by a bare [DONE] sentinel or a JSON object carrying
// a done flag.
package streaming

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/aigateway/aigateway/pkg/types"
)

const (
	// DefaultBufferSize is the initial scanner buffer size.
	DefaultBufferSize = 4096

	// MaxLineSize bounds a single backend line before the translator falls
	// back to raw byte-chunk splitting.
	MaxLineSize = DefaultBufferSize * 16

	// SSEDataPrefix is the prefix for SSE data lines.
	SSEDataPrefix = "data:"

	// SSEDone is the out-of-band terminal sentinel.
	SSEDone = "[DONE]"
)

// bufferPool provides reusable scanner buffers to reduce GC pressure.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

// frame is the backend's incremental wire shape.
type frame struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

// Meta carries the chunk identity shared by every emitted chunk of one
// stream, fixed once when the stream starts.
type Meta struct {
	ID      string
	Created int64
	Model   string
}

// Stream is a pull-based sequence of canonical chunks translated from a
// backend response body. It is single-consume: Recv returns chunks in the
// exact order backend lines arrive and io.EOF once the sequence ends.
type Stream struct {
	ctx     context.Context
	body    io.ReadCloser
	lines   *lineSource
	meta    Meta
	pending *types.StreamChunk
	done    bool
	scanBuf *[]byte
}

// NewStream starts translating body. The caller must drain or Close the
// stream; cancelling ctx stops reading and releases the transport.
func NewStream(ctx context.Context, body io.ReadCloser, meta Meta) *Stream {
	buf := bufferPool.Get().(*[]byte)
	return &Stream{
		ctx:     ctx,
		body:    body,
		lines:   newLineSource(body, *buf),
		meta:    meta,
		scanBuf: buf,
	}
}

// Recv returns the next canonical chunk. It yields io.EOF after the final
// chunk (the one carrying a finish reason) or when the backend closes the
// stream without one.
func (s *Stream) Recv() (*types.StreamChunk, error) {
	if s.pending != nil {
		chunk := s.pending
		s.pending = nil
		return chunk, nil
	}
	if s.done {
		return nil, io.EOF
	}

	for {
		select {
		case <-s.ctx.Done():
			s.close()
			return nil, s.ctx.Err()
		default:
		}

		line, err := s.lines.next()
		if err != nil {
			s.close()
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}

		f, ok := decodeLine(line)
		if !ok {
			continue
		}

		var delta *types.StreamChunk
		if f.Message.Content != "" {
			delta = s.chunk(types.StreamDelta{Content: f.Message.Content}, nil)
		}

		if f.Done {
			reason := f.DoneReason
			if reason == "" {
				reason = types.FinishStop
			}
			final := s.chunk(types.StreamDelta{}, &reason)
			s.done = true
			s.close()
			if delta != nil {
				s.pending = final
				return delta, nil
			}
			return final, nil
		}

		if delta != nil {
			return delta, nil
		}
	}
}

// Close stops the translation and releases the underlying transport.
func (s *Stream) Close() error {
	s.close()
	return nil
}

func (s *Stream) close() {
	if s.body != nil {
		_ = s.body.Close()
		s.body = nil
	}
	if s.scanBuf != nil {
		bufferPool.Put(s.scanBuf)
		s.scanBuf = nil
	}
}

func (s *Stream) chunk(delta types.StreamDelta, finish *string) *types.StreamChunk {
	return &types.StreamChunk{
		ID:      s.meta.ID,
		Object:  types.ObjectChatCompletionChunk,
		Created: s.meta.Created,
		Model:   s.meta.Model,
		Choices: []types.StreamChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	}
}

// decodeLine strips framing from one backend line and decodes the JSON
// object, if any. Empty lines, sentinels, and malformed frames are dropped
// without aborting the stream.
func decodeLine(line []byte) (frame, bool) {
	var f frame

	text := bytes.TrimSpace(line)
	if len(text) == 0 {
		return f, false
	}
	if bytes.Equal(text, []byte(SSEDone)) {
		return f, false
	}
	if bytes.HasPrefix(text, []byte(SSEDataPrefix)) {
		text = bytes.TrimSpace(bytes.TrimPrefix(text, []byte(SSEDataPrefix)))
		if len(text) == 0 || bytes.Equal(text, []byte(SSEDone)) {
			return f, false
		}
	}

	if err := json.Unmarshal(text, &f); err != nil {
		return frame{}, false
	}
	return f, true
}

// lineSource yields backend lines via bufio.Scanner, degrading to raw
// byte-chunk splitting when line iteration fails mid-stream so a framing
// error does not abort the translation.
type lineSource struct {
	scanner  *bufio.Scanner
	raw      io.Reader
	fallback bool
	carry    []byte
	pending  [][]byte
}

func newLineSource(r io.Reader, buf []byte) *lineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(buf, MaxLineSize)
	return &lineSource{scanner: scanner, raw: r}
}

func (ls *lineSource) next() ([]byte, error) {
	if !ls.fallback {
		if ls.scanner.Scan() {
			return ls.scanner.Bytes(), nil
		}
		if err := ls.scanner.Err(); err == nil {
			return nil, io.EOF
		}
		ls.fallback = true
	}
	return ls.nextRaw()
}

func (ls *lineSource) nextRaw() ([]byte, error) {
	for {
		if len(ls.pending) > 0 {
			line := ls.pending[0]
			ls.pending = ls.pending[1:]
			return line, nil
		}

		chunk := make([]byte, DefaultBufferSize)
		n, err := ls.raw.Read(chunk)
		if n > 0 {
			ls.carry = append(ls.carry, chunk[:n]...)
			for {
				idx := bytes.IndexByte(ls.carry, '\n')
				if idx < 0 {
					break
				}
				line := make([]byte, idx)
				copy(line, ls.carry[:idx])
				ls.pending = append(ls.pending, line)
				ls.carry = ls.carry[idx+1:]
			}
		}
		if err != nil {
			if len(ls.carry) > 0 {
				line := ls.carry
				ls.carry = nil
				ls.pending = append(ls.pending, line)
				continue
			}
			if len(ls.pending) > 0 {
				continue
			}
			if err == io.ErrUnexpectedEOF {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}
