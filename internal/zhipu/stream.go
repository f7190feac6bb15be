// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package zhipu

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// STREAMING: Line-oriented SSE parsing; malformed chunks are dropped.

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxLineSize is the maximum size of a single SSE line (1MB), counting its
// line terminator. Longer lines are skipped without being held in memory.
const MaxLineSize = 1024 * 1024

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"

	// streamBufferSize is the read buffer of a stream.
	streamBufferSize = 64 * 1024
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is one decoded delta from a chat stream.
type StreamChunk struct {
	Content      string
	Reasoning    string
	FinishReason string
}

// IsDone returns true if the chunk carries a finish reason.
func (c StreamChunk) IsDone() bool {
	return c.FinishReason != ""
}

// streamPayload is the wire shape of a stream event.
type streamPayload struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// =============================================================================
// CHAT STREAM
// =============================================================================

// ChatStream is a finite, non-restartable sequence of chat deltas read from
// a server-sent event body.
//
// Recv returns io.EOF once the stream ends after at least one content delta,
// or ErrNoContent if it ended without any. The body is closed on every
// terminal path, and cancelling the context unblocks a pending Recv.
type ChatStream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *bufio.Reader
	logger *slog.Logger

	content   strings.Builder
	reasoning strings.Builder
	deltas    int
	dropped   int
	err       error

	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

// NewChatStream wraps body as a chat stream bound to ctx.
func NewChatStream(ctx context.Context, body io.ReadCloser) *ChatStream {
	s := &ChatStream{
		ctx:    ctx,
		body:   body,
		reader: bufio.NewReaderSize(body, streamBufferSize),
		logger: slog.Default(),
	}
	s.stop = context.AfterFunc(ctx, func() { s.closeBody() })
	return s
}

// WithLogger sets the logger used for dropped chunks.
func (s *ChatStream) WithLogger(logger *slog.Logger) *ChatStream {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Recv returns the next chunk carrying content, reasoning or a finish reason.
func (s *ChatStream) Recv() (StreamChunk, error) {
	if s.err != nil {
		return StreamChunk{}, s.err
	}

	for {
		if err := s.ctx.Err(); err != nil {
			return s.finish(err)
		}

		line, size, readErr := s.readLine()
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return s.finish(ctxErr)
			}
			return s.finish(&TransportError{Kind: transportKind(readErr), Err: readErr})
		}

		if size > MaxLineSize {
			s.drop("line too long", size, nil)
		} else if chunk, ok, done := s.parseLine(line); done {
			return s.finish(s.endErr())
		} else if ok {
			return chunk, nil
		}

		if readErr != nil {
			return s.finish(s.endErr())
		}
	}
}

// readLine returns the next line and its size in bytes. Once a line grows
// past MaxLineSize the rest of it is read and discarded up to the newline,
// and the returned line is empty.
func (s *ChatStream) readLine() (string, int, error) {
	var (
		buf  []byte
		size int
	)
	for {
		frag, err := s.reader.ReadSlice('\n')
		size += len(frag)
		if size <= MaxLineSize {
			buf = append(buf, frag...)
		} else {
			buf = nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(buf), size, err
	}
}

// parseLine decodes one SSE line. ok is true when the line produced a chunk
// and done is true when it carried the end-of-stream sentinel.
func (s *ChatStream) parseLine(line string) (chunk StreamChunk, ok, done bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, dataPrefix) {
		return chunk, false, false
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == "" {
		return chunk, false, false
	}
	if payload == doneSentinel {
		return chunk, false, true
	}

	var p streamPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		s.drop("malformed chunk", len(payload), err)
		return chunk, false, false
	}
	if len(p.Choices) == 0 {
		return chunk, false, false
	}

	choice := p.Choices[0]
	chunk = StreamChunk{
		Content:      choice.Delta.Content,
		Reasoning:    choice.Delta.ReasoningContent,
		FinishReason: choice.FinishReason,
	}
	if chunk.Content == "" && chunk.Reasoning == "" && chunk.FinishReason == "" {
		return chunk, false, false
	}
	if chunk.Content != "" {
		s.deltas++
		s.content.WriteString(chunk.Content)
	}
	if chunk.Reasoning != "" {
		s.reasoning.WriteString(chunk.Reasoning)
	}
	return chunk, true, false
}

func (s *ChatStream) drop(reason string, size int, err error) {
	s.dropped++
	s.logger.Debug("dropping stream chunk", "reason", reason, "bytes", size, "error", err)
}

func (s *ChatStream) endErr() error {
	if s.deltas == 0 {
		return ErrNoContent
	}
	return io.EOF
}

func (s *ChatStream) finish(err error) (StreamChunk, error) {
	s.err = err
	s.Close()
	return StreamChunk{}, err
}

// Close releases the underlying connection. It is safe to call repeatedly.
func (s *ChatStream) Close() error {
	s.stop()
	return s.closeBody()
}

func (s *ChatStream) closeBody() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// Accumulated returns all content received so far.
func (s *ChatStream) Accumulated() string {
	return s.content.String()
}

// Reasoning returns all reasoning received so far.
func (s *ChatStream) Reasoning() string {
	return s.reasoning.String()
}

// ContentDeltas returns the number of content deltas received.
func (s *ChatStream) ContentDeltas() int {
	return s.deltas
}

// Dropped returns the number of chunks dropped as malformed.
func (s *ChatStream) Dropped() int {
	return s.dropped
}
