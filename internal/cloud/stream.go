// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// dataPrefix marks a line that carries a JSON payload.
	dataPrefix = "data: "

	// doneSentinel is the literal line that ends a stream.
	doneSentinel = "data: [DONE]"

	// readChunkSize is how many bytes are requested per body read.
	readChunkSize = 4 * 1024

	// MaxLineSize bounds the partial line held between reads (1MB).
	// SECURITY: A server that never sends a newline cannot exhaust memory.
	MaxLineSize = 1024 * 1024
)

// ErrLineTooLong is returned when a single event line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("stream line exceeds maximum size")

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is one decoded event payload.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// =============================================================================
// LINE ASSEMBLER
// =============================================================================

// LineAssembler turns arbitrarily split byte chunks into complete lines.
//
// Bytes are appended to an owned buffer; only newline-terminated lines are
// returned, and any trailing partial line is kept for the next Write. Lines
// are converted to text only once complete, so a chunk boundary that falls
// inside a multi-byte UTF-8 sequence cannot corrupt the text.
type LineAssembler struct {
	buf []byte
}

// NewLineAssembler creates an empty assembler.
func NewLineAssembler() *LineAssembler {
	return &LineAssembler{buf: make([]byte, 0, readChunkSize)}
}

// Write appends p and returns every line completed by it, without the
// trailing newline. If the partial line left over exceeds MaxLineSize the
// completed lines are still returned, together with ErrLineTooLong.
func (a *LineAssembler) Write(p []byte) ([]string, error) {
	a.buf = append(a.buf, p...)

	var lines []string
	if last := bytes.LastIndexByte(a.buf, '\n'); last >= 0 {
		lines = strings.Split(string(a.buf[:last]), "\n")

		// Shift the partial tail to the front of the buffer.
		n := copy(a.buf, a.buf[last+1:])
		a.buf = a.buf[:n]
	}

	if len(a.buf) > MaxLineSize {
		return lines, fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(a.buf))
	}
	return lines, nil
}

// Pending returns the partial line currently held.
func (a *LineAssembler) Pending() string {
	return string(a.buf)
}

// Reset discards any held bytes.
func (a *LineAssembler) Reset() {
	a.buf = a.buf[:0]
}

// =============================================================================
// LINE DECODING
// =============================================================================

// ParseLine decodes one complete event line.
//
// Empty lines, the [DONE] sentinel and lines without the "data: " prefix
// yield an empty delta and no error. A data line whose payload is not valid
// JSON returns an error; callers skip it.
func ParseLine(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || line == doneSentinel {
		return "", nil
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", nil
	}

	var chunk StreamChunk
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &chunk); err != nil {
		return "", fmt.Errorf("malformed stream line: %w", err)
	}
	return chunk.GetContent(), nil
}

// =============================================================================
// STREAM PROCESSING
// =============================================================================

// processStream reads body to EOF, delivering each non-empty delta to onDelta
// in arrival order. A partial line left at EOF is discarded.
func (c *Client) processStream(ctx context.Context, body io.Reader, onDelta func(string)) error {
	asm := NewLineAssembler()
	chunk := make([]byte, readChunkSize)
	deltas := 0

	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			lines, asmErr := asm.Write(chunk[:n])
			for _, line := range lines {
				delta, err := ParseLine(line)
				if err != nil {
					c.logger.Warn().Err(err).Str("line", truncate(line, 200)).Msg("skipping stream line")
					continue
				}
				if delta != "" {
					deltas++
					onDelta(delta)
				}
			}
			if asmErr != nil {
				return &TransportError{Op: "read", Err: asmErr}
			}
		}

		if readErr == io.EOF {
			if rest := strings.TrimSpace(asm.Pending()); rest != "" {
				c.logger.Debug().Str("line", truncate(rest, 200)).Msg("discarding partial line at end of stream")
			}
			c.logger.Debug().Int("deltas", deltas).Msg("stream complete")
			return nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				readErr = fmt.Errorf("%w: %v", ctxErr, readErr)
			}
			return &TransportError{Op: "read", Err: readErr}
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
