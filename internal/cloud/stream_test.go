// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"\"}}]}\n" +
	"\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"你好，\"}}]}\r\n" +
	": keep-alive comment\n" +
	"data: {broken\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"let's revise 📚\"}}]}\n" +
	"data: {\"choices\":[]}\n" +
	"data: [DONE]\n"

// chunkReader returns its chunks one Read at a time.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func streamDeltas(t *testing.T, chunks ...[]byte) []string {
	t.Helper()
	var got []string
	err := NewClient("k").processStream(context.Background(), &chunkReader{chunks: chunks}, func(d string) {
		got = append(got, d)
	})
	require.NoError(t, err)
	return got
}

// =============================================================================
// LINE ASSEMBLER TESTS
// =============================================================================

func TestLineAssembler_KeepsPartialLine(t *testing.T) {
	asm := NewLineAssembler()

	lines, err := asm.Write([]byte("data: a\ndata: b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"data: a"}, lines)
	assert.Equal(t, "data: b", asm.Pending())

	lines, err = asm.Write([]byte("c\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"data: bc", ""}, lines)
	assert.Equal(t, "", asm.Pending())

	_, _ = asm.Write([]byte("tail"))
	asm.Reset()
	assert.Equal(t, "", asm.Pending())
}

func TestLineAssembler_MultiByteSplit(t *testing.T) {
	text := []byte("复习\n")
	asm := NewLineAssembler()

	// Split inside the first three-byte rune.
	lines, err := asm.Write(text[:1])
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = asm.Write(text[1:])
	require.NoError(t, err)
	assert.Equal(t, []string{"复习"}, lines)
}

func TestLineAssembler_LineTooLong(t *testing.T) {
	asm := NewLineAssembler()
	_, err := asm.Write(bytes.Repeat([]byte("x"), MaxLineSize+1))
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestLineAssembler_LineTooLongAfterNewline(t *testing.T) {
	asm := NewLineAssembler()
	chunk := append([]byte("a\n"), bytes.Repeat([]byte("x"), MaxLineSize+1)...)

	lines, err := asm.Write(chunk)

	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.Equal(t, []string{"a"}, lines, "completed lines still returned")
}

func TestLineAssembler_TailAtLimitAccepted(t *testing.T) {
	asm := NewLineAssembler()
	chunk := append([]byte("a\n"), bytes.Repeat([]byte("x"), MaxLineSize)...)

	lines, err := asm.Write(chunk)

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, lines)
	assert.Len(t, asm.Pending(), MaxLineSize)
}

// =============================================================================
// PARSE LINE TESTS
// =============================================================================

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		wantErr bool
	}{
		{"empty", "", "", false},
		{"whitespace", "  \r", "", false},
		{"done", "data: [DONE]", "", false},
		{"done with spaces", "  data: [DONE]  ", "", false},
		{"delta", `data: {"choices":[{"delta":{"content":"Hi"}}]}`, "Hi", false},
		{"crlf", "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\r", "Hi", false},
		{"no choices", `data: {"choices":[]}`, "", false},
		{"role only", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, "", false},
		{"comment", ": ping", "", false},
		{"event field", "event: message", "", false},
		{"malformed", "data: {nope", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLine(tc.line)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// =============================================================================
// STREAM PROCESSING TESTS
// =============================================================================

func TestProcessStream_DoneIsNoOp(t *testing.T) {
	assert.Empty(t, streamDeltas(t, []byte("data: [DONE]\n")))
}

func TestProcessStream_SplitInvariance(t *testing.T) {
	whole := []byte(sampleStream)
	want := streamDeltas(t, whole)
	require.Equal(t, []string{"你好，", "let's revise 📚"}, want)

	// Every single split point, including ones inside multi-byte runes.
	for i := 1; i < len(whole); i++ {
		a := append([]byte(nil), whole[:i]...)
		b := append([]byte(nil), whole[i:]...)
		got := streamDeltas(t, a, b)
		require.Equal(t, want, got, "split at byte %d", i)
	}

	// Byte-at-a-time delivery.
	var bytesOneByOne [][]byte
	for i := range whole {
		bytesOneByOne = append(bytesOneByOne, []byte{whole[i]})
	}
	assert.Equal(t, want, streamDeltas(t, bytesOneByOne...))
}

func TestProcessStream_ConcatenationMatchesFullText(t *testing.T) {
	var sb strings.Builder
	for _, word := range []string{"Spaced ", "repetition ", "works."} {
		sb.WriteString(`data: {"choices":[{"delta":{"content":"` + word + `"}}]}` + "\n")
	}
	sb.WriteString("data: [DONE]\n")

	got := streamDeltas(t, []byte(sb.String()))
	assert.Equal(t, "Spaced repetition works.", strings.Join(got, ""))
}
