// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a settable time source.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBuffer(batch int) (*StreamingBuffer, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	sb := NewStreamingBufferWithConfig(batch, DefaultMaxFPS)
	sb.clock = clk.Now
	sb.Reset()
	return sb, clk
}

// =============================================================================
// STREAMING BUFFER TESTS
// =============================================================================

func TestNewStreamingBuffer_Defaults(t *testing.T) {
	sb := NewStreamingBuffer()
	assert.Equal(t, time.Second/30, sb.Interval())
	assert.Equal(t, 0, sb.Pending())

	sb = NewStreamingBufferWithConfig(-1, 500)
	assert.Equal(t, time.Second/DefaultMaxFPS, sb.Interval(), "out of range fps falls back")
	assert.Equal(t, DefaultBatchSize, sb.batchSize)
}

func TestStreamingBuffer_FlushBySize(t *testing.T) {
	sb, _ := newTestBuffer(3)

	sb.Write("A")
	sb.Write("B")
	_, ok := sb.Flush()
	assert.False(t, ok, "below batch size and inside the frame")

	sb.Write("C")
	got, ok := sb.Flush()
	assert.True(t, ok)
	assert.Equal(t, "ABC", got)
	assert.Equal(t, 0, sb.Pending())
}

func TestStreamingBuffer_FlushByTime(t *testing.T) {
	sb, clk := newTestBuffer(100)

	sb.Write("你好")
	_, ok := sb.Flush()
	assert.False(t, ok)

	clk.Advance(sb.Interval())
	got, ok := sb.Flush()
	assert.True(t, ok)
	assert.Equal(t, "你好", got)
}

func TestStreamingBuffer_ForceFlushAndReset(t *testing.T) {
	sb, _ := newTestBuffer(100)

	_, ok := sb.ForceFlush()
	assert.False(t, ok, "empty buffer")

	sb.Write("part")
	sb.Write("ial")
	got, ok := sb.ForceFlush()
	assert.True(t, ok)
	assert.Equal(t, "partial", got)

	sb.Write("dropped")
	sb.Reset()
	_, ok = sb.ForceFlush()
	assert.False(t, ok)
}

func TestStreamingBuffer_IgnoresEmptyFragments(t *testing.T) {
	sb, _ := newTestBuffer(2)
	sb.Write("")
	sb.Write("")
	assert.Equal(t, 0, sb.Pending())
}

func TestStreamTickCmd(t *testing.T) {
	msg := streamTickCmd(7)()
	tick, ok := msg.(StreamTickMsg)
	assert.True(t, ok)
	assert.Equal(t, 7, tick.Seq)
}
