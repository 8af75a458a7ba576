// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements frame-capped rendering of streamed replies. Fragments
// are accumulated in a StreamingBuffer and applied to the conversation on a
// 30fps tick.
package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Streaming defaults.
const (
	DefaultBatchSize = 15
	DefaultMaxFPS    = 30
	maxFPSLimit      = 60
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer batches fragments for rendering. Content is released when
// DefaultBatchSize fragments have accumulated or a frame interval has passed
// since the last release. Order is always preserved.
type StreamingBuffer struct {
	mu        sync.Mutex
	buffer    strings.Builder
	count     int
	lastFlush time.Time
	batchSize int
	interval  time.Duration
	clock     func() time.Time
}

// NewStreamingBuffer creates a buffer with the default batch size and frame rate.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithConfig(DefaultBatchSize, DefaultMaxFPS)
}

// NewStreamingBufferWithConfig creates a buffer with custom thresholds.
// Out-of-range values fall back to the defaults.
func NewStreamingBufferWithConfig(batchSize, maxFPS int) *StreamingBuffer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxFPS <= 0 || maxFPS > maxFPSLimit {
		maxFPS = DefaultMaxFPS
	}
	sb := &StreamingBuffer{
		batchSize: batchSize,
		interval:  time.Second / time.Duration(maxFPS),
		clock:     time.Now,
	}
	sb.lastFlush = sb.clock()
	return sb
}

// Write adds a fragment.
func (sb *StreamingBuffer) Write(fragment string) {
	if fragment == "" {
		return
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.WriteString(fragment)
	sb.count++
}

// Flush returns the accumulated text if a threshold has been reached.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 {
		return "", false
	}
	if sb.count < sb.batchSize && sb.clock().Sub(sb.lastFlush) < sb.interval {
		return "", false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns all accumulated text regardless of thresholds.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 {
		return "", false
	}
	return sb.takeLocked(), true
}

// Reset drops any accumulated text.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.Reset()
	sb.count = 0
	sb.lastFlush = sb.clock()
}

// Pending returns the number of fragments waiting to be flushed.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.count
}

// Interval returns the minimum time between time-based flushes.
func (sb *StreamingBuffer) Interval() time.Duration {
	return sb.interval
}

func (sb *StreamingBuffer) takeLocked() string {
	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.count = 0
	sb.lastFlush = sb.clock()
	return content
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd sends StreamTickMsg once per frame at DefaultMaxFPS.
func streamTickCmd(seq int) tea.Cmd {
	return tea.Tick(time.Second/DefaultMaxFPS, func(t time.Time) tea.Msg {
		return StreamTickMsg{Seq: seq, Time: t}
	})
}
