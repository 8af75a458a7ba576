// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types used by the chat view.
package chat

import (
	"time"

	"github.com/jeranaias/revise-tui/internal/config"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// DeltaMsg delivers one streamed fragment for the reply with the given ID.
type DeltaMsg struct {
	TurnID string
	Text   string
}

// DoneMsg signals that the network call for a reply has returned.
// Err is nil on a clean end of stream.
type DoneMsg struct {
	TurnID string
	Err    error
}

// StreamTickMsg is sent at a fixed frame rate while a reply streams. Seq
// identifies the submission whose tick loop produced it.
type StreamTickMsg struct {
	Seq  int
	Time time.Time
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg carries a config file reload. Exactly one of Config and
// Err is set.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// CopiedMsg reports the result of copying a reply to the clipboard.
type CopiedMsg struct {
	Chars int
	Err   error
}

// noticeExpiredMsg clears a status notice if it is still the current one.
type noticeExpiredMsg struct {
	seq int
}
