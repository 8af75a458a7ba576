// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"strings"

	"github.com/atotto/clipboard"

	chatctl "github.com/jeranaias/revise-tui/internal/chat"
	"github.com/jeranaias/revise-tui/internal/util"
)

// copyToClipboard copies the given text to the system clipboard.
// Returns an error if the clipboard is not available or the operation fails.
func copyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// lastReply returns the newest non-empty assistant text, or "".
func lastReply(ctrl *chatctl.Controller) string {
	t := ctrl.Conversation().LastAssistant()
	if t == nil || t.IsEmpty() {
		return ""
	}
	return t.Content
}

// visualLines counts the rows value occupies when soft-wrapped at width.
func visualLines(value string, width int) int {
	if width <= 0 {
		return strings.Count(value, "\n") + 1
	}
	n := 0
	for _, line := range strings.Split(value, "\n") {
		w := util.Width(line)
		n += max((w+width-1)/width, 1)
	}
	return n
}

// longestLine returns the display width of the widest line in s.
func longestLine(s string) int {
	widest := 0
	for _, line := range strings.Split(s, "\n") {
		widest = max(widest, util.Width(line))
	}
	return widest
}
