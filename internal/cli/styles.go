// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for line-mode output.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set.

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/revise-tui/internal/ui/styles"
)

// init configures the lipgloss color profile from terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// PromptStyle is the line-mode input prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Indigo).
			Bold(true)

	// TitleStyle is used for the persona name and section headers.
	TitleStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	// InfoStyle is used for the greeting and informational lines.
	InfoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	// DimStyle is used for hints.
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// ErrorStyle is used for failures.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// WarningStyle is used for recoverable problems and reply errors.
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// SuccessStyle is used for confirmations.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)
