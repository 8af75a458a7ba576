// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the revise TUI.

All colors are Lip Gloss AdaptiveColors. NewTheme fixes lipgloss's idea of
the background from the ui.theme setting ("dark", "light") or, for "auto",
from termenv's terminal query, so adaptive colors and the glamour style
agree.

	theme := styles.NewTheme(cfg.UI.Theme)
	theme.SetSize(width, height)
	bubble := theme.AssistantBubble.Width(theme.BubbleWidth()).Render(text)
*/
package styles
