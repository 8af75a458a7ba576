// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// renderedTurn is a cached markdown rendering.
type renderedTurn struct {
	content string
	width   int
	out     string
}

// markdownRenderer renders reply markdown with glamour. The renderer is
// rebuilt when the wrap width changes and finished turns are cached by ID.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]renderedTurn
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{
		style: style,
		cache: make(map[string]renderedTurn),
	}
}

// Render returns content rendered for width. Markdown that glamour cannot
// handle falls back to wrapped plain text.
func (r *markdownRenderer) Render(id, content string, width int) string {
	if c, ok := r.cache[id]; ok && c.content == content && c.width == width {
		return c.out
	}

	out, err := r.render(content, width)
	if err != nil {
		out = lipgloss.NewStyle().Width(width).Render(content)
	}
	r.cache[id] = renderedTurn{content: content, width: width, out: out}
	return out
}

// Forget drops cached renderings.
func (r *markdownRenderer) Forget() {
	clear(r.cache)
}

func (r *markdownRenderer) render(content string, width int) (string, error) {
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", err
		}
		r.renderer, r.width = tr, width
	}

	out, err := r.renderer.Render(content)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}
