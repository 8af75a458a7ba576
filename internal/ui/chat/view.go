// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file contains the rendering logic: header, transcript, error banner,
// suggestion chips, clear confirmation and the input area.
package chat

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/revise-tui/internal/model"
	"github.com/jeranaias/revise-tui/internal/util"
)

// confirmClearPrompt is shown before the conversation is cleared.
const confirmClearPrompt = "Clear the current revision conversation?"

// =============================================================================
// MAIN RENDER
// =============================================================================

// View implements tea.Model. The viewport height is set in layout() so the
// three parts always add up to the terminal height.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderFooter(),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	p := m.ctrl.Persona()

	title := m.theme.HeaderTitle.Render(p.Name)
	if m.modelName != "" {
		title += " " + m.theme.HeaderBadge.Render(m.modelName)
	}
	lines := []string{title}
	if p.Subtitle != "" {
		lines = append(lines, m.theme.HeaderSubtitle.Render(p.Subtitle))
	}
	left := lipgloss.JoinVertical(lipgloss.Left, lines...)

	inner := max(m.width-2, 1)
	hint := ""
	if m.width >= 60 {
		hint = m.theme.HeaderHint.Render(m.keys.Clear.Help().Key + " clear")
	}
	gap := inner - lipgloss.Width(left) - lipgloss.Width(hint)
	if gap < 1 {
		hint, gap = "", 0
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), hint)

	return m.theme.Header.Width(m.width).Render(row)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every visible turn in order.
func (m *Model) renderTranscript() string {
	turns := m.ctrl.Turns()
	pending := m.ctrl.PendingID()

	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case model.RoleUser:
			parts = append(parts, m.renderUserTurn(t))
		case model.RoleAssistant:
			parts = append(parts, m.renderAssistantTurn(t, t.ID == pending))
		}
	}
	return strings.Join(parts, "\n\n")
}

// renderUserTurn renders a right-aligned bubble.
func (m *Model) renderUserTurn(t *model.Turn) string {
	inner := m.bubbleInnerWidth()
	w := min(longestLine(t.Content), inner)

	bubble := m.theme.UserBubble.Width(max(w, 1) + 2).Render(t.Content)
	label := m.theme.UserLabel.Render(t.Role.DisplayName())
	block := lipgloss.JoinVertical(lipgloss.Right, label, bubble)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, block)
}

// renderAssistantTurn renders a left-aligned bubble. An empty reply that is
// still in flight shows the typing indicator instead.
func (m *Model) renderAssistantTurn(t *model.Turn, streaming bool) string {
	label := m.theme.AssistantLabel.Render(m.ctrl.Persona().Name)

	var body string
	switch {
	case t.IsEmpty() && streaming:
		body = m.spinner.View() + m.theme.TypingText.Render(" thinking...")
	case m.markdown:
		body = m.md.Render(t.ID, t.Content, m.bubbleInnerWidth())
	default:
		body = lipgloss.NewStyle().Width(m.bubbleInnerWidth()).Render(t.Content)
	}

	return lipgloss.JoinVertical(lipgloss.Left, label, m.theme.AssistantBubble.Render(body))
}

// bubbleInnerWidth is the text width inside a bubble's border and padding.
func (m *Model) bubbleInnerWidth() int {
	return max(m.theme.BubbleWidth()-4, 8)
}

// =============================================================================
// FOOTER
// =============================================================================

// renderFooter renders everything below the transcript.
func (m Model) renderFooter() string {
	var parts []string

	if msg := m.ctrl.LastError(); msg != "" {
		parts = append(parts, m.renderErrorBanner(msg))
	}
	if chips := m.renderChips(); chips != "" {
		parts = append(parts, chips)
	}
	if m.confirming {
		parts = append(parts, m.renderConfirm())
	} else {
		parts = append(parts, m.renderInput())
	}
	parts = append(parts, m.renderHint())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderErrorBanner(msg string) string {
	content := m.theme.ErrorTitle.Render("Error") + "\n" + m.theme.ErrorMessage.Render(msg)
	return m.theme.ErrorBanner.Width(max(m.width-1, 10)).Render(content)
}

// renderChips lays the suggestion chips out in rows that fit the width.
func (m Model) renderChips() string {
	chips := m.visibleChips()
	if len(chips) == 0 {
		return ""
	}

	maxLabel := max(m.width/2-6, 10)
	var rows []string
	var row []string
	rowWidth := 0
	for i, c := range chips {
		chip := m.theme.Chip.Render(
			m.theme.ChipKey.Render(strconv.Itoa(i+1)) + " " + util.TruncateWidth(c, maxLabel),
		)
		w := lipgloss.Width(chip) + 1
		if rowWidth > 0 && rowWidth+w > m.width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, chip, " ")
		rowWidth += w
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderConfirm() string {
	text := confirmClearPrompt + "  " +
		m.theme.ShortcutKey.Render(m.keys.Confirm.Help().Key) + m.theme.ShortcutDesc.Render(" yes  ") +
		m.theme.ShortcutKey.Render(m.keys.Deny.Help().Key) + m.theme.ShortcutDesc.Render(" no")
	return m.theme.ConfirmBox.Width(max(m.width-2, 10)).Render(text)
}

func (m Model) renderInput() string {
	style := m.theme.InputContainer
	if m.ctrl.Busy() {
		style = m.theme.InputContainerDim
	}
	return style.Width(max(m.width-2, 10)).Render(m.input.View())
}

// renderHint shows the active notice, or the key bindings.
func (m Model) renderHint() string {
	if m.notice != "" {
		return m.theme.Notice.Width(m.width).Render(m.notice)
	}
	if m.ctrl.Busy() {
		return m.theme.InputHint.Width(m.width).Render("Waiting for the reply...")
	}

	bindings := m.keys.ShortHelp()
	if m.width < 60 {
		bindings = bindings[:2]
	}
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return m.theme.InputHint.Width(m.width).Render(strings.Join(hints, "  "))
}
