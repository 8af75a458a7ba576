// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Model, its options and the Update loop.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	chatctl "github.com/jeranaias/revise-tui/internal/chat"
	"github.com/jeranaias/revise-tui/internal/config"
	"github.com/jeranaias/revise-tui/internal/ui/styles"
	"github.com/jeranaias/revise-tui/internal/util"
)

// noticeDuration is how long a status notice stays in the footer.
const noticeDuration = 3 * time.Second

// clearCommand typed on its own asks to clear the conversation.
const clearCommand = "/clear"

// =============================================================================
// PROGRAM REFERENCE
// =============================================================================

// Messenger delivers messages into a running program. *tea.Program implements it.
type Messenger interface {
	Send(msg tea.Msg)
}

// programRef is shared by every copy of the Model so the stream goroutine can
// reach the program after it has started.
type programRef struct {
	mu sync.Mutex
	m  Messenger
}

func (r *programRef) set(m Messenger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = m
}

func (r *programRef) send(msg tea.Msg) {
	r.mu.Lock()
	m := r.m
	r.mu.Unlock()
	if m != nil {
		m.Send(msg)
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctrl  *chatctl.Controller
	theme *styles.Theme
	keys  KeyMap

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	buffer   *StreamingBuffer
	md       *markdownRenderer
	program  *programRef

	ctx       context.Context
	cancel    context.CancelFunc
	logger    zerolog.Logger
	newSender func(*config.Config) chatctl.Sender

	modelName     string
	maxInputLines int
	markdown      bool

	width      int
	height     int
	ready      bool
	confirming bool
	notice     string
	noticeSeq  int
	tickSeq    int
}

// Option configures a Model.
type Option func(*Model)

// WithModelName sets the model name shown in the header badge.
func WithModelName(name string) Option {
	return func(m *Model) { m.modelName = name }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Model) { m.logger = logger.With().Str("component", "tui").Logger() }
}

// WithContext sets the parent context for network calls. Quitting cancels it.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithMaxInputLines caps the height the input box grows to.
func WithMaxInputLines(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxInputLines = n
		}
	}
}

// WithMarkdown toggles markdown rendering of replies.
func WithMarkdown(enabled bool) Option {
	return func(m *Model) { m.markdown = enabled }
}

// WithSenderFactory builds a new backend when the config file is reloaded.
func WithSenderFactory(fn func(*config.Config) chatctl.Sender) Option {
	return func(m *Model) { m.newSender = fn }
}

// New creates the chat screen for ctrl.
func New(ctrl *chatctl.Controller, theme *styles.Theme, opts ...Option) Model {
	m := Model{
		ctrl:          ctrl,
		theme:         theme,
		keys:          DefaultKeyMap(),
		buffer:        NewStreamingBuffer(),
		md:            newMarkdownRenderer(theme.GlamourStyle()),
		program:       &programRef{},
		ctx:           context.Background(),
		logger:        zerolog.Nop(),
		maxInputLines: config.DefaultMaxInputLines,
		markdown:      true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.ctx, m.cancel = context.WithCancel(m.ctx)

	ta := textarea.New()
	ta.Placeholder = ctrl.Persona().Placeholder
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.MaxHeight = config.MaxInputLinesLimit
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.KeyMap.InsertNewline = m.keys.Newline
	ta.Focus()
	m.input = ta

	m.viewport = viewport.New(0, 0)
	m.viewport.KeyMap = viewport.KeyMap{}

	m.spinner = spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)
	return m
}

// Attach connects the model to its running program. Streamed fragments are
// delivered through it.
func (m Model) Attach(p Messenger) {
	m.program.set(p)
}

// Controller returns the controller behind the screen.
func (m Model) Controller() *chatctl.Controller {
	return m.ctrl
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case DeltaMsg:
		if msg.TurnID == m.ctrl.PendingID() {
			m.buffer.Write(msg.Text)
		}
		return m, nil

	case StreamTickMsg:
		return m.handleStreamTick(msg)

	case DoneMsg:
		return m.handleDone(msg)

	case spinner.TickMsg:
		if !m.ctrl.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if last := m.ctrl.Conversation().Last(); last != nil && last.IsEmpty() {
			m.refresh(true)
		}
		return m, cmd

	case ConfigReloadedMsg:
		return m.handleConfigReload(msg)

	case CopiedMsg:
		if msg.Err != nil {
			m.logger.Warn().Err(msg.Err).Msg("clipboard copy failed")
			return m.showNotice("Clipboard unavailable: " + util.FirstLine(msg.Err.Error()))
		}
		return m.showNotice(fmt.Sprintf("Copied reply (%d chars)", msg.Chars))

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.layout()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.input.SetWidth(max(m.width-4, 10))
	m.ready = true
	m.refresh(true)
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		return m.handleConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.submit(m.input.Value())

	case key.Matches(msg, m.keys.Clear):
		return m.askClear()

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLastReply()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Suggestion):
		chips := m.visibleChips()
		if i := suggestionIndex(msg.String()); i >= 0 && i < len(chips) {
			return m.submit(chips[i])
		}
		return m, nil
	}

	atBottom := m.viewport.AtBottom()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.layout()
	if atBottom {
		m.viewport.GotoBottom()
	}
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirming = false
		if err := m.ctrl.Reset(); err != nil {
			m.refresh(true)
			return m.showNotice("A reply is still streaming")
		}
		m.md.Forget()
		m.input.Focus()
		m.refresh(true)
		m.logger.Info().Msg("conversation cleared")
		return m, nil

	case key.Matches(msg, m.keys.Deny):
		m.confirming = false
		m.input.Focus()
		m.refresh(true)
		return m, nil

	case msg.String() == "ctrl+c":
		m.cancel()
		return m, tea.Quit
	}
	return m, nil
}

// submit starts a submission. Blank input and input while a reply streams
// are ignored without touching the input box.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(text) == clearCommand {
		m.input.Reset()
		return m.askClear()
	}

	p, err := m.ctrl.Begin(text)
	if err != nil {
		return m, nil
	}

	m.input.Reset()
	m.buffer.Reset()
	m.refresh(true)

	// A tick left over from the previous reply sees an older seq and stops.
	m.tickSeq++
	return m, tea.Batch(m.runCmd(p), m.spinner.Tick, streamTickCmd(m.tickSeq))
}

// runCmd performs the network call off the update loop. Fragments are posted
// through the program in order; the returned DoneMsg follows the last one.
func (m Model) runCmd(p *chatctl.Pending) tea.Cmd {
	ctx, ref := m.ctx, m.program
	return func() tea.Msg {
		err := p.Run(ctx, func(fragment string) {
			ref.send(DeltaMsg{TurnID: p.AssistantID, Text: fragment})
		})
		return DoneMsg{TurnID: p.AssistantID, Err: err}
	}
}

func (m Model) handleStreamTick(msg StreamTickMsg) (tea.Model, tea.Cmd) {
	if msg.Seq != m.tickSeq || !m.ctrl.Busy() {
		return m, nil
	}
	if text, ok := m.buffer.Flush(); ok {
		m.ctrl.Append(m.ctrl.PendingID(), text)
		m.refresh(true)
	}
	return m, streamTickCmd(m.tickSeq)
}

func (m Model) handleDone(msg DoneMsg) (tea.Model, tea.Cmd) {
	if msg.TurnID == m.ctrl.PendingID() {
		if text, ok := m.buffer.ForceFlush(); ok {
			m.ctrl.Append(msg.TurnID, text)
		}
		m.buffer.Reset()
	}
	if err := m.ctrl.Finish(msg.TurnID, msg.Err); err != nil {
		m.logger.Debug().Err(err).Str("turn", msg.TurnID).Msg("reply ended with error")
	}
	m.refresh(true)
	return m, nil
}

func (m Model) askClear() (tea.Model, tea.Cmd) {
	if m.ctrl.Busy() {
		return m.showNotice("A reply is still streaming")
	}
	m.confirming = true
	m.input.Blur()
	m.layout()
	return m, nil
}

func (m Model) copyLastReply() tea.Cmd {
	text := lastReply(m.ctrl)
	if text == "" {
		return nil
	}
	return func() tea.Msg {
		return CopiedMsg{Chars: len([]rune(text)), Err: copyToClipboard(text)}
	}
}

func (m Model) handleConfigReload(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.logger.Warn().Err(msg.Err).Msg("config reload failed")
		return m.showNotice("Config not reloaded: " + util.FirstLine(msg.Err.Error()))
	}
	cfg := msg.Config

	m.ctrl.SetPersona(cfg.Persona)
	m.ctrl.Apply(
		chatctl.WithHistoryWindow(cfg.Chat.HistoryWindow),
		chatctl.WithTimeout(cfg.API.RequestTimeout()),
	)
	if m.newSender != nil {
		m.ctrl.SetSender(m.newSender(cfg))
	}
	m.modelName = cfg.API.Model
	m.maxInputLines = cfg.UI.MaxInputLines
	m.markdown = cfg.UI.Markdown
	m.input.Placeholder = cfg.Persona.Placeholder
	m.md.Forget()
	m.refresh(true)

	m.logger.Info().Str("model", cfg.API.Model).Msg("config reloaded")
	if len(cfg.Warnings) > 0 {
		for _, w := range cfg.Warnings {
			m.logger.Warn().Str("warning", w).Msg("config warning")
		}
		return m.showNotice("Config reloaded with warnings: " + util.FirstLine(cfg.Warnings[0]))
	}
	return m.showNotice("Config reloaded")
}

func (m Model) showNotice(text string) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	m.layout()
	seq := m.noticeSeq
	return m, tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the input box and gives the transcript whatever height the
// header and footer leave.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	lines := visualLines(m.input.Value(), m.input.Width())
	m.input.SetHeight(min(max(lines, 1), m.maxInputLines))

	used := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.renderFooter())
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-used, 1)
}

// refresh re-renders the transcript, optionally scrolling to the newest turn.
func (m *Model) refresh(toBottom bool) {
	if !m.ready {
		return
	}
	m.layout()
	m.viewport.SetContent(m.renderTranscript())
	if toBottom {
		m.viewport.GotoBottom()
	}
}

// visibleChips returns the suggestions currently on screen.
func (m Model) visibleChips() []string {
	if m.ctrl.Busy() || !m.ctrl.ShowSuggestions() {
		return nil
	}
	return m.ctrl.Persona().Chips()
}
