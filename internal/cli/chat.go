// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for the revise CLI.
//
// Command: chat
// Short:   Chat in line mode
//
// Interactive Commands (during chat):
//   /clear              Clear the conversation (asks first)
//   /help               Show available commands
//   /quit, /exit        Exit chat
//   Ctrl+C, Ctrl+D      Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/revise-tui/internal/chat"
	"github.com/jeranaias/revise-tui/internal/config"
)

// historyFileName is the line editor history file inside the config directory.
const historyFileName = "chat_history"

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineReader reads one line of input at a time.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// ChatCLI is a LineReader with line editing and persistent history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor and loads history from historyFile.
func NewChatCLI(historyFile string) (LineReader, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.loadHistory()
	return c, nil
}

// Prompt reads a line. Ctrl+C yields liner.ErrPromptAborted and Ctrl+D io.EOF.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory records a line for arrow-key recall.
func (c *ChatCLI) AppendHistory(line string) {
	c.line.AppendHistory(line)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	c.saveHistory()
	return c.line.Close()
}

func (c *ChatCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// saveHistory persists history with owner-only permissions.
func (c *ChatCLI) saveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Long: `Start a line-mode chat. Replies stream straight to stdout.

Commands during chat:
  /clear   clear the conversation
  /help    show commands
  /quit    exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runChat(cmd.Context())
		},
	}
}

// runChat is the line-mode REPL.
func (a *App) runChat(ctx context.Context) error {
	historyFile := historyFileName
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, historyFileName)
	}
	rl, err := a.NewLineReader(historyFile)
	if err != nil {
		return fmt.Errorf("failed to open line editor: %w", err)
	}
	defer rl.Close()

	ctrl := a.NewController(a.Config)
	a.printWelcome(ctrl)

	for {
		input, err := rl.Prompt(PromptStyle.Render("you") + " > ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.Stdout)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		rl.AppendHistory(input)

		switch strings.ToLower(input) {
		case "/quit", "/exit", "/q":
			return nil
		case "/help", "/h":
			a.printChatHelp()
			continue
		case "/clear", "/c":
			a.confirmClear(rl, ctrl)
			continue
		}

		a.streamReply(ctx, ctrl, input)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// streamReply submits input and prints the reply as it arrives.
func (a *App) streamReply(ctx context.Context, ctrl *chat.Controller, input string) {
	fmt.Fprintf(a.Stdout, "%s > ", TitleStyle.Render(ctrl.Persona().Name))

	err := ctrl.Submit(ctx, input, func(fragment string) {
		fmt.Fprint(a.Stdout, fragment)
	})
	fmt.Fprintln(a.Stdout)

	if err != nil {
		fmt.Fprintln(a.Stderr, WarningStyle.Render("[Error] "+ctrl.LastError()))
	}
	fmt.Fprintln(a.Stdout)
}

// confirmClear asks before resetting the conversation.
func (a *App) confirmClear(rl LineReader, ctrl *chat.Controller) {
	answer, err := rl.Prompt(WarningStyle.Render("Clear the current revision conversation?") + " [y/N] ")
	if err != nil || !isYes(answer) {
		fmt.Fprintln(a.Stdout, DimStyle.Render("Kept the conversation."))
		return
	}
	if err := ctrl.Reset(); err != nil {
		fmt.Fprintln(a.Stderr, WarningStyle.Render("[Error] "+err.Error()))
		return
	}
	fmt.Fprintln(a.Stdout, SuccessStyle.Render("Conversation cleared."))
	fmt.Fprintln(a.Stdout)
	a.printGreeting(ctrl)
}

func (a *App) printWelcome(ctrl *chat.Controller) {
	p := ctrl.Persona()
	title := TitleStyle.Render(p.Name)
	if p.Subtitle != "" {
		title += " " + DimStyle.Render(p.Subtitle)
	}
	fmt.Fprintln(a.Stdout, title)
	fmt.Fprintln(a.Stdout, DimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(a.Stdout)
	a.printGreeting(ctrl)
}

func (a *App) printGreeting(ctrl *chat.Controller) {
	if last := ctrl.Conversation().Last(); last != nil {
		fmt.Fprintf(a.Stdout, "%s > %s\n", TitleStyle.Render(ctrl.Persona().Name), InfoStyle.Render(last.Content))
	}
	if chips := ctrl.Persona().Chips(); len(chips) > 0 && ctrl.ShowSuggestions() {
		fmt.Fprintln(a.Stdout, DimStyle.Render("Try:"))
		for _, c := range chips {
			fmt.Fprintln(a.Stdout, DimStyle.Render("  - "+c))
		}
	}
	fmt.Fprintln(a.Stdout)
}

func (a *App) printChatHelp() {
	fmt.Fprintln(a.Stdout, TitleStyle.Render("Commands"))
	fmt.Fprintln(a.Stdout, "  /clear   clear the conversation")
	fmt.Fprintln(a.Stdout, "  /help    show this help")
	fmt.Fprintln(a.Stdout, "  /quit    exit")
	fmt.Fprintln(a.Stdout)
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
