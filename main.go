// revise - a streaming study assistant for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/revise-tui/internal/chat"
	"github.com/jeranaias/revise-tui/internal/cli"
	"github.com/jeranaias/revise-tui/internal/config"
	chatui "github.com/jeranaias/revise-tui/internal/ui/chat"
	"github.com/jeranaias/revise-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := cli.NewApp()
	app.RunTUI = runTUI

	code := cli.Execute(ctx, app, os.Args[1:])
	stop()
	os.Exit(code)
}

// runTUI starts the full-screen interface.
func runTUI(ctx context.Context, app *cli.App) error {
	cfg := app.Config
	logger := app.Logger.With().Str("mode", "tui").Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	theme := styles.NewTheme(cfg.UI.Theme)
	ctrl := app.NewController(cfg)

	m := chatui.New(ctrl, theme,
		chatui.WithContext(ctx),
		chatui.WithLogger(logger),
		chatui.WithModelName(cfg.API.Model),
		chatui.WithMaxInputLines(cfg.UI.MaxInputLines),
		chatui.WithMarkdown(cfg.UI.Markdown),
		chatui.WithSenderFactory(func(next *config.Config) chat.Sender {
			return app.NewSender(next, app.Logger)
		}),
	)

	// Create the Bubble Tea program
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse wheel scrolling
		tea.WithContext(ctx),
	)

	// Store program reference for async streaming
	m.Attach(p)

	if _, err := os.Stat(filepath.Dir(app.ConfigPath)); err == nil {
		_, err := config.Watch(ctx, app.ConfigPath, config.DefaultDebounce, func(next *config.Config, err error) {
			p.Send(chatui.ConfigReloadedMsg{Config: next, Err: err})
		})
		if err != nil {
			logger.Warn().Err(err).Msg("config reload disabled")
		}
	}

	// Run the program
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running revise: %w", err)
	}
	return nil
}
