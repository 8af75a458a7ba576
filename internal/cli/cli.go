// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/revise-tui/internal/chat"
	"github.com/jeranaias/revise-tui/internal/cloud"
	"github.com/jeranaias/revise-tui/internal/config"
	"github.com/jeranaias/revise-tui/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// errReported marks a failure that has already been printed.
var errReported = errors.New("already reported")

// =============================================================================
// APP
// =============================================================================

// App carries what every command needs. Fields with function types are the
// seams tests replace.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Config and Logger are set by the root command before any subcommand runs.
	Config     *config.Config
	ConfigPath string
	Logger     zerolog.Logger

	// NewSender builds the backend for a configuration.
	NewSender func(cfg *config.Config, logger zerolog.Logger) chat.Sender

	// NewLineReader opens the line editor used by the chat command.
	NewLineReader func(historyFile string) (LineReader, error)

	// Interactive reports whether the full-screen interface can run.
	Interactive func() bool

	// RunTUI starts the full-screen interface.
	RunTUI func(ctx context.Context, app *App) error

	closeLog func() error
}

// NewApp returns an App wired to the process streams and the real backend.
func NewApp() *App {
	return &App{
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		Logger:        zerolog.Nop(),
		NewSender:     NewCloudSender,
		NewLineReader: NewChatCLI,
		Interactive:   IsInteractive,
	}
}

// NewCloudSender builds the streaming client for cfg.
func NewCloudSender(cfg *config.Config, logger zerolog.Logger) chat.Sender {
	return cloud.NewClient(cfg.API.Key).
		WithBaseURL(cfg.API.BaseURL).
		WithModel(cfg.API.Model).
		WithUserAgent("revise/" + Version).
		WithLogger(logger)
}

// NewController builds a conversation controller for cfg.
func (a *App) NewController(cfg *config.Config) *chat.Controller {
	return chat.New(a.NewSender(cfg, a.Logger), cfg.Persona,
		chat.WithHistoryWindow(cfg.Chat.HistoryWindow),
		chat.WithTimeout(cfg.API.RequestTimeout()),
		chat.WithLogger(a.Logger),
	)
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configPath string
	model      string
	baseURL    string
	logLevel   string
}

// NewRootCmd builds the command tree for app.
func NewRootCmd(app *App) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "revise",
		Short: "Streaming study assistant for exam week",
		Long: `revise is a chat client for an OpenAI-compatible endpoint, set up as a
study assistant.

Examples:
  revise                               # full-screen chat
  revise chat                          # line-mode chat
  revise ask "explain osmosis briefly" # one question
  revise config set api.model qwen-max`,
		Version:           fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.RunTUI != nil && app.Interactive() {
				return app.RunTUI(cmd.Context(), app)
			}
			return app.runChat(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.revise/config.toml)")
	pf.StringVarP(&flags.model, "model", "m", "", "model name (overrides config)")
	pf.StringVar(&flags.baseURL, "base-url", "", "API base URL (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")

	root.AddCommand(
		newChatCmd(app),
		newAskCmd(app),
		newConfigCmd(app),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	root := NewRootCmd(app)
	root.SetArgs(args)
	root.SetIn(app.Stdin)
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	// PersistentPostRunE does not run when RunE fails.
	_ = app.teardown()
	if !errors.Is(err, errReported) {
		fmt.Fprintln(app.Stderr, ErrorStyle.Render("Error:"), err)
	}
	return 1
}

// setup loads configuration, applies flag overrides and opens the log.
func (a *App) setup(flags *rootFlags) error {
	path := flags.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if flags.model != "" {
		cfg.API.Model = flags.model
	}
	if flags.baseURL != "" {
		cfg.API.BaseURL = flags.baseURL
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(a.Stderr, WarningStyle.Render("Warning:"), err)
		logger, closeLog = zerolog.Nop(), nil
	}

	a.Config = cfg
	a.ConfigPath = path
	a.Logger = logger
	a.closeLog = closeLog

	a.reportWarnings(cfg.Warnings)

	logger.Info().
		Str("version", Version).
		Str("model", cfg.API.Model).
		Str("base_url", cfg.API.BaseURL).
		Bool("key_set", cfg.API.Key != "").
		Msg("starting")
	return nil
}

// reportWarnings prints config warnings before any full-screen UI starts and
// records them in the log.
func (a *App) reportWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(a.Stderr, WarningStyle.Render("Warning:"), w)
		a.Logger.Warn().Str("warning", w).Msg("config warning")
	}
}

func (a *App) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	closeLog := a.closeLog
	a.closeLog = nil
	return closeLog()
}

// loadConfig reads path if it exists and falls back to the defaults otherwise.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.LoadFromPath(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := config.Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
