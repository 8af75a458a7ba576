// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration commands for the revise CLI.
//
// Command: config [subcommand]
//
// Subcommands:
//   path               Print the config file path
//   show (default)     Print the effective configuration, key redacted
//   get KEY            Print one setting (dot notation, e.g. api.model)
//   set KEY VALUE      Change one setting and save the file

package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/revise-tui/internal/cloud"
	"github.com/jeranaias/revise-tui/internal/config"
	"github.com/jeranaias/revise-tui/internal/util"
)

// apiKeyField is the only secret setting.
const apiKeyField = "api.key"

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(app.Stdout, app.ConfigPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.showConfig()
			},
		},
		&cobra.Command{
			Use:       "get KEY",
			Short:     "Print one setting",
			Args:      cobra.ExactArgs(1),
			ValidArgs: config.GetAllKeys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.getConfig(args[0])
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change one setting and save the config file",
			Long: `Change one setting and save the config file. List values are comma
separated. Environment variables still take precedence over the file.`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.setConfig(args[0], args[1])
			},
		},
	)
	return cmd
}

// showConfig prints every setting, one per line, key masked.
func (a *App) showConfig() error {
	fmt.Fprintln(a.Stdout, DimStyle.Render("# "+a.ConfigPath))

	keys := config.GetAllKeys()
	sort.Strings(keys)
	width := 0
	for _, k := range keys {
		width = max(width, util.Width(k))
	}
	for _, k := range keys {
		v, err := a.displayValue(a.Config, k)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "%s = %s\n", util.PadRight(k, width), v)
	}
	return nil
}

func (a *App) getConfig(key string) error {
	v, err := a.displayValue(a.Config, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Stdout, v)
	return nil
}

// setConfig updates the file, not the environment-merged view, so env
// overrides are never written to disk.
func (a *App) setConfig(key, value string) error {
	onDisk, err := a.loadFileOnly(a.ConfigPath)
	if err != nil {
		return err
	}
	if err := onDisk.Set(key, value); err != nil {
		return err
	}

	check := onDisk.Clone()
	check.SetDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := config.SaveTOML(onDisk, a.ConfigPath); err != nil {
		return err
	}
	a.Logger.Info().Str("key", key).Msg("config updated")

	shown, _ := a.displayValue(onDisk, key)
	fmt.Fprintf(a.Stdout, "%s %s = %s\n", SuccessStyle.Render("Saved"), key, shown)
	return nil
}

// displayValue formats one setting for output.
func (a *App) displayValue(cfg *config.Config, key string) (string, error) {
	v, err := cfg.Get(key)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(strings.TrimSpace(key), apiKeyField) {
		s, _ := v.(string)
		return cloud.MaskKey(s), nil
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val), nil
	case []string:
		quoted := make([]string, len(val))
		for i, s := range val {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(quoted, ", ") + "]", nil
	default:
		return fmt.Sprint(val), nil
	}
}

// loadFileOnly reads path over the defaults without environment overrides.
// Setup has already reported the file's warnings.
func (a *App) loadFileOnly(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	if _, err := config.LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return cfg, nil
}
