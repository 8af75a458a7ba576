// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for revise.
//
// Configuration is TOML, with sensible defaults, environment variable
// overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: endpoint, key, model and request deadline
//   - UIConfig: theme and input box settings
//   - Watcher: fsnotify-based reload of the config file
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (REVISE_*, DASHSCOPE_API_KEY)
//   - ~/.revise/config.toml (or $REVISE_HOME/config.toml)
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//
// Reload on change:
//
//	_, err = config.Watch(ctx, path, 0, func(cfg *config.Config, err error) {
//	    ...
//	})
package config
