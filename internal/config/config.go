// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/jeranaias/revise-tui/internal/persona"
	"github.com/jeranaias/revise-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete revise configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Chat completions endpoint
	API APIConfig `toml:"api" json:"api"`

	// Conversation behaviour
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Assistant identity
	Persona persona.Persona `toml:"persona" json:"persona"`

	// Terminal UI
	UI UIConfig `toml:"ui" json:"ui"`

	// Diagnostics log
	Log LogConfig `toml:"log" json:"log"`

	// Warnings holds non-fatal problems found while loading the file.
	Warnings []string `toml:"-" json:"-"`
}

// APIConfig contains the remote endpoint configuration.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible base URL; /chat/completions is appended
	BaseURL string `toml:"base_url" json:"base_url"`
	// Key is the bearer token. Prefer the REVISE_API_KEY environment variable.
	Key string `toml:"key" json:"key"`
	// Model is the model name sent with every request
	Model string `toml:"model" json:"model"`
	// RequestTimeoutSecs bounds each reply; 0 disables the deadline
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// ChatConfig contains conversation settings.
type ChatConfig struct {
	// HistoryWindow is how many recent turns are sent upstream; 0 sends all
	HistoryWindow int `toml:"history_window" json:"history_window"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// MaxInputLines caps the auto-growing input box
	MaxInputLines int `toml:"max_input_lines" json:"max_input_lines"`
	// Markdown renders assistant replies as markdown
	Markdown bool `toml:"markdown" json:"markdown"`
}

// LogConfig contains diagnostics log settings.
type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error, disabled
	Level string `toml:"level" json:"level"`
	// File is the log path; empty means ~/.revise/revise.log
	File string `toml:"file" json:"file"`
}

// RequestTimeout returns the per-reply deadline, or 0 for none.
func (a APIConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default values.
const (
	DefaultBaseURL            = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel              = "qwen-plus"
	DefaultRequestTimeoutSecs = 300
	DefaultHistoryWindow      = 100
	DefaultMaxInputLines      = 5
	MaxInputLinesLimit        = 20
)

// Default returns a config with every setting at its default.
func Default() *Config {
	return &Config{
		Version: "1",
		API: APIConfig{
			BaseURL:            DefaultBaseURL,
			Model:              DefaultModel,
			RequestTimeoutSecs: DefaultRequestTimeoutSecs,
		},
		Chat: ChatConfig{
			HistoryWindow: DefaultHistoryWindow,
		},
		Persona: persona.Default(),
		UI: UIConfig{
			Theme:         "auto",
			MaxInputLines: DefaultMaxInputLines,
			Markdown:      true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the revise configuration directory path.
// REVISE_HOME overrides the default ~/.revise.
func ConfigDir() (string, error) {
	if dir := os.Getenv("REVISE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".revise"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the config file if it exists, otherwise the defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	warnings, err := LoadTOML(cfg, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg.Warnings = warnings

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep the
// values already in cfg. Unknown keys and unfixable permissions are returned
// as warnings; callers decide where to report them.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) ([]string, error) {
	var warnings []string
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		warnings = append(warnings, fmt.Sprintf("could not ensure secure permissions on %s: %v", path, err))
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return warnings, fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		warnings = append(warnings, fmt.Sprintf("unknown config keys in %s: %s", path, strings.Join(keys, ", ")))
	}
	return warnings, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# revise configuration file\n")
	buf.WriteString("# The API key is better kept in REVISE_API_KEY than here.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
// A missing API key is not an error here; requests report it instead.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.API.BaseURL),
		})
	}
	if strings.TrimSpace(c.API.Model) == "" {
		errs = append(errs, ValidationError{Field: "api.model", Message: "must not be empty"})
	}
	if c.API.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.request_timeout_secs",
			Message: fmt.Sprintf("must be >= 0 (0 disables), got %d", c.API.RequestTimeoutSecs),
		})
	}

	if c.Chat.HistoryWindow < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.history_window",
			Message: fmt.Sprintf("must be >= 0 (0 sends everything), got %d", c.Chat.HistoryWindow),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.MaxInputLines < 1 || c.UI.MaxInputLines > MaxInputLinesLimit {
		errs = append(errs, ValidationError{
			Field:   "ui.max_input_lines",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxInputLinesLimit, c.UI.MaxInputLines),
		})
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills blank settings that have no meaningful empty value.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	c.API.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.API.BaseURL), "/")
	if strings.TrimSpace(c.API.Model) == "" {
		c.API.Model = defaults.API.Model
	}
	c.API.Key = strings.TrimSpace(c.API.Key)

	c.Persona = c.Persona.Merge(defaults.Persona)

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.MaxInputLines == 0 {
		c.UI.MaxInputLines = defaults.UI.MaxInputLines
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - REVISE_API_KEY: overrides api.key
//   - DASHSCOPE_API_KEY: used for api.key when REVISE_API_KEY is unset
//   - REVISE_BASE_URL: overrides api.base_url
//   - REVISE_MODEL: overrides api.model
//   - REVISE_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("REVISE_API_KEY"); key != "" {
		c.API.Key = key
	} else if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		c.API.Key = key
	}

	if baseURL := os.Getenv("REVISE_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}

	if model := os.Getenv("REVISE_MODEL"); model != "" {
		c.API.Model = model
	}

	if level := os.Getenv("REVISE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.model").
// Keys are the TOML names.
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value from its string form using dot notation.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by TOML tag names.
func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) == 0 || parts[0] == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue parses value into the field's kind.
func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected a boolean, got %q", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
		field.SetInt(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list type %s", field.Type())
		}
		var items []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// GetAllKeys returns every settable key in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("toml"), ",")[0]
			if name == "" || name == "-" {
				continue
			}
			if prefix != "" {
				name = prefix + "." + name
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name)
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Persona.Suggestions = append([]string(nil), c.Persona.Suggestions...)
	clone.Warnings = append([]string(nil), c.Warnings...)
	return &clone
}

// String returns a JSON rendering of the config for display.
// SECURITY: The API key is never printed.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Key != "" {
		safe.API.Key = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
