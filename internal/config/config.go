// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/research-buddy/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete research-buddy configuration.
type Config struct {
	// Research backend connection
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Session persistence
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Log file settings
	Log LogConfig `toml:"log" json:"log"`

	// Terminal UI settings
	UI UIConfig `toml:"ui" json:"ui"`

	// Source is the file this config was read from, empty for defaults.
	Source string `toml:"-" json:"-"`
}

// BackendConfig contains research backend settings.
type BackendConfig struct {
	// URL is the backend root (default: http://127.0.0.1:8000)
	URL string `toml:"url" json:"url"`

	// StreamTimeoutSecs bounds dialing and waiting for response headers.
	// The stream body itself is never timed out.
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`

	// HealthTimeoutSecs bounds the /health probe.
	HealthTimeoutSecs int `toml:"health_timeout_secs" json:"health_timeout_secs"`
}

// StorageConfig contains session persistence settings.
type StorageConfig struct {
	// Backend is "file" or "sqlite"
	Backend string `toml:"backend" json:"backend"`

	// Path is the cache directory (file) or database (sqlite).
	// Empty means the default location under the config directory.
	Path string `toml:"path" json:"path"`

	// Namespace is the key the session list is stored under
	Namespace string `toml:"namespace" json:"namespace"`
}

// LogConfig contains log file settings.
type LogConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Level   string `toml:"level" json:"level"` // debug, info, warn, error

	// Path of the log file; empty means logs/buddy.log under the config directory
	Path string `toml:"path" json:"path"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	SidebarOpen  bool `toml:"sidebar_open" json:"sidebar_open"`
	SidebarWidth int  `toml:"sidebar_width" json:"sidebar_width"`

	// RedrawPerSec caps transcript redraws while a response streams
	RedrawPerSec int `toml:"redraw_per_sec" json:"redraw_per_sec"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	defaultBackendURL    = "http://127.0.0.1:8000"
	defaultStreamTimeout = 60
	defaultHealthTimeout = 10
	defaultNamespace     = "research-agent-sessions"
	defaultLogLevel      = "info"
	defaultSidebarWidth  = 32
	defaultRedrawPerSec  = 20
)

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:               defaultBackendURL,
			StreamTimeoutSecs: defaultStreamTimeout,
			HealthTimeoutSecs: defaultHealthTimeout,
		},
		Storage: StorageConfig{
			Backend:   "file",
			Namespace: defaultNamespace,
		},
		Log: LogConfig{
			Enabled: true,
			Level:   defaultLogLevel,
		},
		UI: UIConfig{
			SidebarOpen:  true,
			SidebarWidth: defaultSidebarWidth,
			RedrawPerSec: defaultRedrawPerSec,
		},
	}
}

// StreamTimeout returns the backend stream timeout as a duration.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Backend.StreamTimeoutSecs) * time.Second
}

// HealthTimeout returns the health probe timeout as a duration.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.Backend.HealthTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv overrides the configuration directory.
const HomeEnv = "RESEARCH_BUDDY_HOME"

// Dir returns the research-buddy configuration directory path.
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".research-buddy"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the file Load would read: the TOML file if it exists,
// else the JSON file if it exists, else the TOML path.
func ActivePath() (string, error) {
	tomlPath, err := PathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := PathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
//
// If a file exists but cannot be decoded, the defaults are returned together
// with the decode error so callers can warn and continue.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){PathTOML, PathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		loadErr = err
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	cfg.Source = path

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// tomlHeader is written at the top of generated TOML files.
const tomlHeader = "# research-buddy configuration file\n# Generated by research-buddy - edit with care\n\n"

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString(tomlHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Backend.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("must be an http or https URL with a host, got %q", c.Backend.URL),
		})
	}

	if c.Backend.StreamTimeoutSecs < 1 || c.Backend.StreamTimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "backend.stream_timeout_secs",
			Message: fmt.Sprintf("must be 1-3600, got %d", c.Backend.StreamTimeoutSecs),
		})
	}
	if c.Backend.HealthTimeoutSecs < 1 || c.Backend.HealthTimeoutSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "backend.health_timeout_secs",
			Message: fmt.Sprintf("must be 1-300, got %d", c.Backend.HealthTimeoutSecs),
		})
	}

	validBackends := map[string]bool{"file": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite", c.Storage.Backend),
		})
	}
	if strings.ContainsAny(c.Storage.Namespace, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "storage.namespace",
			Message: "must not contain path separators",
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if c.UI.SidebarWidth < 16 || c.UI.SidebarWidth > 80 {
		errs = append(errs, ValidationError{
			Field:   "ui.sidebar_width",
			Message: fmt.Sprintf("must be 16-80, got %d", c.UI.SidebarWidth),
		})
	}
	if c.UI.RedrawPerSec < 1 || c.UI.RedrawPerSec > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.redraw_per_sec",
			Message: fmt.Sprintf("must be 1-120, got %d", c.UI.RedrawPerSec),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values with defaults and normalizes case.
func (c *Config) SetDefaults() {
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	if c.Backend.URL == "" {
		c.Backend.URL = defaultBackendURL
	}
	if c.Backend.StreamTimeoutSecs == 0 {
		c.Backend.StreamTimeoutSecs = defaultStreamTimeout
	}
	if c.Backend.HealthTimeoutSecs == 0 {
		c.Backend.HealthTimeoutSecs = defaultHealthTimeout
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = defaultNamespace
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	if c.UI.SidebarWidth == 0 {
		c.UI.SidebarWidth = defaultSidebarWidth
	}
	if c.UI.RedrawPerSec == 0 {
		c.UI.RedrawPerSec = defaultRedrawPerSec
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RESEARCH_BUDDY_BACKEND_URL: overrides backend.url
//   - RESEARCH_BUDDY_STORAGE: overrides storage.backend
//   - RESEARCH_BUDDY_LOG_LEVEL: overrides log.level
//   - RESEARCH_BUDDY_LOG: "0"/"false" disables the log file
//   - RESEARCH_BUDDY_HOME: moves the config directory (see Dir)
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("RESEARCH_BUDDY_BACKEND_URL"); u != "" {
		c.Backend.URL = u
	}
	if backend := os.Getenv("RESEARCH_BUDDY_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("RESEARCH_BUDDY_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if enabled := os.Getenv("RESEARCH_BUDDY_LOG"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			c.Log.Enabled = b
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err.Error()
	}
	return buf.String()
}
