// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, key := range []string{
		"RESEARCH_BUDDY_BACKEND_URL",
		"RESEARCH_BUDDY_STORAGE",
		"RESEARCH_BUDDY_LOG_LEVEL",
		"RESEARCH_BUDDY_LOG",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Backend.URL)
	assert.Equal(t, 60*time.Second, cfg.StreamTimeout())
	assert.Equal(t, 10*time.Second, cfg.HealthTimeout())
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "research-agent-sessions", cfg.Storage.Namespace)
	assert.True(t, cfg.Log.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.UI.SidebarOpen)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[backend]
url = "http://research.local:9000/"
stream_timeout_secs = 120

[storage]
backend = "SQLite"

[ui]
sidebar_open = false
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "http://research.local:9000", cfg.Backend.URL, "trailing slash trimmed")
	assert.Equal(t, 120, cfg.Backend.StreamTimeoutSecs)
	assert.Equal(t, 10, cfg.Backend.HealthTimeoutSecs, "absent keys keep defaults")
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.False(t, cfg.UI.SidebarOpen)
	assert.Equal(t, 32, cfg.UI.SidebarWidth)
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{"backend": {"url": "https://research.example.com"}, "log": {"level": "debug"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "https://research.example.com", cfg.Backend.URL)
	assert.Equal(t, "debug", cfg.Log.Level)

	active, err := ActivePath()
	require.NoError(t, err)
	assert.Equal(t, path, active)
}

func TestLoad_MalformedReturnsDefaults(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[backend\nurl = ")

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg, "defaults are returned alongside the error")
	assert.Equal(t, defaultBackendURL, cfg.Backend.URL)
}

func TestLoad_TOMLBrokenJSONValid(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "not = [toml")
	writeFile(t, filepath.Join(dir, "config.json"), `{"storage": {"backend": "sqlite"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoadFromPath_UnknownKeys(t *testing.T) {
	dir := isolate(t)

	tomlPath := filepath.Join(dir, "config.toml")
	writeFile(t, tomlPath, "[backend]\nurl = \"http://localhost:8000\"\nmodel = \"qwen\"\n")
	_, err := LoadFromPath(tomlPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.model")

	jsonPath := filepath.Join(dir, "config.json")
	writeFile(t, jsonPath, `{"routing": {"mode": "auto"}}`)
	_, err = LoadFromPath(jsonPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing")
}

func TestEnvOverrides(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[backend]\nurl = \"http://from-file:8000\"\n")

	t.Setenv("RESEARCH_BUDDY_BACKEND_URL", "http://from-env:8001")
	t.Setenv("RESEARCH_BUDDY_STORAGE", "sqlite")
	t.Setenv("RESEARCH_BUDDY_LOG_LEVEL", "WARN")
	t.Setenv("RESEARCH_BUDDY_LOG", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8001", cfg.Backend.URL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Log.Enabled)
}

func TestEnvOverrides_BadBoolIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("RESEARCH_BUDDY_LOG", "sometimes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Log.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative url", func(c *Config) { c.Backend.URL = "localhost:8000" }, "backend.url"},
		{"ftp url", func(c *Config) { c.Backend.URL = "ftp://host" }, "backend.url"},
		{"stream timeout", func(c *Config) { c.Backend.StreamTimeoutSecs = 0 }, "backend.stream_timeout_secs"},
		{"health timeout", func(c *Config) { c.Backend.HealthTimeoutSecs = 301 }, "backend.health_timeout_secs"},
		{"storage backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"namespace", func(c *Config) { c.Storage.Namespace = "a/b" }, "storage.namespace"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"sidebar width", func(c *Config) { c.UI.SidebarWidth = 8 }, "ui.sidebar_width"},
		{"redraw", func(c *Config) { c.UI.RedrawPerSec = 500 }, "ui.redraw_per_sec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Backend.URL = "nope"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.url")
	assert.Contains(t, err.Error(), "log.level")
	assert.Equal(t, "no validation errors", ValidateErrors(nil).Error())
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Backend.URL = "  http://host:8000//  "
	cfg.Log.Level = " DEBUG "
	cfg.SetDefaults()

	assert.Equal(t, "http://host:8000", cfg.Backend.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, defaultNamespace, cfg.Storage.Namespace)
	assert.Equal(t, defaultStreamTimeout, cfg.Backend.StreamTimeoutSecs)
	assert.Equal(t, defaultRedrawPerSec, cfg.UI.RedrawPerSec)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.Backend.URL = "http://saved:8000"
	cfg.Storage.Backend = "sqlite"
	cfg.UI.SidebarWidth = 40
	require.NoError(t, Save(cfg))

	path, err := PathTOML()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# research-buddy configuration file"))
	assert.NotContains(t, string(data), "Source")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	cfg.Source = path
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Log.Level = "error"
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "error", loaded.Log.Level)
}

func TestActivePath_DefaultsToTOML(t *testing.T) {
	dir := isolate(t)

	path, err := ActivePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), path)
}

func TestClone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Backend.URL = "http://other:1"

	assert.Equal(t, defaultBackendURL, cfg.Backend.URL)
	assert.Contains(t, cfg.String(), "[backend]")
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[backend]\nurl = \"http://first:8000\"\n")

	var mu sync.Mutex
	var urls []string
	w, err := Watch(path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		urls = append(urls, cfg.Backend.URL)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, "[backend]\nurl = \"http://second:8000\"\n")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(urls) > 0 && urls[len(urls)-1] == "http://second:8000"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_ReportsInvalidConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "")

	errs := make(chan error, 4)
	w, err := Watch(path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	})
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, "[log]\nlevel = \"chatty\"\n")

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "log.level")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reload error")
	}
}

func TestWatch_IgnoresSiblings(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "")

	calls := make(chan struct{}, 4)
	w, err := Watch(path, 20*time.Millisecond, func(*Config, error) {
		calls <- struct{}{}
	})
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated")

	select {
	case <-calls:
		t.Fatal("sibling file triggered a reload")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatch_CloseIsIdempotent(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	w, err := Watch(path, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
