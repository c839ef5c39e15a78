// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/research-buddy/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "buddy.log")

	logger, flush, err := New(config.LogConfig{Enabled: false, Path: path})
	require.NoError(t, err)
	defer flush()

	logger.Info("discarded")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "disabled logging must not create a file")
}

func TestNew_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "buddy.log")

	logger, flush, err := New(config.LogConfig{Enabled: true, Level: "info", Path: path})
	require.NoError(t, err)

	logger.Debug("hidden below level")
	logger.Info("research request finished", zap.String("state", "completed"))
	flush()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 1)
	assert.Equal(t, "research request finished", entries[0]["msg"])
	assert.Equal(t, "completed", entries[0]["state"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Contains(t, entries[0], "ts")
}

func TestNew_DebugLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buddy.log")

	logger, flush, err := New(config.LogConfig{Enabled: true, Level: "debug", Path: path})
	require.NoError(t, err)
	logger.Debug("visible")
	flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Enabled: true, Level: "chatty", Path: filepath.Join(t.TempDir(), "x.log")})
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.HomeEnv, dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs", "buddy.log"), path)
}
