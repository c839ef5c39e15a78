// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// research-buddy.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: research backend URL and timeouts
//   - StorageConfig: session cache backend, location and namespace
//   - Watcher: fsnotify-based reload of the config file
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RESEARCH_BUDDY_*)
//   - ~/.research-buddy/config.toml
//   - ~/.research-buddy/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil && cfg == nil {
//	    return err
//	}
//
//	w, err := config.Watch(cfg.Source, 0, func(next *config.Config, err error) {
//	    if err == nil {
//	        client.SetBaseURL(next.Backend.URL)
//	    }
//	})
package config
