// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across research-buddy.
//
// # Key Functions
//
// String Utilities:
//   - TruncateTitle: rune-safe prefix truncation with a trailing "..."
//   - FitWidth: display-width aware truncation for terminal columns
//   - PadRight: pad a string to a display width
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateTitle(firstMessage, 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
