// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the buddy command line.
//
// # Commands
//
//	buddy                       start the terminal UI (same as "buddy tui")
//	buddy ask QUERY             stream one research answer to stdout
//	buddy chat                  line-based REPL sharing the session history
//	buddy sessions list         list saved sessions, newest first
//	buddy sessions show REF     print one session as Markdown
//	buddy sessions export       export sessions as json, yaml or markdown
//	buddy config show|path|init|check
//	buddy version
//
// REF is either the 1-based position shown by "sessions list" or a prefix
// of the session id.
//
// # Global Flags
//
//	--config PATH     read this config file instead of ~/.research-buddy/config.toml
//	--backend URL     override backend.url
//	--storage NAME    override storage.backend (file or sqlite)
package cli
