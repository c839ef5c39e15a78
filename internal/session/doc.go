// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the session list and the active session pointer.
//
// Store is the single source of truth read by the presentation layer and
// written by the stream controller. Each mutation produces a new immutable
// Snapshot; subscribers receive snapshots over a channel with a buffer of
// one, so a reader that falls behind skips straight to the latest state.
//
// # Key Types
//
//   - Store: sessions, messages and the active id
//   - Snapshot: read-only view delivered to observers
//   - Patch: field-wise update for an agent message
//   - Persister, Loader: durable storage hooks (see package storage)
//
// # Usage
//
//	store := session.NewStore(session.WithPersister(repo), session.WithLogger(log))
//	store.Bootstrap(repo)
//
//	updates, cancel := store.Subscribe()
//	defer cancel()
//	for snap := range updates {
//	    render(snap)
//	}
package session
