// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides session persistence for research-buddy.
//
// The whole session list is serialized as one JSON array and kept under a
// single namespace key in a durable Cache. Two cache backends exist.
//
// # Key Types
//
//   - Cache: minimal key-value interface
//   - FileCache: one JSON file per key, written atomically
//   - SQLiteCache: a single key-value table in a SQLite database
//   - SessionRepository: encodes and decodes the session list
//
// # Usage
//
//	cache, err := storage.Open(storage.BackendFile, dir)
//	repo := storage.NewSessionRepository(cache, storage.DefaultNamespace)
//	err = repo.Save(sessions)
//	sessions, err := repo.Load()
//
// # Export
//
// ExportJSON, ExportYAML and ExportMarkdown back the "sessions export"
// command.
//
// # Storage Location
//
// By default the file backend lives in ~/.research-buddy/cache/ and the
// SQLite backend in ~/.research-buddy/cache.db.
package storage
