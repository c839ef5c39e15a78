// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// CACHE INTERFACE
// =============================================================================

// Cache is a durable key-value store. Values are opaque bytes; the session
// repository keeps a single JSON document under one namespace key.
type Cache interface {
	// Get returns the value for key or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set replaces the value for key.
	Set(key string, value []byte) error

	// Close releases any held resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open constructs the cache for backend rooted at path. For the file
// backend path is a directory; for sqlite it is the database file.
func Open(backend, path string) (Cache, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileCache(path)
	case BackendSQLite:
		return NewSQLiteCache(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// DefaultPath returns the conventional location of backend under home.
func DefaultPath(home, backend string) string {
	if strings.EqualFold(backend, BackendSQLite) {
		return filepath.Join(home, "cache.db")
	}
	return filepath.Join(home, "cache")
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a key has never been written.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &CacheError{Message: "key not found"}

// ErrInvalidKey is returned for keys that cannot be stored safely.
var ErrInvalidKey = &CacheError{Message: "invalid key"}

// CacheError represents a cache-related error.
// It implements the error interface and can be compared using errors.Is.
type CacheError struct {
	Message string
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing cache errors.
func (e *CacheError) Is(target error) bool {
	t, ok := target.(*CacheError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// validateKey rejects keys that would escape the file cache directory.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return ErrInvalidKey
	}
	return nil
}
