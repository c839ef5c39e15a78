// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"

	"github.com/jeranaias/research-buddy/internal/util"
)

// FileCache stores each key as <dir>/<key>.json.
type FileCache struct {
	// BaseDir is the directory holding the cache files
	// Default: ~/.research-buddy/cache/
	BaseDir string
}

// NewFileCache creates a file cache in dir, creating the directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileCache{BaseDir: dir}, nil
}

// Get reads the value for key.
func (c *FileCache) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set writes the value for key.
func (c *FileCache) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(c.filePath(key), value, 0600)
}

// Close is a no-op for the file cache.
func (c *FileCache) Close() error {
	return nil
}

// filePath returns the file path for a key.
func (c *FileCache) filePath(key string) string {
	return filepath.Join(c.BaseDir, key+".json")
}
