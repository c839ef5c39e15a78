// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/research-buddy/internal/model"
)

// DefaultNamespace is the key the session list is stored under.
const DefaultNamespace = "research-agent-sessions"

// ErrCorrupt is returned by Load when the stored value cannot be decoded as
// a session list.
var ErrCorrupt = &CacheError{Message: "persisted sessions are malformed"}

// =============================================================================
// SESSION REPOSITORY
// =============================================================================

// SessionRepository serializes the whole session list into one cache key.
// It satisfies session.Persister and session.Loader.
type SessionRepository struct {
	mu        sync.Mutex
	cache     Cache
	namespace string
}

// NewSessionRepository stores sessions in cache under namespace. An empty
// namespace selects DefaultNamespace.
func NewSessionRepository(cache Cache, namespace string) *SessionRepository {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &SessionRepository{cache: cache, namespace: namespace}
}

// Namespace returns the cache key in use.
func (r *SessionRepository) Namespace() string {
	return r.namespace
}

// Save writes the full list, newest first, replacing whatever was stored.
func (r *SessionRepository) Save(sessions []model.Session) error {
	if sessions == nil {
		sessions = []model.Session{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cache.Set(r.namespace, data); err != nil {
		return fmt.Errorf("failed to store sessions: %w", err)
	}
	return nil
}

// Load returns the stored list. An absent key yields (nil, nil); a value
// that is not a JSON array of sessions yields ErrCorrupt. Entries without
// an id are discarded and messages without an id are given one.
func (r *SessionRepository) Load() ([]model.Session, error) {
	r.mu.Lock()
	data, err := r.cache.Get(r.namespace)
	r.mu.Unlock()
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrCorrupt
	}

	var sessions []model.Session
	if err := json.Unmarshal(trimmed, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	valid := sessions[:0]
	for _, s := range sessions {
		if s.ID == "" {
			continue
		}
		for i := range s.Messages {
			if s.Messages[i].ID == "" {
				s.Messages[i].ID = model.NewID()
			}
		}
		if s.Title == "" {
			s.Title = model.DefaultTitle
		}
		valid = append(valid, s)
	}
	return valid, nil
}
