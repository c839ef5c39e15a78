// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for research sessions and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "model"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAgent:
		return "Research Buddy"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a session.
//
// A user message never changes after creation. An agent message starts as an
// empty placeholder with IsStreaming set and is replaced, by ID, as records
// arrive until it is finalized.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`

	IsStreaming       bool               `json:"isStreaming,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// NewID returns a fresh opaque identifier for sessions and messages.
func NewID() string {
	return uuid.NewString()
}

// NewUserMessage creates a user message with a generated ID.
func NewUserMessage(text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewAgentPlaceholder creates an empty, streaming agent message with the given ID.
// The ID is chosen by the caller before the request starts.
func NewAgentPlaceholder(id string) Message {
	return Message{
		ID:          id,
		Role:        RoleAgent,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// IsEmpty returns true if the message has no text yet.
func (m Message) IsEmpty() bool {
	return m.Text == ""
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	m.GroundingMetadata = m.GroundingMetadata.Clone()
	return m
}

// Preview returns the first maxLen runes of the message text on a single line.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Text)
	if len(runes) <= maxLen {
		return m.Text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
