// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for research sessions and messages.
package model

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/research-buddy/internal/util"
)

// DefaultTitle is shown for a session until its first user message arrives.
const DefaultTitle = "New Research Task"

// MaxTitleRunes is how much of the first user message becomes the title.
const MaxTitleRunes = 30

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds one research conversation.
//
// Messages are append-only and in chronological order. The title is derived
// from the first user message and never changes after that.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSession creates an empty session with a generated ID.
func NewSession() Session {
	return Session{
		ID:        NewID(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: time.Now(),
	}
}

// DeriveTitle turns the first user message into a session title: at most
// MaxTitleRunes runes, with "..." appended when the text was longer.
func DeriveTitle(text string) string {
	return util.TruncateTitle(norm.NFC.String(text), MaxTitleRunes)
}

// WithMessage returns a copy of s with msg appended. If msg is the first
// message and comes from the user, the title is derived from it.
// The receiver's message slice is never written to.
func (s Session) WithMessage(msg Message) Session {
	if len(s.Messages) == 0 && msg.Role == RoleUser {
		s.Title = DeriveTitle(msg.Text)
	}
	msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, msg)
	return s
}

// IndexOf returns the position of the message with the given ID, or -1.
func (s Session) IndexOf(messageID string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// WithReplaced returns a copy of s whose message at index i is msg.
// All other messages are shared with s.
func (s Session) WithReplaced(i int, msg Message) Session {
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	msgs[i] = msg
	s.Messages = msgs
	return s
}

// Message returns the message with the given ID.
func (s Session) Message(messageID string) (Message, bool) {
	if i := s.IndexOf(messageID); i >= 0 {
		return s.Messages[i], true
	}
	return Message{}, false
}

// LastMessage returns the most recent message, if any.
func (s Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// IsEmpty returns true if there are no messages.
func (s Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// HasStreaming reports whether any message is still marked as streaming.
func (s Session) HasStreaming() bool {
	for _, m := range s.Messages {
		if m.IsStreaming {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the session.
func (s Session) Clone() Session {
	msgs := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		msgs[i] = m.Clone()
	}
	s.Messages = msgs
	return s
}
