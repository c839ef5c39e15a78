// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"long message", "A very long first message exceeding thirty characters indeed", "A very long first message exce..."},
		{"exactly thirty", "abcdefghijklmnopqrstuvwxyz1234", "abcdefghijklmnopqrstuvwxyz1234"},
		{"short", "fusion energy", "fusion energy"},
		{"combining marks normalised", "café", "café"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.input); got != tc.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSession_WithMessage_SetsTitleOnce(t *testing.T) {
	s := NewSession()
	if s.Title != DefaultTitle {
		t.Fatalf("new session title = %q, want %q", s.Title, DefaultTitle)
	}

	s = s.WithMessage(NewUserMessage("first question"))
	if s.Title != "first question" {
		t.Errorf("Title = %q, want %q", s.Title, "first question")
	}

	s = s.WithMessage(NewUserMessage("second question that should not become the title"))
	if s.Title != "first question" {
		t.Errorf("Title changed after first message: %q", s.Title)
	}
}

func TestSession_WithMessage_AgentFirstKeepsDefaultTitle(t *testing.T) {
	s := NewSession().WithMessage(NewAgentPlaceholder("agent-1"))
	if s.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", s.Title, DefaultTitle)
	}
}

func TestSession_WithMessage_DoesNotAliasReceiver(t *testing.T) {
	base := NewSession().WithMessage(NewUserMessage("q"))
	// Give the backing array spare capacity so a naive append would share it.
	base.Messages = append(make([]Message, 0, 8), base.Messages...)

	a := base.WithMessage(NewAgentPlaceholder("a"))
	b := base.WithMessage(NewAgentPlaceholder("b"))

	if a.Messages[1].ID != "a" || b.Messages[1].ID != "b" {
		t.Errorf("appends leaked between copies: a=%q b=%q", a.Messages[1].ID, b.Messages[1].ID)
	}
	if len(base.Messages) != 1 {
		t.Errorf("receiver changed: %d messages", len(base.Messages))
	}
}

func TestSession_WithReplaced(t *testing.T) {
	s := NewSession().
		WithMessage(NewUserMessage("q")).
		WithMessage(NewAgentPlaceholder("agent"))

	i := s.IndexOf("agent")
	if i != 1 {
		t.Fatalf("IndexOf = %d, want 1", i)
	}

	msg := s.Messages[i]
	msg.Text = "answer"
	updated := s.WithReplaced(i, msg)

	if s.Messages[1].Text != "" {
		t.Error("original session was mutated")
	}
	if updated.Messages[1].Text != "answer" {
		t.Errorf("updated text = %q", updated.Messages[1].Text)
	}
	if s.IndexOf("missing") != -1 {
		t.Error("IndexOf should return -1 for unknown ids")
	}
}

func TestSession_HasStreaming(t *testing.T) {
	s := NewSession().WithMessage(NewUserMessage("q"))
	if s.HasStreaming() {
		t.Error("user-only session should not be streaming")
	}
	s = s.WithMessage(NewAgentPlaceholder("a"))
	if !s.HasStreaming() {
		t.Error("placeholder should mark session as streaming")
	}
}

// =============================================================================
// GROUNDING TESTS
// =============================================================================

func TestGroundingMetadata_Sources(t *testing.T) {
	g := &GroundingMetadata{
		GroundingChunks: []GroundingChunk{
			{Web: &WebSource{URI: "https://a.example", Title: "A"}},
			{Web: &WebSource{URI: "", Title: "no uri"}},
			{},
			{Web: &WebSource{URI: "https://b.example"}},
		},
		SelectedArticles: json.RawMessage(`[{"title":"C","url":"https://c.example","reason":"x"},{"title":"dup","url":"https://a.example"},{"title":"none"}]`),
	}

	want := []Source{
		{Index: 1, URI: "https://a.example", Title: "A"},
		{Index: 2, URI: "https://b.example", Title: UnknownSourceTitle},
		{Index: 3, URI: "https://c.example", Title: "C"},
	}
	if diff := cmp.Diff(want, g.Sources()); diff != "" {
		t.Errorf("Sources() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroundingMetadata_SourcesIgnoresOpaqueShapes(t *testing.T) {
	g := &GroundingMetadata{SelectedArticles: json.RawMessage(`{"not":"a list"}`)}
	if got := g.Sources(); len(got) != 0 {
		t.Errorf("expected no sources, got %v", got)
	}

	var nilMeta *GroundingMetadata
	if got := nilMeta.Sources(); got != nil {
		t.Errorf("nil metadata Sources() = %v", got)
	}
}

func TestGroundingMetadata_CloneIsDeep(t *testing.T) {
	g := &GroundingMetadata{
		Field:           "tech",
		FetchedData:     json.RawMessage(`{"arXiv":[]}`),
		GroundingChunks: []GroundingChunk{{Web: &WebSource{URI: "u", Title: "t"}}},
	}
	c := g.Clone()
	c.FetchedData[2] = 'X'
	c.GroundingChunks[0].Web.Title = "changed"

	if string(g.FetchedData) != `{"arXiv":[]}` {
		t.Errorf("FetchedData shared with clone: %s", g.FetchedData)
	}
	if g.GroundingChunks[0].Web.Title != "t" {
		t.Error("GroundingChunks shared with clone")
	}
	if (*GroundingMetadata)(nil).Clone() != nil {
		t.Error("nil Clone should be nil")
	}
}

func TestGroundingMetadata_IsZero(t *testing.T) {
	if !(&GroundingMetadata{}).IsZero() {
		t.Error("empty metadata should be zero")
	}
	if (&GroundingMetadata{Field: "tech"}).IsZero() {
		t.Error("metadata with a field should not be zero")
	}
}

// =============================================================================
// TEXT TESTS
// =============================================================================

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Hello world", "Hello world"},
		{"escaped newlines", `line one\nline two`, "line one\nline two"},
		{"json string", `"quoted\ntext"`, "quoted\ntext"},
		{"escaped slash and quote", `a\/b \"c\"`, `a/b "c"`},
		{"lone quote", `"`, `"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.input); got != tc.want {
				t.Errorf("CleanText(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRole_DisplayName(t *testing.T) {
	if RoleUser.DisplayName() != "You" {
		t.Errorf("RoleUser.DisplayName() = %q", RoleUser.DisplayName())
	}
	if RoleAgent.DisplayName() != "Research Buddy" {
		t.Errorf("RoleAgent.DisplayName() = %q", RoleAgent.DisplayName())
	}
}
