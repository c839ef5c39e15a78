// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// RECORD PARSER TESTS
// =============================================================================

func TestParseRecord_Kinds(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Record
	}{
		{
			name: "metadata",
			line: `{"type":"metadata","topic":"fusion","field":"tech","fetched_data":{"a":1},"selected_articles":[{"url":"https://x"}]}`,
			want: MetadataRecord{
				Topic:            "fusion",
				Field:            "tech",
				FetchedData:      json.RawMessage(`{"a":1}`),
				SelectedArticles: json.RawMessage(`[{"url":"https://x"}]`),
			},
		},
		{
			name: "metadata with null data",
			line: `{"type":"metadata","field":"tech","fetched_data":null}`,
			want: MetadataRecord{Field: "tech"},
		},
		{"article", `{"type":"article","text":"Hello "}`, ArticleRecord{Text: "Hello "}},
		{"article keeps whitespace", `{"type":"article","text":"  \n"}`, ArticleRecord{Text: "  \n"}},
		{"summary", `{"type":"summary","text":"Done."}`, SummaryRecord{Text: "Done."}},
		{"error", `{"type":"error","message":"rate limited"}`, ErrorRecord{Message: "rate limited"}},
		{"complete", `{"type":"complete"}`, CompleteRecord{}},
		{"surrounding whitespace", "  {\"type\":\"complete\"}\r", CompleteRecord{}},
		{
			name: "unknown type",
			line: `{"type":"progress","pct":50}`,
			want: UnrecognizedRecord{Type: "progress", Raw: json.RawMessage(`{"type":"progress","pct":50}`)},
		},
		{
			name: "missing type",
			line: `{"text":"orphan"}`,
			want: UnrecognizedRecord{Raw: json.RawMessage(`{"text":"orphan"}`)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRecord(tc.line)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseRecord mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.want.Kind(), got.Kind())
		})
	}
}

func TestParseRecord_EmptyLine(t *testing.T) {
	for _, line := range []string{"", "   ", "\t\r"} {
		_, err := ParseRecord(line)
		assert.ErrorIs(t, err, ErrEmptyLine)
		assert.False(t, IsMalformed(err))
	}
}

func TestParseRecord_Malformed(t *testing.T) {
	lines := []string{
		`{"type":"article","text":`,
		`not json`,
		`{"type":5}`,
		`42`,
		`["type","article"]`,
		`"article"`,
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			rec, err := ParseRecord(line)
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.True(t, IsMalformed(err))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, line, pe.Line)
		})
	}
}

func TestParseRecord_Idempotent(t *testing.T) {
	line := `{"type":"metadata","field":"science","selected_articles":[{"title":"T","url":"https://a"}]}`
	first, err := ParseRecord(line)
	require.NoError(t, err)
	second, err := ParseRecord(line)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parse not idempotent (-first +second):\n%s", diff)
	}
}
