// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/research-buddy/internal/model"
)

// =============================================================================
// ACCUMULATOR TESTS
// =============================================================================

func foldLines(t *testing.T, acc *Accumulator, input string) []Delta {
	t.Helper()
	var deltas []Delta
	for _, line := range strings.Split(input, "\n") {
		rec, err := ParseRecord(line)
		if err != nil {
			continue
		}
		if d, ok := acc.Fold(rec); ok {
			deltas = append(deltas, d)
		}
	}
	return deltas
}

func TestAccumulator_EndToEnd(t *testing.T) {
	input := `{"type":"metadata","field":"tech"}
{"type":"article","text":"Hello "}
{"type":"article","text":"world"}
{"type":"summary","text":"Done."}
{"type":"complete"}`

	acc := NewAccumulator()
	deltas := foldLines(t, acc, input)
	require.Len(t, deltas, 4)

	assert.Equal(t, "Hello ", deltas[0].Text)
	assert.Equal(t, "Hello world", deltas[1].Text)
	assert.Equal(t, "Hello world"+SummarySeparator+"Done.", deltas[2].Text)
	for _, d := range deltas[:3] {
		assert.True(t, d.Streaming)
		assert.False(t, d.Terminal)
		assert.Equal(t, "tech", d.Metadata.Field)
	}

	last := deltas[3]
	assert.True(t, last.Terminal)
	assert.False(t, last.Streaming)
	assert.NoError(t, last.Err)
	assert.Equal(t, "Hello world\n\n---\n\n## Summary\n\nDone.", last.Text)
	assert.Equal(t, &model.GroundingMetadata{Field: "tech"}, last.Metadata)
	assert.True(t, acc.Done())
}

func TestAccumulator_MonotonicText(t *testing.T) {
	acc := NewAccumulator()
	parts := []Record{
		ArticleRecord{Text: "a"},
		ArticleRecord{Text: ""},
		ArticleRecord{Text: "bc"},
		SummaryRecord{Text: "s"},
		ArticleRecord{Text: "tail"},
	}
	want := ""
	prev := 0
	for _, p := range parts {
		d, ok := acc.Fold(p)
		require.True(t, ok)
		switch r := p.(type) {
		case ArticleRecord:
			want += r.Text
		case SummaryRecord:
			want += SummarySeparator + r.Text
		}
		assert.Equal(t, want, d.Text)
		assert.GreaterOrEqual(t, len(d.Text), prev)
		prev = len(d.Text)
	}
	assert.Equal(t, want, acc.Text())
}

func TestAccumulator_MetadataReplacedWholesale(t *testing.T) {
	acc := NewAccumulator()

	_, ok := acc.Fold(MetadataRecord{Field: "tech", Topic: "chips", FetchedData: json.RawMessage(`{"x":1}`)})
	assert.False(t, ok, "metadata alone must not emit a delta")

	acc.Fold(MetadataRecord{Field: "science"})
	d, ok := acc.Fold(ArticleRecord{Text: "x"})
	require.True(t, ok)

	assert.Equal(t, &model.GroundingMetadata{Field: "science"}, d.Metadata)
}

func TestAccumulator_StartsWithEmptyMetadata(t *testing.T) {
	acc := NewAccumulator()
	d, ok := acc.Fold(CompleteRecord{})
	require.True(t, ok)
	require.NotNil(t, d.Metadata)
	assert.True(t, d.Metadata.IsZero())
	assert.Equal(t, "", d.Text)
}

func TestAccumulator_DeltaMetadataIsPrivate(t *testing.T) {
	acc := NewAccumulator()
	acc.Fold(MetadataRecord{Field: "tech", SelectedArticles: json.RawMessage(`[1]`)})
	d, _ := acc.Fold(ArticleRecord{Text: "x"})

	d.Metadata.Field = "mutated"
	d.Metadata.SelectedArticles[1] = '9'

	again := acc.Metadata()
	assert.Equal(t, "tech", again.Field)
	assert.JSONEq(t, `[1]`, string(again.SelectedArticles))
}

func TestAccumulator_ErrorRecord(t *testing.T) {
	acc := NewAccumulator()
	acc.Fold(ArticleRecord{Text: "partial"})
	d, ok := acc.Fold(ErrorRecord{Message: "rate limited"})
	require.True(t, ok)

	assert.True(t, d.Terminal)
	assert.False(t, d.Streaming)

	var se *StreamError
	require.ErrorAs(t, d.Err, &se)
	assert.Equal(t, "rate limited", se.Message)
	assert.EqualError(t, d.Err, "rate limited")
}

func TestAccumulator_UnrecognizedIgnored(t *testing.T) {
	acc := NewAccumulator()
	acc.Fold(ArticleRecord{Text: "a"})
	_, ok := acc.Fold(UnrecognizedRecord{Type: "progress"})
	assert.False(t, ok)
	assert.Equal(t, "a", acc.Text())
	assert.False(t, acc.Done())
}
