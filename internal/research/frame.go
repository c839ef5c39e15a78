// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// FRAME DECODER
// =============================================================================

// FrameDecoder turns an arbitrarily chunked byte stream into complete lines.
//
// Bytes after the last newline are carried over to the next Feed. Because
// '\n' never occurs inside a multi-byte UTF-8 sequence, a rune split across
// chunks always sits in the carry-over and is decoded once its line closes.
// Invalid sequences in a completed line become U+FFFD.
//
// A FrameDecoder is not safe for concurrent use.
type FrameDecoder struct {
	carry []byte
}

// NewFrameDecoder returns an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends chunk and returns every line it completed, in order, without
// the terminating newline. Empty lines are returned as "".
func (d *FrameDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	var lines []string
	for {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			break
		}
		var line string
		if len(d.carry) > 0 {
			d.carry = append(d.carry, chunk[:i]...)
			line = decodeLine(d.carry)
			d.carry = d.carry[:0]
		} else {
			line = decodeLine(chunk[:i])
		}
		lines = append(lines, line)
		chunk = chunk[i+1:]
	}
	d.carry = append(d.carry, chunk...)
	return lines
}

// Pending returns the unterminated tail held for the next Feed.
func (d *FrameDecoder) Pending() string {
	return decodeLine(d.carry)
}

// Close ends the stream and returns whatever unterminated bytes remained.
// The remainder is never parsed as a record. The decoder is reset.
func (d *FrameDecoder) Close() string {
	dropped := decodeLine(d.carry)
	d.carry = nil
	return dropped
}

func decodeLine(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
