// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"context"
	"errors"
	"io"
)

// readBufferSize is the size of each read from the response body.
const readBufferSize = 4096

// =============================================================================
// STREAM READER
// =============================================================================

// LineCallback is called for each complete line received during streaming.
// Returning a non-nil error stops the stream and Process returns it as is.
type LineCallback func(line string) error

// StreamReader feeds a response body through a FrameDecoder.
type StreamReader struct {
	body      io.ReadCloser
	decoder   *FrameDecoder
	buf       []byte
	remainder string
	lines     int
}

// NewStreamReader creates a stream reader over r. Closing the reader closes r
// when r is an io.ReadCloser.
func NewStreamReader(r io.Reader) *StreamReader {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &StreamReader{
		body:    rc,
		decoder: NewFrameDecoder(),
		buf:     make([]byte, readBufferSize),
	}
}

// Process reads until EOF and calls callback for each complete line.
// Blocks until the stream ends, the callback fails, or ctx is cancelled.
//
// A clean EOF returns nil; any unterminated trailing bytes are then
// available from Remainder. A failed read returns a ClientError.
func (s *StreamReader) Process(ctx context.Context, callback LineCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return classifyTransportError(ctx, err)
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			for _, line := range s.decoder.Feed(s.buf[:n]) {
				s.lines++
				if cbErr := callback(line); cbErr != nil {
					return cbErr
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.remainder = s.decoder.Close()
				return nil
			}
			if ctx.Err() != nil {
				return classifyTransportError(ctx, err)
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
		}
	}
}

// Remainder returns the unterminated bytes left when the stream ended.
func (s *StreamReader) Remainder() string {
	return s.remainder
}

// Lines returns how many complete lines have been delivered.
func (s *StreamReader) Lines() int {
	return s.lines
}

// Close releases the underlying body.
func (s *StreamReader) Close() error {
	return s.body.Close()
}
