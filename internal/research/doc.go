// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package research is the client side of the research backend's NDJSON
// stream.
//
// A request is a GET to /research/{query}; the response body is a sequence
// of JSON objects, one per line. The package splits that work into small
// pieces that the controller chains together:
//
// # Key Types
//
//   - Client: issues the request and the /health probe
//   - StreamReader: reads the body and hands complete lines to a callback
//   - FrameDecoder: reassembles lines from arbitrarily split chunks
//   - Record: tagged union produced by ParseRecord
//   - Accumulator: folds records into the agent message's text and metadata
//
// # Usage
//
//	stream, err := client.Research(ctx, "fusion energy")
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	acc := research.NewAccumulator()
//	err = stream.Process(ctx, func(line string) error {
//	    rec, err := research.ParseRecord(line)
//	    if err != nil {
//	        return nil // blank or malformed, skip
//	    }
//	    if delta, ok := acc.Fold(rec); ok {
//	        render(delta.Text)
//	    }
//	    return nil
//	})
//
// A trailing line without a newline is never parsed; StreamReader.Remainder
// exposes it for logging.
package research
