package codex

import (
	"bytes"
	"strings"
)

// doneSentinel is the non-JSON data payload that terminates a stream. Any
// bytes still in flight after it are ignored.
const doneSentinel = "[DONE]"

// frameBuffer reassembles SSE event payloads from network chunks that carry
// no alignment guarantee whatsoever: a read may end mid-line, mid-event, or
// hold a dozen events at once. Feeding the same byte stream in one chunk or
// split arbitrarily yields the same payload sequence.
type frameBuffer struct {
	pending []byte // bytes of the line currently being received
	data    []byte // joined data: lines of the block currently being received
	hasData bool
	done    bool
}

// feed appends a chunk and returns the data payload of every event block the
// buffer now completes. Once the terminal sentinel is seen the buffer latches
// shut and all further input is discarded.
func (f *frameBuffer) feed(chunk []byte) [][]byte {
	if f.done {
		return nil
	}

	f.pending = append(f.pending, chunk...)

	var payloads [][]byte
	for {
		nl := bytes.IndexByte(f.pending, '\n')
		if nl < 0 {
			break
		}

		line := strings.TrimRight(string(f.pending[:nl]), "\r")
		f.pending = f.pending[nl+1:]

		// a blank line closes the current event block
		if line == "" {
			if !f.hasData {
				continue
			}

			payload := f.data
			f.data = nil
			f.hasData = false

			if string(payload) == doneSentinel {
				f.done = true
				f.pending = nil
				return payloads
			}

			payloads = append(payloads, payload)
			continue
		}

		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			f.data = append(f.data, strings.TrimPrefix(rest, " ")...)
			f.hasData = true
		}
		// any other SSE field (event:, id:, retry:, comments) is ignored
	}

	return payloads
}

// finish flushes a trailing block that was never closed by a blank line,
// which happens when the connection ends right after the last event.
func (f *frameBuffer) finish() [][]byte {
	return f.feed([]byte("\n\n"))
}
