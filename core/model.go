package core

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// Model represents an AI model provider that can answer a conversation either
// in one buffered call or as a stream of incremental events.
type Model interface {
	Respond(ctx context.Context, client *http.Client, msgs []Message, tools []Tool) (*Response, error)
	OpenStream(ctx context.Context, client *http.Client, msgs []Message, tools []Tool) (ResponseStream, error)
}

// ResponseStream is a lazily consumed stream of events from a model response.
//
// Recv blocks for the next event and returns io.EOF once the stream is
// exhausted (the last real event of a successful stream is EvResp). Consume
// pushes every event into out, then closes both out and the stream; it is the
// cooperative variant for callers that interleave other work. Abandoning a
// stream only requires calling Close.
type ResponseStream interface {
	Recv() (Event, error)
	Consume(ctx context.Context, out chan<- Event)
	Close() error
}

// Collect drains a stream and returns its final aggregated response. It
// closes the stream in all cases.
func Collect(ctx context.Context, stream ResponseStream) (*Response, error) {
	defer stream.Close()

	var resp *Response
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if ev.Type == EvResp {
			r := ev.Response
			resp = &r
		}
	}

	if resp == nil {
		return nil, errors.New("stream ended without a final response")
	}
	return resp, nil
}
