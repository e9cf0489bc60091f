package codex

import (
	"context"
	"io"

	"codexchat/core"
)

// Stream is a live response stream. It threads every network chunk through
// the same frameBuffer and assembler reducers the buffered path uses; only
// the byte sourcing differs.
type Stream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	frames frameBuffer
	asm    *assembler
	chunk  []byte

	queue []core.Event
	err   error
	eof   bool
}

// Recv blocks until the next event is available. After the final EvResp it
// returns io.EOF; after a failure it keeps returning the same error.
func (s *Stream) Recv() (core.Event, error) {
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, nil
		}

		if s.err != nil {
			return core.Event{}, s.err
		}
		if s.eof {
			return core.Event{}, io.EOF
		}

		n, err := s.body.Read(s.chunk)
		if n > 0 {
			for _, payload := range s.frames.feed(s.chunk[:n]) {
				events, aerr := s.asm.apply(payload)
				s.queue = append(s.queue, events...)
				if aerr != nil {
					s.err = aerr
					break
				}
			}
		}

		if s.err != nil || s.frames.done || s.asm.completed() {
			s.eof = true
			continue
		}

		if err == io.EOF {
			for _, payload := range s.frames.finish() {
				events, aerr := s.asm.apply(payload)
				s.queue = append(s.queue, events...)
				if aerr != nil {
					s.err = aerr
					break
				}
			}
			s.eof = true
			continue
		}
		if err != nil {
			s.err = wrapTransport(err)
		}
	}
}

// Consume pushes every event into out, emitting terminal failures as EvError,
// then closes both out and the stream. It is the cooperative variant: the
// caller's loop may interleave other work while this goroutine blocks on the
// network.
func (s *Stream) Consume(ctx context.Context, out chan<- core.Event) {
	defer s.Close()
	defer close(out)

	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			select {
			case <-ctx.Done():
			case out <- core.NewEvError(err):
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case out <- ev:
		}
	}
}

// Close abandons the stream: the request context is cancelled and the
// connection released. Safe to call at any point, including mid-stream.
func (s *Stream) Close() error {
	err := s.body.Close()
	s.cancel()
	return err
}
