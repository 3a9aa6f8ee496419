package llm

import (
	"context"
	"io"
)

// Stream yields incremental chunks of a reply. Recv returns io.EOF after the last chunk.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type sliceStream struct {
	chunks []string
	pos    int
}

// StreamOf returns a stream that yields the given chunks in order.
func StreamOf(chunks ...string) Stream {
	return &sliceStream{chunks: chunks}
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceStream) Close() error {
	s.pos = len(s.chunks)
	return nil
}

// OpenStream streams from p when it supports streaming, otherwise wraps a
// blocking Chat call as a single-chunk stream.
func OpenStream(ctx context.Context, p LLMProvider, history []Message, opts ...Option) (Stream, error) {
	if sp, ok := p.(StreamingProvider); ok {
		return sp.ChatStream(ctx, history, opts...)
	}
	reply, err := p.Chat(ctx, history, opts...)
	if err != nil {
		return nil, err
	}
	return StreamOf(reply), nil
}
