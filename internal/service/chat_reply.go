package service

import (
	"io"
	"strings"
	"sync"

	"clarvis-be/pkg/llm"
)

// ChatReply is an open reply stream. Chunks are incremental; the assembled
// text is handed to onDone when the reply is closed.
//
// A classified model failure in the middle of the stream ends it with one
// guidance chunk instead of an error, so the user still gets an answer.
type ChatReply struct {
	stream      llm.Stream
	userContent string
	onDone      func(text string)
	buf         strings.Builder
	guided      bool
	once        sync.Once
}

func newChatReply(stream llm.Stream, userContent string, onDone func(text string)) *ChatReply {
	return &ChatReply{stream: stream, userContent: userContent, onDone: onDone}
}

// Recv returns the next chunk, or io.EOF after the last one.
func (r *ChatReply) Recv() (string, error) {
	if r.guided {
		return "", io.EOF
	}
	chunk, err := r.stream.Recv()
	if err == io.EOF {
		return "", err
	}
	if err != nil {
		guidance, ok := Guidance(err, r.userContent)
		if !ok {
			return "", err
		}
		r.guided = true
		if r.buf.Len() > 0 {
			guidance = "\n\n" + guidance
		}
		chunk = guidance
	}
	r.buf.WriteString(chunk)
	return chunk, nil
}

// Guided reports whether the reply was cut short by a classified failure.
func (r *ChatReply) Guided() bool {
	return r.guided
}

// Text is everything received so far.
func (r *ChatReply) Text() string {
	return r.buf.String()
}

func (r *ChatReply) Close() error {
	var err error
	r.once.Do(func() {
		err = r.stream.Close()
		if r.onDone != nil {
			r.onDone(r.buf.String())
		}
	})
	return err
}
