package llm

import (
	"strings"

	"llamad/internal/engine"
	"llamad/pkg/types"
)

// completionStream accumulates engine chunks into (delta, running-text)
// pairs. Forward-only; not restartable.
type completionStream struct {
	src  engine.Stream
	text strings.Builder
}

func (s *completionStream) Recv() (types.CompletionResponse, error) {
	c, err := s.src.Next()
	if err != nil {
		// io.EOF marks a normal end; engine errors pass through unchanged.
		return types.CompletionResponse{}, err
	}
	var delta string
	if len(c.Choices) > 0 {
		delta = c.Choices[0].Text
	}
	s.text.WriteString(delta)
	return types.CompletionResponse{Delta: delta, Text: s.text.String(), Raw: c}, nil
}

func (s *completionStream) Close() error { return s.src.Close() }

// chatStream reframes a completion stream as assistant replies.
type chatStream struct {
	src types.CompletionStream
}

func (s *chatStream) Recv() (types.ChatResponse, error) {
	cr, err := s.src.Recv()
	if err != nil {
		return types.ChatResponse{}, err
	}
	return completionToChat(cr), nil
}

func (s *chatStream) Close() error { return s.src.Close() }
