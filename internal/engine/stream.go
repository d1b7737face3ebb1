package engine

import (
	"io"
	"sync"
)

// tokenStream bridges a callback-driven token producer to the pull-based
// Stream interface. The producer sends chunks via emit and must call finish
// exactly once when generation ends.
type tokenStream struct {
	ch   chan Chunk
	done chan struct{}
	err  error
	once sync.Once
}

func newTokenStream() *tokenStream {
	return &tokenStream{
		ch:   make(chan Chunk, 8),
		done: make(chan struct{}),
	}
}

// emit delivers one chunk to the consumer. Returns false if the stream was
// closed by the consumer, signalling the producer to stop.
func (s *tokenStream) emit(c Chunk) bool {
	select {
	case s.ch <- c:
		return true
	case <-s.done:
		return false
	}
}

// finish records the terminal error (nil for a normal end) and closes the
// chunk channel. The err write is ordered before the close, so Next observes
// it safely.
func (s *tokenStream) finish(err error) {
	s.err = err
	close(s.ch)
}

func (s *tokenStream) Next() (Chunk, error) {
	c, ok := <-s.ch
	if !ok {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	return c, nil
}

func (s *tokenStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
