package types

// CompletionResponse is the result of a completion call, or a single chunk
// of a streaming completion.
type CompletionResponse struct {
	// Full text produced so far. For blocking calls this is the whole
	// completion; for streaming chunks it is the concatenation of every
	// delta observed so far, in order.
	Text string `json:"text"`
	// Incremental text carried by this chunk. Empty for blocking calls.
	Delta string `json:"delta,omitempty"`
	// Raw engine response or chunk, passed through untouched.
	Raw any `json:"-"`
}

// ChatResponse frames a completion as an assistant reply.
type ChatResponse struct {
	Message ChatMessage `json:"message"`
	Delta   string      `json:"delta,omitempty"`
	Raw     any         `json:"-"`
}

// CompletionStream is a finite, forward-only sequence of accumulating
// completion chunks. Recv blocks until the next chunk is available and
// returns io.EOF when the engine's sequence ends. Streams are not
// restartable; abandoning a stream requires Close.
type CompletionStream interface {
	Recv() (CompletionResponse, error)
	Close() error
}

// ChatStream is the chat-shaped counterpart of CompletionStream.
type ChatStream interface {
	Recv() (ChatResponse, error)
	Close() error
}
