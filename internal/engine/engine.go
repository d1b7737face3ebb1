package engine

import "context"

// Engine is the opaque inference capability the adapter delegates to.
// Implementations own a single loaded model; concurrent calls against the
// same Engine are not supported.
type Engine interface {
	// Generate runs a blocking completion and returns the full response.
	Generate(ctx context.Context, prompt string, opts GenOptions) (Response, error)
	// GenerateStream starts a completion and returns a stream of chunks.
	// The stream ends with io.EOF when generation finishes.
	GenerateStream(ctx context.Context, prompt string, opts GenOptions) (Stream, error)
	// Close releases the loaded model.
	Close() error
}

// Loader constructs an Engine from a model artifact path and init options.
type Loader func(modelPath string, opts InitOptions) (Engine, error)

// Built reports whether this binary includes the real llama backend.
func Built() bool { return llamaBuilt }

// InitOptions captures construction-time engine configuration.
type InitOptions struct {
	// ContextWindow is the maximum number of context tokens.
	ContextWindow int
	// Threads used for generation. 0 lets the backend choose.
	Threads int
	// Verbose enables backend-native logging.
	Verbose bool
	// Extra holds backend-specific initialization options (e.g. "mlock",
	// "mmap", "f16_memory", "gpu_layers", "embeddings"). Keys the active
	// backend does not recognize are ignored.
	Extra map[string]any
}

// GenOptions captures per-call generation parameters. A fresh value is
// passed on every call; engines must not retain or mutate it.
type GenOptions struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// Choice is one candidate text in a response or chunk.
type Choice struct {
	Text string
}

// Response is a complete, non-streaming engine response.
type Response struct {
	Choices []Choice
}

// Chunk is one incremental piece of a streaming response. Choice texts are
// deltas, not accumulated output.
type Chunk struct {
	Choices []Choice
}

// Stream is a finite, forward-only sequence of chunks. Next blocks until a
// chunk is available and returns io.EOF once the sequence ends.
type Stream interface {
	Next() (Chunk, error)
	Close() error
}
