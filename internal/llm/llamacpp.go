// Package llm adapts a local llama.cpp engine to a standardized
// language-model interface: blocking and streaming completion, chat framing
// over completion, and a static metadata descriptor.
package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"llamad/internal/common/fsutil"
	"llamad/internal/engine"
	"llamad/internal/fetch"
	"llamad/pkg/types"
)

// Defaults applied when Config leaves the corresponding field zero.
const (
	DefaultTemperature   = 0.1
	DefaultMaxNewTokens  = 256
	DefaultContextWindow = 3900
)

// cacheApp names the subdirectory used under the OS cache root.
const cacheApp = "llamad"

// Config describes how to locate the model artifact and construct the
// engine. All fields are optional except that at most one of ModelPath and
// ModelURL decides where the artifact comes from: an explicit ModelPath must
// already exist, otherwise ModelURL (or the default URL) is downloaded into
// the cache.
type Config struct {
	// ModelURL is the artifact to download when ModelPath is empty.
	// Defaults to fetch.DefaultModelURL.
	ModelURL string
	// ModelPath is an explicit local artifact path. Must exist if set.
	ModelPath string
	// CacheDir overrides the cache root ("" uses the OS user cache dir).
	CacheDir string

	// Temperature is the default sampling temperature.
	Temperature float64
	// MaxNewTokens is the default generation budget per call.
	MaxNewTokens int
	// ContextWindow is the model context size the engine is loaded with.
	ContextWindow int
	// Threads used for generation. 0 lets the backend choose.
	Threads int
	// Verbose enables backend-native logging.
	Verbose bool

	// MessagesToPrompt converts chat messages into a prompt.
	// Defaults to DefaultMessagesToPrompt.
	MessagesToPrompt MessagesToPromptFunc
	// CompletionToPrompt shapes prompts before they reach the engine.
	// Defaults to DefaultCompletionToPrompt (identity).
	CompletionToPrompt CompletionToPromptFunc

	// GenerateOptions seeds the base per-call generation options.
	// Temperature and MaxNewTokens above overlay the corresponding fields.
	GenerateOptions engine.GenOptions
	// InitOptions holds backend-specific passthrough init options.
	InitOptions map[string]any

	// Loader constructs the engine. Defaults to engine.LoadLlama.
	Loader engine.Loader
	// Fetcher resolves/downloads the artifact. Defaults to fetch.New(Log).
	Fetcher *fetch.Fetcher
	// Log is used for construction and download progress.
	Log zerolog.Logger
}

// LlamaCPP owns a single loaded inference engine. Construction resolves the
// artifact and loads the model once; calls are stateless with respect to one
// another. A LlamaCPP is not safe for concurrent use.
type LlamaCPP struct {
	eng                engine.Engine
	modelPath          string
	contextWindow      int
	maxNewTokens       int
	baseOpts           engine.GenOptions
	messagesToPrompt   MessagesToPromptFunc
	completionToPrompt CompletionToPromptFunc
	log                zerolog.Logger
}

// New resolves the model artifact, loads the engine, and returns a ready
// adapter. A missing explicit ModelPath or a failed download aborts
// construction.
func New(ctx context.Context, cfg Config) (*LlamaCPP, error) {
	modelURL := cfg.ModelURL
	if modelURL == "" {
		modelURL = fetch.DefaultModelURL
	}
	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	maxNewTokens := cfg.MaxNewTokens
	if maxNewTokens <= 0 {
		maxNewTokens = DefaultMaxNewTokens
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = fetch.New(cfg.Log)
	}
	cacheRoot, err := fsutil.CacheRoot(cfg.CacheDir, cacheApp)
	if err != nil {
		return nil, err
	}
	modelPath, err := fetcher.Resolve(ctx, modelURL, cfg.ModelPath, cacheRoot)
	if err != nil {
		return nil, err
	}

	loader := cfg.Loader
	if loader == nil {
		loader = engine.LoadLlama
	}
	eng, err := loader(modelPath, engine.InitOptions{
		ContextWindow: contextWindow,
		Threads:       cfg.Threads,
		Verbose:       cfg.Verbose,
		Extra:         cfg.InitOptions,
	})
	if err != nil {
		return nil, err
	}

	base := cfg.GenerateOptions
	base.Temperature = float32(temperature)
	base.MaxTokens = maxNewTokens

	mtp := cfg.MessagesToPrompt
	if mtp == nil {
		mtp = DefaultMessagesToPrompt
	}
	ctp := cfg.CompletionToPrompt
	if ctp == nil {
		ctp = DefaultCompletionToPrompt
	}

	cfg.Log.Info().Str("model", modelPath).Int("context_window", contextWindow).Msg("model loaded")
	return &LlamaCPP{
		eng:                eng,
		modelPath:          modelPath,
		contextWindow:      contextWindow,
		maxNewTokens:       maxNewTokens,
		baseOpts:           base,
		messagesToPrompt:   mtp,
		completionToPrompt: ctp,
		log:                cfg.Log,
	}, nil
}

// Metadata reports construction-time configuration. No computation.
func (l *LlamaCPP) Metadata() types.Metadata {
	return types.Metadata{
		ContextWindow: l.contextWindow,
		NumOutput:     l.maxNewTokens,
		ModelName:     l.modelPath,
	}
}

// Ready reports whether the engine is loaded and accepting calls.
func (l *LlamaCPP) Ready() bool { return l.eng != nil }

// Close releases the underlying engine.
func (l *LlamaCPP) Close() error { return l.eng.Close() }

// callOptions builds a fresh per-call option set from the base options.
// The base is never mutated, so calls cannot interfere with one another.
func (l *LlamaCPP) callOptions(opts []CallOption) engine.GenOptions {
	gen := l.baseOpts
	gen.Stop = append([]string(nil), l.baseOpts.Stop...)
	for _, o := range opts {
		o(&gen)
	}
	return gen
}

// Complete runs a blocking completion. The configured prompt-shaping
// function is applied to the input; the engine's first choice is returned
// verbatim alongside the raw response. Engine errors propagate unchanged.
func (l *LlamaCPP) Complete(ctx context.Context, prompt string, opts ...CallOption) (types.CompletionResponse, error) {
	gen := l.callOptions(opts)
	resp, err := l.eng.Generate(ctx, l.completionToPrompt(prompt), gen)
	if err != nil {
		return types.CompletionResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return types.CompletionResponse{}, errors.New("engine returned no choices")
	}
	return types.CompletionResponse{Text: resp.Choices[0].Text, Raw: resp}, nil
}

// StreamComplete starts a streaming completion. Chunks accumulate: each
// carries the new delta and the concatenation of all deltas so far. The
// stream ends with io.EOF and is consumed lazily by the caller.
func (l *LlamaCPP) StreamComplete(ctx context.Context, prompt string, opts ...CallOption) (types.CompletionStream, error) {
	gen := l.callOptions(opts)
	st, err := l.eng.GenerateStream(ctx, l.completionToPrompt(prompt), gen)
	if err != nil {
		return nil, err
	}
	return &completionStream{src: st}, nil
}

// Chat formats the messages into a prompt and delegates to Complete; the
// result is framed as an assistant reply. Chat is a pure composition of
// formatting and completion with no additional side effects.
func (l *LlamaCPP) Chat(ctx context.Context, messages []types.ChatMessage, opts ...CallOption) (types.ChatResponse, error) {
	cr, err := l.Complete(ctx, l.messagesToPrompt(messages), opts...)
	if err != nil {
		return types.ChatResponse{}, err
	}
	return completionToChat(cr), nil
}

// StreamChat is the streaming counterpart of Chat.
func (l *LlamaCPP) StreamChat(ctx context.Context, messages []types.ChatMessage, opts ...CallOption) (types.ChatStream, error) {
	cs, err := l.StreamComplete(ctx, l.messagesToPrompt(messages), opts...)
	if err != nil {
		return nil, err
	}
	return &chatStream{src: cs}, nil
}

func completionToChat(cr types.CompletionResponse) types.ChatResponse {
	return types.ChatResponse{
		Message: types.ChatMessage{Role: types.RoleAssistant, Content: cr.Text},
		Delta:   cr.Delta,
		Raw:     cr.Raw,
	}
}
