//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine owns one loaded llama.cpp model.
type llamaEngine struct {
	model   *llama.LLama
	threads int
}

// LoadLlama loads a model file through go-llama.cpp and returns an Engine
// over it. The model stays resident until Close.
func LoadLlama(modelPath string, opts InitOptions) (Engine, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(opts.ContextWindow),
	}
	mo = append(mo, modelOptionsFromExtra(opts.Extra)...)
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaEngine{model: m, threads: opts.Threads}, nil
}

func (e *llamaEngine) Generate(ctx context.Context, prompt string, opts GenOptions) (Response, error) {
	if e.model == nil {
		return Response{}, errors.New("llama model not initialized")
	}
	// The callback only checks for cancellation here; tokens are returned
	// in bulk by Predict.
	e.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := e.model.Predict(prompt, predictOptions(opts, e.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, err
	}
	return Response{Choices: []Choice{{Text: text}}}, nil
}

func (e *llamaEngine) GenerateStream(ctx context.Context, prompt string, opts GenOptions) (Stream, error) {
	if e.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	s := newTokenStream()
	// Bridge the token callback to the pull-based stream. Predict blocks
	// until done or the callback returns false.
	e.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return s.emit(Chunk{Choices: []Choice{{Text: tok}}})
	})
	go func() {
		_, err := e.model.Predict(prompt, predictOptions(opts, e.threads)...)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		s.finish(err)
	}()
	return s, nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts GenOptions into go-llama.cpp options.
func predictOptions(opts GenOptions, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(opts.MaxTokens, 256)),
		llama.SetThreads(zn(threads, 4)),
		llama.SetTopP(zf(opts.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(opts.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(opts.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(opts.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if opts.Seed != 0 {
		po = append(po, llama.SetSeed(opts.Seed))
	}
	if len(opts.Stop) > 0 {
		po = append(po, llama.SetStopWords(opts.Stop...))
	}
	return po
}

// modelOptionsFromExtra maps recognized passthrough keys to model options.
// Unknown keys are ignored.
func modelOptionsFromExtra(extra map[string]any) []llama.ModelOption {
	var mo []llama.ModelOption
	for k, v := range extra {
		switch k {
		case "f16_memory":
			if b, ok := v.(bool); ok && b {
				mo = append(mo, llama.EnableF16Memory)
			}
		case "mlock":
			if b, ok := v.(bool); ok && b {
				mo = append(mo, llama.EnableMLock)
			}
		case "embeddings":
			if b, ok := v.(bool); ok && b {
				mo = append(mo, llama.EnableEmbeddings)
			}
		case "gpu_layers":
			if n, ok := v.(int); ok {
				mo = append(mo, llama.SetGPULayers(n))
			}
		case "batch":
			if n, ok := v.(int); ok {
				mo = append(mo, llama.SetNBatch(n))
			}
		}
	}
	return mo
}
