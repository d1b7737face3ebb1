package llm

import "llamad/internal/engine"

// CallOption adjusts generation parameters for a single call. Every call
// works on a fresh copy of the adapter's base options, so options never
// leak across calls and the adapter itself is never mutated.
type CallOption func(*engine.GenOptions)

// WithTemperature overrides the sampling temperature for this call.
func WithTemperature(t float32) CallOption {
	return func(o *engine.GenOptions) { o.Temperature = t }
}

// WithMaxTokens overrides the maximum number of new tokens for this call.
func WithMaxTokens(n int) CallOption {
	return func(o *engine.GenOptions) { o.MaxTokens = n }
}

// WithTopP overrides the nucleus sampling probability for this call.
func WithTopP(p float32) CallOption {
	return func(o *engine.GenOptions) { o.TopP = p }
}

// WithTopK overrides top-K sampling for this call.
func WithTopK(k int) CallOption {
	return func(o *engine.GenOptions) { o.TopK = k }
}

// WithStop sets stop sequences for this call.
func WithStop(stop ...string) CallOption {
	return func(o *engine.GenOptions) { o.Stop = append([]string(nil), stop...) }
}

// WithSeed fixes the sampling seed for this call.
func WithSeed(seed int) CallOption {
	return func(o *engine.GenOptions) { o.Seed = seed }
}

// WithRepeatPenalty overrides the repeat penalty for this call.
func WithRepeatPenalty(p float32) CallOption {
	return func(o *engine.GenOptions) { o.RepeatPenalty = p }
}
