//go:build !llama

package engine

// This file provides a no-CGO stub for the llama backend. It is compiled
// when the 'llama' build tag is NOT set, keeping default builds and CI
// CGO-free. The real backend lives in llama.go (tagged 'llama').

// llamaBuilt indicates whether real llama support was compiled in.
var llamaBuilt = false

// LoadLlama fails fast: the llama runtime is not available in this build.
// No mocked behavior in binaries built without CGO support.
func LoadLlama(modelPath string, opts InitOptions) (Engine, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
