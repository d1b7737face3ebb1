package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamad/internal/engine"
	"llamad/internal/llm"
	"llamad/internal/registry"
	"llamad/pkg/types"
)

// Service defines the adapter methods required by the HTTP API layer.
type Service interface {
	Complete(ctx context.Context, prompt string, opts ...llm.CallOption) (types.CompletionResponse, error)
	StreamComplete(ctx context.Context, prompt string, opts ...llm.CallOption) (types.CompletionStream, error)
	Chat(ctx context.Context, messages []types.ChatMessage, opts ...llm.CallOption) (types.ChatResponse, error)
	StreamChat(ctx context.Context, messages []types.ChatMessage, opts ...llm.CallOption) (types.ChatStream, error)
	Metadata() types.Metadata
	Ready() bool
}

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}

// NewMux builds the HTTP router over the adapter. modelsDir is scanned for
// GET /v1/models; pass the cache models directory.
func NewMux(svc Service, modelsDir string) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	gen := newGate()

	r.Get("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := registry.LoadDir(modelsDir)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: models}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/v1/metadata", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Metadata()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/v1/complete", func(w http.ResponseWriter, r *http.Request) {
		var req types.CompleteRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		handleGeneration(w, r, gen, "complete", req.Stream, func(ctx context.Context) (any, types.CompletionStream, error) {
			opts := callOptions(req.Temperature, req.TopP, req.TopK, req.MaxTokens, req.Stop, req.Seed, req.RepeatPenalty)
			if req.Stream {
				st, err := svc.StreamComplete(ctx, req.Prompt, opts...)
				return nil, st, err
			}
			resp, err := svc.Complete(ctx, req.Prompt, opts...)
			return resp, nil, err
		})
	})

	r.Post("/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Messages) == 0 {
			writeJSONError(w, http.StatusBadRequest, "messages are required")
			return
		}
		handleGeneration(w, r, gen, "chat", req.Stream, func(ctx context.Context) (any, types.CompletionStream, error) {
			opts := callOptions(req.Temperature, req.TopP, req.TopK, req.MaxTokens, req.Stop, req.Seed, req.RepeatPenalty)
			if req.Stream {
				st, err := svc.StreamChat(ctx, req.Messages, opts...)
				if err != nil {
					return nil, nil, err
				}
				return nil, chatAsCompletionStream{st}, nil
			}
			resp, err := svc.Chat(ctx, req.Messages, opts...)
			return resp, nil, err
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSONBody enforces content type and body size, then decodes into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// callOptions maps request fields to per-call adapter options; zero values
// fall back to the adapter's base configuration.
func callOptions(temperature, topP float64, topK, maxTokens int, stop []string, seed int64, repeatPenalty float64) []llm.CallOption {
	var opts []llm.CallOption
	if temperature > 0 {
		opts = append(opts, llm.WithTemperature(float32(temperature)))
	}
	if topP > 0 {
		opts = append(opts, llm.WithTopP(float32(topP)))
	}
	if topK > 0 {
		opts = append(opts, llm.WithTopK(topK))
	}
	if maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(maxTokens))
	}
	if len(stop) > 0 {
		opts = append(opts, llm.WithStop(stop...))
	}
	if seed != 0 {
		opts = append(opts, llm.WithSeed(int(seed)))
	}
	if repeatPenalty > 0 {
		opts = append(opts, llm.WithRepeatPenalty(float32(repeatPenalty)))
	}
	return opts
}

// chatAsCompletionStream lets the NDJSON writer treat chat and completion
// streams uniformly: deltas and accumulated text are what goes on the wire.
type chatAsCompletionStream struct {
	src types.ChatStream
}

func (s chatAsCompletionStream) Recv() (types.CompletionResponse, error) {
	cr, err := s.src.Recv()
	if err != nil {
		return types.CompletionResponse{}, err
	}
	return types.CompletionResponse{Delta: cr.Delta, Text: cr.Message.Content, Raw: cr.Raw}, nil
}

func (s chatAsCompletionStream) Close() error { return s.src.Close() }

// handleGeneration runs one generation under the admission gate and writes
// either a blocking JSON response or an NDJSON stream.
func handleGeneration(w http.ResponseWriter, r *http.Request, gen *gate, op string, stream bool,
	run func(ctx context.Context) (any, types.CompletionStream, error)) {

	lvl := requestLogLevel(r)
	start := time.Now()
	rid := middleware.GetReqID(r.Context())
	if lvl >= LevelInfo {
		zlog.Info().Str("op", op).Bool("stream", stream).Str("request_id", rid).Msg("generation start")
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	release, err := gen.acquire(ctx)
	if err != nil {
		finishGeneration(w, r, op, stream, false, start, lvl, err)
		return
	}
	defer release()

	body, st, err := run(ctx)
	if err != nil {
		finishGeneration(w, r, op, stream, false, start, lvl, err)
		return
	}

	if !stream {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			finishGeneration(w, r, op, stream, false, start, lvl, err)
			return
		}
		finishGeneration(w, r, op, stream, false, start, lvl, nil)
		return
	}

	defer st.Close()
	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	enc := json.NewEncoder(w)
	var last types.CompletionResponse
	started := false
	for {
		chunk, rerr := st.Recv()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			finishGeneration(w, r, op, stream, started, start, lvl, rerr)
			return
		}
		started = true
		last = chunk
		if werr := enc.Encode(types.CompleteChunk{Delta: chunk.Delta, Text: chunk.Text}); werr != nil {
			finishGeneration(w, r, op, stream, started, start, lvl, werr)
			return
		}
		streamedChunksTotal.Inc()
		if flush != nil {
			flush()
		}
	}
	_ = enc.Encode(types.DoneLine{Done: true, Text: last.Text})
	if flush != nil {
		flush()
	}
	finishGeneration(w, r, op, stream, started, start, lvl, nil)
}

// finishGeneration maps errors to HTTP statuses (unless the stream already
// started, in which case a trailing NDJSON error line is emitted), records
// metrics, and logs the outcome.
func finishGeneration(w http.ResponseWriter, r *http.Request, op string, stream, started bool,
	start time.Time, lvl LogLevel, err error) {

	observeGeneration(op, stream, err)
	status := http.StatusOK
	if err != nil {
		// Client disconnect or shutdown: nothing sensible left to write.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			logGenerationEnd(op, lvl, 0, start, err)
			return
		}
		status = errorStatus(err)
		if started {
			// Headers are out; append a terminal error line instead.
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: err.Error(), Code: status})
		} else {
			writeJSONError(w, status, err.Error())
		}
	}
	logGenerationEnd(op, lvl, status, start, err)
}

func logGenerationEnd(op string, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	z := zlog.Info().Str("op", op).Int("status", status).Dur("dur", time.Since(start))
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("generation end")
}

// errorStatus maps well-known adapter errors to HTTP status codes.
func errorStatus(err error) int {
	if engine.IsDependencyUnavailable(err) {
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
