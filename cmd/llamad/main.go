package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamad/internal/common/fsutil"
	"llamad/internal/config"
	"llamad/internal/httpapi"
	"llamad/internal/llm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath       string
		addr          string
		modelURL      string
		modelPath     string
		cacheDir      string
		contextWindow int
		maxNewTokens  int
		temperature   float64
		threads       int
		verbose       bool
		logLevel      string
		queueTimeout  time.Duration
		corsEnabled   bool
		corsOrigins   string
	)

	root := &cobra.Command{
		Use:           "llamad",
		Short:         "Serve a local llama.cpp model over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			// Flags win over file values when set explicitly.
			overlay := func(name string, apply func()) {
				if cmd.Flags().Changed(name) {
					apply()
				}
			}
			overlay("addr", func() { cfg.Addr = addr })
			overlay("model-url", func() { cfg.ModelURL = modelURL })
			overlay("model-path", func() { cfg.ModelPath = modelPath })
			overlay("cache-dir", func() { cfg.CacheDir = cacheDir })
			overlay("context-window", func() { cfg.ContextWindow = contextWindow })
			overlay("max-new-tokens", func() { cfg.MaxNewTokens = maxNewTokens })
			overlay("temperature", func() { cfg.Temperature = temperature })
			overlay("threads", func() { cfg.Threads = threads })
			overlay("verbose", func() { cfg.Verbose = verbose })
			overlay("log-level", func() { cfg.LogLevel = logLevel })
			overlay("queue-timeout", func() { cfg.QueueTimeout = queueTimeout.String() })
			overlay("cors", func() { cfg.CORSEnabled = corsEnabled })
			overlay("cors-origins", func() { cfg.CORSOrigins = splitCSV(corsOrigins) })
			if cfg.Addr == "" {
				cfg.Addr = addr
			}
			return run(cmd.Context(), cfg)
		},
	}

	defaultAddr := ":8080"
	if v := os.Getenv("LLAMAD_ADDR"); v != "" {
		defaultAddr = v
	}
	defaultLogLevel := "info"
	if v := os.Getenv("LLAMAD_LOG_LEVEL"); v != "" {
		defaultLogLevel = v
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "Path to config file (.yaml/.json/.toml)")
	f.StringVar(&addr, "addr", defaultAddr, "HTTP listen address, e.g. :8080")
	f.StringVar(&modelURL, "model-url", "", "Model artifact URL to download when no local path is given")
	f.StringVar(&modelPath, "model-path", "", "Explicit local model path (must exist)")
	f.StringVar(&cacheDir, "cache-dir", "", "Cache root for downloaded artifacts (default: OS user cache dir)")
	f.IntVar(&contextWindow, "context-window", 0, "Model context window in tokens")
	f.IntVar(&maxNewTokens, "max-new-tokens", 0, "Maximum new tokens per generation")
	f.Float64Var(&temperature, "temperature", 0, "Default sampling temperature")
	f.IntVar(&threads, "threads", 0, "Generation threads (0 = backend default)")
	f.BoolVar(&verbose, "verbose", false, "Enable backend-native logging")
	f.StringVar(&logLevel, "log-level", defaultLogLevel, "Log level: debug|info|warn|error")
	f.DurationVar(&queueTimeout, "queue-timeout", 0, "Max wait for the generation slot before 429")
	f.BoolVar(&corsEnabled, "cors", false, "Enable CORS middleware")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")

	return root
}

func run(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg.LogLevel)
	httpapi.SetLogger(log)

	if cfg.QueueTimeout != "" {
		d, err := time.ParseDuration(cfg.QueueTimeout)
		if err != nil {
			log.Warn().Str("queue_timeout", cfg.QueueTimeout).Msg("invalid queue timeout, using default")
		} else {
			httpapi.SetQueueTimeout(d)
		}
	}
	if cfg.CORSEnabled {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins,
			[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	// Shutdown context: canceled on SIGINT/SIGTERM, propagated into handlers.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	adapter, err := llm.New(ctx, llm.Config{
		ModelURL:      cfg.ModelURL,
		ModelPath:     cfg.ModelPath,
		CacheDir:      cfg.CacheDir,
		Temperature:   cfg.Temperature,
		MaxNewTokens:  cfg.MaxNewTokens,
		ContextWindow: cfg.ContextWindow,
		Threads:       cfg.Threads,
		Verbose:       cfg.Verbose,
		Log:           log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to construct model adapter")
		return err
	}
	defer func() {
		if cerr := adapter.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("engine close")
		}
	}()

	cacheRoot, err := fsutil.CacheRoot(cfg.CacheDir, "llamad")
	if err != nil {
		return err
	}
	modelsDir := filepath.Dir(adapter.Metadata().ModelName)
	if cfg.ModelPath == "" {
		modelsDir = filepath.Join(cacheRoot, "models")
	}

	mux := httpapi.NewMux(adapter, modelsDir)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", adapter.Metadata().ModelName).Msg("llamad listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma-separated flag value, trimming blanks.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
