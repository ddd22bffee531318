package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/api"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/listen"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/site"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/swagger"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/repository"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/speech"
	app "github.com/dazdaz/chirp-demo-enhanced/internal/app"
	"github.com/dazdaz/chirp-demo-enhanced/internal/config"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout         = 5 * time.Second
	idleTimeout               = 60 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := config.LoadDotEnv(); err != nil {
		os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
		return
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, loggerInstance),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// buildService opens the high-score store and the speech backends and
// assembles the service. Missing Google credentials leave the speech
// backends unset rather than failing.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	kv, err := repository.OpenSQLiteKV(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithKV(kv),
		app.WithProject(cfg.ProjectID, cfg.Location),
		app.WithHighScoreLimit(cfg.HighScoreLimit),
		app.WithDedupeSize(cfg.DedupeSize),
	}

	if !cfg.SpeechEnabled() {
		log.Warn(ctx, "google_api_key is not set; speech, TTS and translation are disabled")
		return app.New(opts...), nil
	}

	gc := speech.GoogleConfig{
		APIKey:       cfg.GoogleAPIKey,
		SpeechURL:    cfg.SpeechURL,
		TTSURL:       cfg.TTSURL,
		TranslateURL: cfg.TranslateURL,
		Model:        cfg.SpeechModel,
		Timeout:      cfg.RequestTimeout,
		VAD:          vadConfig(cfg),
	}

	rec, err := speech.NewGoogleRecognizer(gc)
	if err != nil {
		return nil, err
	}
	tr, err := speech.NewGoogleTranslator(gc)
	if err != nil {
		return nil, err
	}
	gsyn, err := speech.NewGoogleSynthesizer(gc)
	if err != nil {
		return nil, err
	}

	var syn speech.Synthesizer = gsyn
	if cfg.TTSCacheDir != "" {
		cached, err := speech.NewCachedSynthesizer(gsyn, cfg.TTSCacheDir,
			speech.WithMaxTextChars(cfg.TTSMaxChars),
			speech.WithBackendTimeout(cfg.RequestTimeout),
		)
		if err != nil {
			log.Warn(ctx, "tts cache disabled", logger.String("dir", cfg.TTSCacheDir), logger.Error(err))
		} else {
			syn = cached
			opts = append(opts, app.WithTTSPrewarm(cfg.TTSPrewarm, cfg.TTSPrewarmWorkers))
		}
	}

	opts = append(opts,
		app.WithRecognizer(rec),
		app.WithSynthesizer(syn),
		app.WithTranslator(tr),
	)
	return app.New(opts...), nil
}

// newMux registers every route: API, live transcription, docs and the
// static page.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Register ReDoc under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	api.NewServer(svc, svc, api.WithCORSOrigins(cfg.CORSOrigins)).Register(mux)

	listen.New(svc.Recognizer(),
		listen.WithQueueSize(cfg.AudioQueueSize),
		listen.WithLogger(log.Named("listen")),
	).Register(mux)

	site.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func vadConfig(cfg *config.Config) speech.VADConfig {
	vad := speech.DefaultVADConfig()
	vad.EnergyThreshold = cfg.VADEnergyThreshold
	vad.SilenceMinDurMs = cfg.VADSilenceMs
	return vad
}
