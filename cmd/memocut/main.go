// Command memocut is the voice-memo editing server. It serves the memo
// library over HTTP and keeps recordings, silence analysis results, and
// per-memo settings in a local SQLite catalog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memocut/memocut/internal/catalog"
	"github.com/memocut/memocut/internal/config"
	"github.com/memocut/memocut/internal/health"
	"github.com/memocut/memocut/internal/library"
	"github.com/memocut/memocut/internal/observe"
	"github.com/memocut/memocut/internal/server"
	"github.com/memocut/memocut/pkg/audio"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "memocut: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "memocut: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("memocut starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"data_dir", cfg.Library.DataDir,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "memocut",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Storage ───────────────────────────────────────────────────────────────
	if err := os.MkdirAll(cfg.Library.DataDir, 0o755); err != nil {
		slog.Error("failed to create data directory", "dir", cfg.Library.DataDir, "err", err)
		return 1
	}

	store, err := catalog.Open(cfg.Library.DatabasePath)
	if err != nil {
		slog.Error("failed to open catalog", "path", cfg.Library.DatabasePath, "err", err)
		return 1
	}
	defer store.Close()

	// ── Library ───────────────────────────────────────────────────────────────
	manager := library.NewManager(store, library.Options{
		DataDir: cfg.Library.DataDir,
		Canonical: audio.Format{
			SampleRate: cfg.Library.CanonicalSampleRate,
			Channels:   cfg.Library.CanonicalChannels,
		},
		AnalysisWorkers: cfg.Library.AnalysisWorkers,
		Defaults:        cfg.SkipSilence,
		EditPadding:     cfg.Library.EditPadding,
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if !diff.Changed() {
			return
		}
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "log_level", diff.NewLogLevel)
		}
		if diff.SkipSilenceChanged || diff.EditPaddingChanged {
			manager.UpdateDefaults(new.SkipSilence, new.Library.EditPadding)
			slog.Info("silence defaults updated",
				"threshold_db", new.SkipSilence.ThresholdDB,
				"auto_threshold", new.SkipSilence.AutoThreshold,
				"edit_padding", new.Library.EditPadding)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := server.New(manager, store,
		health.DataDir(cfg.Library.DataDir),
		health.Catalog(store),
	)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("http server error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         memocut — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Printf("║  Data dir        : %-19s ║\n", truncate(cfg.Library.DataDir))
	fmt.Printf("║  Catalog         : %-19s ║\n", truncate(cfg.Library.DatabasePath))
	fmt.Printf("║  Canonical format: %-19s ║\n",
		fmt.Sprintf("%d Hz / %dch", cfg.Library.CanonicalSampleRate, cfg.Library.CanonicalChannels))
	if cfg.SkipSilence.AutoThreshold {
		fmt.Printf("║  Threshold       : %-19s ║\n", "auto")
	} else {
		fmt.Printf("║  Threshold       : %-19s ║\n", fmt.Sprintf("%.0f dB", cfg.SkipSilence.ThresholdDB))
	}
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS             : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  TLS             : %-19s ║\n", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func truncate(s string) string {
	if len(s) > 19 {
		return "…" + s[len(s)-16:]
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
