// Command voxtela is the multi-engine Telegram text-to-speech bot service.
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

	"github.com/voxtela/voxtela/internal/bot"
	"github.com/voxtela/voxtela/internal/cache"
	"github.com/voxtela/voxtela/internal/config"
	"github.com/voxtela/voxtela/internal/engine"
	"github.com/voxtela/voxtela/internal/engine/edge"
	"github.com/voxtela/voxtela/internal/engine/gtts"
	openaiengine "github.com/voxtela/voxtela/internal/engine/openai"
	"github.com/voxtela/voxtela/internal/engine/piper"
	"github.com/voxtela/voxtela/internal/health"
	"github.com/voxtela/voxtela/internal/observe"
	"github.com/voxtela/voxtela/internal/ratelimit"
	"github.com/voxtela/voxtela/internal/router"
	"github.com/voxtela/voxtela/internal/telegram"
	"github.com/voxtela/voxtela/internal/telegram/factory"
)

// version is stamped by the build.
var version = "dev"

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
			fmt.Fprintf(os.Stderr, "voxtela: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxtela: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("voxtela starting",
		"config", *configPath,
		"adapter", cfg.Telegram.Adapter,
		"listen_addr", cfg.Server.ListenAddr,
	)

	// ── Metrics ───────────────────────────────────────────────────────────────
	meterProvider, shutdownMetrics, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    "voxtela",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	metrics, err := observe.NewMetrics(meterProvider)
	if err != nil {
		slog.Error("failed to create metric instruments", "err", err)
		return 1
	}

	// ── Engines + registry ────────────────────────────────────────────────────
	registry := engine.NewRegistry()
	if err := registerEngines(registry, cfg); err != nil {
		slog.Error("failed to build engines", "err", err)
		return 1
	}
	installPolicies(registry, cfg)
	slog.Info("engines ready", "installed", registry.Names())

	// ── Core subsystems ───────────────────────────────────────────────────────
	audioCache, err := cache.New(cfg.Cache.Dir,
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithMaxAge(time.Duration(cfg.Cache.MaxAgeSecs)*time.Second),
	)
	if err != nil {
		slog.Error("failed to open cache", "err", err)
		return 1
	}
	smartRouter := router.New(registry)
	gate := ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	// ── Transport adapter ─────────────────────────────────────────────────────
	adapter, err := factory.New(cfg.Telegram.Adapter, telegram.Config{
		Token:      cfg.Telegram.Token,
		APIID:      cfg.Telegram.APIID,
		APIHash:    cfg.Telegram.APIHash,
		SessionDir: cfg.Telegram.SessionDir,
	})
	if err != nil {
		slog.Error("failed to build adapter", "err", err)
		return 1
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	b := bot.New(adapter, registry, smartRouter, audioCache, gate, bot.Options{
		DefaultLang:     cfg.Bot.DefaultLang,
		SudoUsers:       cfg.Bot.SudoUsers,
		CacheEnabled:    boolOr(cfg.Bot.CacheEnabled, true),
		AudioProcessing: boolOr(cfg.Bot.AudioProcessing, true),
		Metrics:         metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Health + metrics endpoint ─────────────────────────────────────────────
	var httpServer *http.Server
	if cfg.Server.ListenAddr != "" {
		httpServer = newHTTPServer(cfg.Server.ListenAddr, registry)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server", "err", err)
			}
		}()
	}

	slog.Info("bot ready — press Ctrl+C to shut down")
	runErr := b.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down…")
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("metrics shutdown", "err", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// registerEngines installs every engine enabled in the config.
func registerEngines(registry *engine.Registry, cfg *config.Config) error {
	if c := cfg.Engines.GTTS; c != nil {
		var opts []gtts.Option
		if c.TimeoutSecs > 0 {
			opts = append(opts, gtts.WithTimeout(time.Duration(c.TimeoutSecs)*time.Second))
		}
		if err := registry.Register(gtts.New(opts...)); err != nil {
			return err
		}
	}
	if c := cfg.Engines.Edge; c != nil {
		var opts []edge.Option
		if c.TimeoutSecs > 0 {
			opts = append(opts, edge.WithTimeout(time.Duration(c.TimeoutSecs)*time.Second))
		}
		if err := registry.Register(edge.New(opts...)); err != nil {
			return err
		}
	}
	if c := cfg.Engines.Piper; c != nil {
		var opts []piper.Option
		if c.BaseURL != "" {
			opts = append(opts, piper.WithBaseURL(c.BaseURL))
		}
		if len(c.Languages) > 0 {
			opts = append(opts, piper.WithLanguages(c.Languages...))
		}
		if len(c.Voices) > 0 {
			opts = append(opts, piper.WithVoices(c.Voices...))
		}
		if err := registry.Register(piper.New(opts...)); err != nil {
			return err
		}
	}
	if c := cfg.Engines.OpenAI; c != nil {
		var opts []openaiengine.Option
		if c.Model != "" {
			opts = append(opts, openaiengine.WithModel(c.Model))
		}
		eng, err := openaiengine.New(c.APIKey, opts...)
		if err != nil {
			return err
		}
		if err := registry.Register(eng); err != nil {
			return err
		}
	}
	return nil
}

// defaultPolicies is the built-in per-language preference order, merged under
// any user overrides from the config.
var defaultPolicies = map[string][]string{
	"en": {"edge", "openai", "gtts", "piper"},
	"fa": {"edge", "piper", "gtts"},
	"ar": {"edge", "gtts"},
}

// installPolicies merges user policies over the defaults.
func installPolicies(registry *engine.Registry, cfg *config.Config) {
	for lang, names := range defaultPolicies {
		registry.SetPolicy(lang, names)
	}
	for lang, names := range cfg.Policies {
		registry.SetPolicy(lang, names)
	}
	registry.SetDefaultPolicy([]string{"edge", "gtts", "openai", "piper"})
}

// newHTTPServer serves /healthz, /readyz, and the Prometheus /metrics scrape.
func newHTTPServer(addr string, registry *engine.Registry) *http.Server {
	mux := http.NewServeMux()
	health.New(health.Probe{
		Name: "engines",
		Check: func(context.Context) error {
			if len(registry.Names()) == 0 {
				return errors.New("no engines installed")
			}
			return nil
		},
	}).Register(mux)
	mux.Handle("/metrics", observe.MetricsHandler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
