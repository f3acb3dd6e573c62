package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/propscout/api"
	"github.com/use-agent/propscout/api/handler"
	"github.com/use-agent/propscout/browser"
	"github.com/use-agent/propscout/cache"
	"github.com/use-agent/propscout/config"
	"github.com/use-agent/propscout/llm"
	"github.com/use-agent/propscout/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	slog.SetDefault(cfg.Log.NewLogger(os.Stdout))
	slog.Info("propscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"backend", cfg.Browser.Backend,
		"maxProperties", cfg.Scraper.MaxProperties,
	)

	if err := cfg.Browser.Validate(); err != nil {
		slog.Error("invalid browser configuration", "error", err)
		os.Exit(1)
	}

	// ── 3. Initialise scraper ───────────────────────────────────────
	// Browsers are launched per request, so nothing is started here.
	launcher, err := browser.NewLauncher(cfg.Browser)
	if err != nil {
		slog.Error("failed to initialise browser launcher", "error", err)
		os.Exit(1)
	}
	sc, err := scraper.New(launcher, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}

	// ── 4. Initialise cache and LLM client ─────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()

	var qa handler.QueryAssistant
	if cfg.LLM.Enabled() {
		qa = llm.NewClient(cfg.LLM, nil)
		slog.Info("LLM endpoints enabled", "model", cfg.LLM.Model)
	} else {
		slog.Warn("OPENAI_API_KEY not set, parse-query and summarize are disabled")
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(sc, qa, cfg, cc, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete. Each in-flight scrape
	// closes its own browser when its request context ends.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("propscout stopped")
}
