// Command propscout-scrape runs one scrape and prints the records as JSON.
//
//	propscout-scrape -url 'https://www.bayut.com/to-rent/villas/dubai/' -max 5 -out results.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/propscout/browser"
	"github.com/use-agent/propscout/config"
	"github.com/use-agent/propscout/models"
	"github.com/use-agent/propscout/scraper"
)

func main() {
	cfg := config.Load()

	searchURL := flag.String("url", cfg.Scraper.DefaultSearchURL, "search results URL")
	maxProps := flag.Int("max", cfg.Scraper.MaxProperties, "number of detail pages to visit")
	backend := flag.String("backend", cfg.Browser.Backend, "page backend: rod or http")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	// stdout carries the JSON, so logs go to stderr.
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	cfg.Browser.Backend = *backend
	if err := run(cfg, *searchURL, *maxProps, *out); err != nil {
		slog.Error("scrape failed", "url", *searchURL, "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, searchURL string, maxProps int, out string) error {
	if err := cfg.Browser.Validate(); err != nil {
		return err
	}
	launcher, err := browser.NewLauncher(cfg.Browser)
	if err != nil {
		return err
	}
	sc, err := scraper.New(launcher, cfg.Scraper)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := sc.Scrape(ctx, searchURL, maxProps)
	if err != nil {
		return err
	}
	slog.Info("scrape complete", "properties", len(records))

	w := io.Writer(os.Stdout)
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeRecords(w, records)
}

// writeRecords encodes records as indented JSON; an empty list is "[]".
func writeRecords(w io.Writer, records []models.PropertyRecord) error {
	if records == nil {
		records = []models.PropertyRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}
