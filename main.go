package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"yelp-scraper/config"
	"yelp-scraper/models"
	"yelp-scraper/scraper/fetch"
	"yelp-scraper/scraper/yelp"
	"yelp-scraper/services"
	"yelp-scraper/storage"
	"yelp-scraper/utils"
)

func main() {
	noDatabase := flag.Bool("no-database", false, "do not read or write PostgreSQL")
	noCSV := flag.Bool("no-csv", false, "do not write the CSV export")
	flag.Parse()

	cfg := config.Load()
	cfg.NoDatabase = cfg.NoDatabase || *noDatabase
	cfg.NoCSV = cfg.NoCSV || *noCSV

	logger := utils.NewLogger().WithLevel(utils.ParseLevel(cfg.LogLevel))

	logger.Info("=== Yelp Scraping System starting ===")
	logger.Info("Config: search %s %v | retries: %d | database: %v | csv: %v",
		cfg.SearchURL(), cfg.SearchParams, cfg.MaxRetries, !cfg.NoDatabase, !cfg.NoCSV)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = fetch.FindChromeBinary()
	}
	logger.Info("Using browser binary: %q", chromeBin)

	stealth := fetch.NewStealthStrategy(chromeBin, cfg.UserAgent, cfg.StealthTimeout)
	defer stealth.Close()
	browser := fetch.NewBrowserStrategy(chromeBin, cfg.UserAgent, cfg.BrowserTimeout)
	defer browser.Close()
	plain := fetch.NewHTTPStrategy(cfg.HTTPTimeout, cfg.UserAgent)

	strategies := []fetch.Strategy{stealth, browser, plain}

	backoff := utils.DefaultBackoff()
	backoff.Base = cfg.BackoffBase
	backoff.Cap = cfg.BackoffCap
	cascade := fetch.NewCascade(logger, strategies,
		fetch.WithMaxRetries(cfg.MaxRetries),
		fetch.WithBackoff(backoff),
		fetch.WithStrategyJitter(cfg.StrategyJitterMin, cfg.StrategyJitterMax),
	)

	var store storage.Store
	switch {
	case !cfg.NoDatabase:
		pg, err := storage.NewPostgresStore(cfg.DSN(), cfg.TableName(), logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			os.Exit(1)
		}
		store = pg
	case cfg.RedisAddr != "":
		idx, err := storage.NewRedisIndex(ctx, cfg.RedisAddr, cfg.TableName())
		if err != nil {
			logger.Warn("Redis index unavailable, every listing will be scraped: %v", err)
		} else {
			logger.Info("Using Redis index at %s for known listings", cfg.RedisAddr)
			store = idx
		}
	}
	if store != nil {
		defer store.Close()
	}

	normalizer := services.NewNormalizer(logger)
	scraper := yelp.New(cfg, cascade, normalizer, store, logger)

	start := time.Now()
	result, err := scraper.Scrape(ctx)
	if err != nil {
		logger.Error("Yelp scrape stopped: %v", err)
	}
	if result == nil {
		result = &yelp.Result{}
	}
	logger.Info("Scraped %d records in %v (%d failed links)",
		len(result.Records), time.Since(start).Round(time.Second), len(result.FailedURLs))

	for name, st := range cascade.Stats() {
		logger.Info("[fetch] %-8s attempts=%d successes=%d failures=%d",
			name, st.Attempts, st.Successes, st.Failures)
	}

	csvPath := cfg.CSVPath(time.Now())
	if !cfg.NoCSV && len(result.Records) > 0 {
		if err := writeCSV(csvPath, result.Records); err != nil {
			logger.Error("CSV write failed: %v", err)
		} else {
			logger.Info("Records saved to %s", csvPath)
		}
	}

	insightSvc := services.NewInsightService(logger)
	report := insightSvc.Generate(result.Records)
	insightSvc.Print(report)

	fmt.Printf("  Done. CSV → %s | database: %v\n\n", csvPath, !cfg.NoDatabase)
}

func writeCSV(path string, records []models.NormalizedRecord) error {
	csvWriter, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	return export(csvWriter, records)
}

func export(w storage.RecordWriter, records []models.NormalizedRecord) error {
	if err := w.Write(records); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
