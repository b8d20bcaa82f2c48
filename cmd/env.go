package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/batch"
	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/match"
	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/monitoring"
	"github.com/sells-group/candidate-cli/internal/registry"
	"github.com/sells-group/candidate-cli/internal/resilience"
	"github.com/sells-group/candidate-cli/internal/store"
	"github.com/sells-group/candidate-cli/pkg/extract"
)

// initRegistry builds the taxonomy snapshot from the configured document,
// taking cities from Postgres when a database URL is set.
func initRegistry(ctx context.Context) (*registry.Registry, error) {
	doc := registry.Builtin()
	if cfg.Taxonomy.Path != "" {
		d, err := registry.LoadFile(cfg.Taxonomy.Path)
		if err != nil {
			return nil, err
		}
		doc = d
	}

	var opts []registry.Option
	if cfg.Taxonomy.DatabaseURL != "" {
		pg, err := store.NewPostgresTaxonomy(ctx, cfg.Taxonomy.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect taxonomy database")
		}
		defer pg.Close()
		opts = append(opts, registry.WithCitySource(pg))
	}

	reg, err := registry.Build(ctx, doc, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "build taxonomy")
	}
	zap.L().Info("taxonomy loaded",
		zap.String("version", reg.Version()),
		zap.Int("roles", len(reg.Terms(model.CategoryRole))),
		zap.Int("skills", len(reg.Terms(model.CategorySkill))),
		zap.Int("cities", len(reg.Cities())),
		zap.Int("states", reg.States()),
	)
	return reg, nil
}

// initMatcher builds the registry and a matcher reporting to obs.
func initMatcher(ctx context.Context, obs match.Observer) (*match.Matcher, error) {
	reg, err := initRegistry(ctx)
	if err != nil {
		return nil, err
	}
	var opts []match.Option
	if obs != nil {
		opts = append(opts, match.WithObserver(obs))
	}
	return match.New(reg, opts...), nil
}

// initJournal opens and migrates the batch journal. Callers should defer
// Close.
func initJournal(ctx context.Context) (*store.SQLiteJournal, error) {
	path := cfg.Batch.JournalPath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "create journal dir")
		}
	}
	j, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, eris.Wrap(err, "migrate journal")
	}
	return j, nil
}

func initFetcher() fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RatePerSec: cfg.Fetch.RatePerSec,
	})
}

func initExtractor() extract.Client {
	return extract.NewClient(cfg.Extractor.Key,
		extract.WithBaseURL(cfg.Extractor.BaseURL),
		extract.WithTimeout(time.Duration(cfg.Extractor.TimeoutSecs)*time.Second),
	)
}

func initBreaker() *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:      "extractor",
		Threshold: cfg.Extractor.BreakerThreshold,
		Cooldown:  time.Duration(cfg.Extractor.BreakerCooldownSecs) * time.Second,
	})
}

// batchConfig merges flag overrides into the configured orchestrator
// settings. Empty or zero overrides keep the configured value.
func batchConfig(inputDir, outputDir, batchDir string, size int) batch.Config {
	bc := batch.Config{
		InputDir:  cfg.Batch.InputDir,
		OutputDir: cfg.Batch.OutputDir,
		BatchDir:  cfg.Batch.BatchDir,
		Size:      cfg.Batch.Size,
		Fetch: batch.MaterializeOptions{
			Concurrency: cfg.Fetch.Concurrency,
			Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		},
		Retry: resilience.FromSettings(cfg.Extractor.MaxAttempts, cfg.Extractor.InitialBackoffMs, 0),
	}
	if inputDir != "" {
		bc.InputDir = inputDir
	}
	if outputDir != "" {
		bc.OutputDir = outputDir
	}
	if batchDir != "" {
		bc.BatchDir = batchDir
	}
	if size > 0 {
		bc.Size = size
	}
	return bc
}

// finishMetrics exports the run's counters and raises threshold alerts.
func finishMetrics(ctx context.Context, m *monitoring.Metrics) {
	if path := cfg.Monitoring.TextfilePath; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			zap.L().Warn("write metrics textfile", zap.Error(err))
		}
	}

	snap, err := monitoring.Collect(m.Gatherer())
	if err != nil {
		zap.L().Warn("collect metrics", zap.Error(err))
		return
	}
	alerter := monitoring.NewAlerter(cfg.Monitoring)
	alerts := alerter.Evaluate(snap)
	for _, a := range alerts {
		zap.L().Warn("alert", zap.String("type", string(a.Type)), zap.String("message", a.Message))
	}
	alerter.SendAlerts(ctx, alerts)
}
