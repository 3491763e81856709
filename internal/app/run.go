package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/db"
	"github.com/avgjoe1017/et-heatmap-v2/internal/ingest"
	"github.com/avgjoe1017/et-heatmap-v2/internal/pipeline"
	"github.com/avgjoe1017/et-heatmap-v2/internal/sentiment"
)

// runDaily executes the daily pipeline. Exit codes: 0 SUCCESS, 2 PARTIAL,
// 1 FAILED, 2 on flag misuse.
func runDaily(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := addEnvFlag(fs)
	windowStartFlag := fs.String("window-start", "", "Window start date (YYYY-MM-DD, operator timezone); defaults to the latest boundary")
	timeout := fs.Duration("timeout", 2*time.Hour, "Overall run timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}

	loc, err := time.LoadLocation(cfg.WindowTimezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timezone: %v\n", err)
		return 1
	}

	var window pipeline.Window
	if *windowStartFlag != "" {
		startDate, err := time.ParseInLocation("2006-01-02", *windowStartFlag, loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -window-start (want YYYY-MM-DD): %v\n", err)
			return 2
		}
		window = pipeline.WindowFrom(startDate, loc, cfg.WindowHour)
	} else {
		window = pipeline.CurrentWindow(time.Now(), loc, cfg.WindowHour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := connect(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	weights, err := loadWeightsOrDefault(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load weights: %v\n", err)
		return 1
	}

	sources, err := buildSources(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure sources: %v\n", err)
		return 1
	}

	scorer := sentiment.NewScorer(ctx, cfg.SentimentModelURL, cfg.RequestTimeout, logger)

	runner := pipeline.NewRunner(pool, weights, sources, scorer, cfg.Workers, logger)
	result, runErr := runner.Execute(ctx, window)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Run %s ended %s: %v\n", result.RunID, result.Status, runErr)
	} else {
		fmt.Printf("run_id=%s status=%s entities=%d mentions=%d\n", result.RunID, result.Status, result.Entities, result.Mentions)
	}

	switch result.Status {
	case db.RunStatusSuccess:
		return 0
	case db.RunStatusPartial:
		return 2
	default:
		return 1
	}
}

func loadWeightsOrDefault(cfg *config.Config, logger zerolog.Logger) (*config.WeightsConfig, error) {
	weights, err := config.LoadWeights(cfg.ConfigDir)
	if err != nil {
		if os.IsNotExist(errors.Unwrap(err)) {
			logger.Info().Str("config_dir", cfg.ConfigDir).Msg("weights.yaml absent, defaults used")
			return config.DefaultWeights(), nil
		}
		return nil, err
	}
	return weights, nil
}

// buildSources assembles the enabled source adapters from sources.yaml.
func buildSources(cfg *config.Config, logger zerolog.Logger) ([]ingest.Source, error) {
	sourcesCfg, err := config.LoadSources(cfg.ConfigDir)
	if err != nil {
		if os.IsNotExist(errors.Unwrap(err)) {
			logger.Warn().Str("config_dir", cfg.ConfigDir).Msg("sources.yaml absent, no sources enabled")
			return nil, nil
		}
		return nil, err
	}

	sources := make([]ingest.Source, 0, 3)

	if sourcesCfg.Sources.Reddit.Enabled {
		subreddits, err := config.LoadTextList(filepath.Join(cfg.ConfigDir, sourcesCfg.Sources.Reddit.SubredditsFile))
		if err != nil {
			return nil, err
		}
		sources = append(sources, ingest.NewRedditSource(sourcesCfg.Sources.Reddit, subreddits, cfg, logger))
	}

	if sourcesCfg.Sources.YouTube.Enabled {
		quota, err := ingest.NewQuotaLedger(filepath.Join(cfg.DataDir, "youtube_quota.json"), cfg.YouTubeDailyQuota)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ingest.NewYouTubeSource(sourcesCfg.Sources.YouTube, cfg, quota, logger))
	}

	if sourcesCfg.Sources.GDELT.Enabled {
		allowlist, err := config.LoadTextList(filepath.Join(cfg.ConfigDir, sourcesCfg.Sources.GDELT.DomainsFile))
		if err != nil {
			return nil, err
		}
		sources = append(sources, ingest.NewGDELTSource(sourcesCfg.Sources.GDELT, allowlist, cfg, logger))
	}

	return sources, nil
}
