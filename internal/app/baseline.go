package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/avgjoe1017/et-heatmap-v2/internal/baseline"
)

func runBaseline(args []string) int {
	fs := flag.NewFlagSet("baseline", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := addEnvFlag(fs)
	weekStartFlag := fs.String("week-start", "", "Week start date (YYYY-MM-DD, UTC); defaults to the current ISO week's Monday")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")

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

	weekStart := mondayOfCurrentWeek(time.Now().UTC())
	if *weekStartFlag != "" {
		parsed, err := time.Parse("2006-01-02", *weekStartFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -week-start (want YYYY-MM-DD): %v\n", err)
			return 2
		}
		weekStart = parsed.UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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

	var trends baseline.TrendsClient
	if cfg.TrendsProxyURL != "" {
		trends = baseline.NewHTTPTrendsClient(cfg.TrendsProxyURL, cfg.RequestTimeout)
	}
	pageviews := baseline.NewWikimediaPageviewsClient(cfg.RequestTimeout)

	job := baseline.NewJob(pool, weights, trends, pageviews, logger)
	written, err := job.Run(ctx, weekStart)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Baseline job failed: %v\n", err)
		return 1
	}

	fmt.Printf("baselines_written=%d week_start=%s\n", written, weekStart.Format("2006-01-02"))
	return 0
}

func mondayOfCurrentWeek(now time.Time) time.Time {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := now.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}
