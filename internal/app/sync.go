package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/avgjoe1017/et-heatmap-v2/internal/catalog"
)

func runSyncCatalog(args []string) int {
	fs := flag.NewFlagSet("sync-catalog", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := addEnvFlag(fs)
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := connect(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	count, err := catalog.SyncPinned(ctx, pool, cfg.ConfigDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog sync failed: %v\n", err)
		return 1
	}

	logger.Info().Int("entities", count).Msg("pinned catalog synced")
	fmt.Printf("entities_synced=%d\n", count)
	return 0
}
