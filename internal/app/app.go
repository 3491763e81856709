package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "run":
		return runDaily(args[1:])
	case "baseline":
		return runBaseline(args[1:])
	case "sync-catalog":
		return runSyncCatalog(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "heatmap CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  heatmap <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health        Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  run           Execute the daily pipeline for one window")
	fmt.Fprintln(os.Stderr, "  baseline      Compute the weekly baseline fame for all entities")
	fmt.Fprintln(os.Stderr, "  sync-catalog  Upsert pinned entities and aliases into the store")
	fmt.Fprintln(os.Stderr, "  serve         Start the run-status HTTP server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"heatmap <command> -h\" for command-specific flags.")
}
