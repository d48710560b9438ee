package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cinepipe/pkg/auth"
	"cinepipe/pkg/checkpoint"
	"cinepipe/pkg/config"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/pipeline"
	"cinepipe/pkg/store"
	"cinepipe/pkg/tmdb"
	"cinepipe/pkg/wrap"
)

var (
	// Run command flags
	runOnce       bool
	runInterval   time.Duration
	noFetch       bool
	skipWrap      bool
	forceWrap     bool
	batchSize     int
	workbookPath  string
	checkpointDir string
	wrapAccount   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the catalog pipeline",
	Long: `Run the full catalog pipeline: fetch listings from TMDB, detect new
rows, and wrap the links of every collection that grew.

By default the pipeline runs forever, sleeping between cycles. Use --once
for a single cycle, which is the right mode for cron or systemd timers.

Credentials are resolved in order from stored credentials ('cinepipe auth
login'), environment variables (TMDB_API_KEY, TMDB_READ_TOKEN), or the
config file.`,
	Example: `  # Run forever with the default 12 hour interval
  cinepipe run

  # Single cycle, suitable for cron
  cinepipe run --once

  # Re-wrap everything even if no collection grew
  cinepipe run --once --force-wrap

  # Wrap pending rows without hitting TMDB
  cinepipe run --once --no-fetch`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle and exit")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "time between cycles (default 12h)")
	runCmd.Flags().BoolVar(&noFetch, "no-fetch", false, "skip the fetch step, wrap pending rows only")
	runCmd.Flags().BoolVar(&skipWrap, "skip-wrap", false, "skip the wrap step, fetch and snapshot only")
	runCmd.Flags().BoolVar(&forceWrap, "force-wrap", false, "wrap all collections even without new rows")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per checkpoint batch (default 500)")
	runCmd.Flags().StringVar(&workbookPath, "workbook", "", "path to the catalog workbook")
	runCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "directory for checkpoint files")
	runCmd.Flags().StringVar(&wrapAccount, "wrap-account", "", "link-wrapping service account ID")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.InfoWithFields("cinepipe starting", map[string]interface{}{
		"version":  version,
		"interval": cfg.Pipeline.Interval.String(),
		"once":     runOnce,
	})

	if err := resolveCredentials(cfg, log); err != nil {
		return err
	}

	fetcher := tmdb.NewClient(cfg.TMDB, log)
	wrapper := wrap.NewClient(cfg.Wrap, log)
	rowStore := store.New(cfg.Store.WorkbookPath)

	checkpoints, err := checkpoint.NewManager(cfg.Store.CheckpointDir)
	if err != nil {
		return fmt.Errorf("failed to initialize checkpoint store: %w", err)
	}

	processor := pipeline.NewProcessor(rowStore, checkpoints, wrapper, cfg.Pipeline, log)
	scheduler := pipeline.NewScheduler(fetcher, rowStore, checkpoints, processor, cfg.Pipeline.Interval, pipeline.Options{
		SkipFetch: noFetch,
		SkipWrap:  skipWrap,
		ForceWrap: forceWrap,
	}, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runOnce {
		if err := scheduler.RunOnce(ctx); err != nil {
			log.WithError(err).Error("cycle failed")
			return err
		}
		log.Info("cycle completed")
		return nil
	}

	if err := scheduler.Run(ctx); err != nil {
		return err
	}
	log.Info("cinepipe stopped")
	return nil
}

// loadRunConfig loads configuration with run command flags applied
func loadRunConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if runInterval > 0 {
		flags["interval"] = runInterval
	}
	if batchSize > 0 {
		flags["batch-size"] = batchSize
	}
	if workbookPath != "" {
		flags["workbook"] = workbookPath
	}
	if checkpointDir != "" {
		flags["checkpoint-dir"] = checkpointDir
	}
	if wrapAccount != "" {
		flags["wrap-account"] = wrapAccount
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// resolveCredentials fills in TMDB credentials from the credential manager
// when the config and environment did not provide them
func resolveCredentials(cfg *config.Config, log logger.Logger) error {
	if cfg.TMDB.APIKey != "" || cfg.TMDB.ReadToken != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.Retrieve()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No TMDB credentials found.")
		fmt.Fprintln(os.Stderr, "\nTo store credentials securely, run:")
		fmt.Fprintln(os.Stderr, "  cinepipe auth login")
		fmt.Fprintln(os.Stderr, "\nOr set environment variables:")
		fmt.Fprintln(os.Stderr, "  export TMDB_READ_TOKEN=your_v4_read_token")
		return fmt.Errorf("no TMDB credentials available")
	}

	cfg.TMDB.APIKey = creds.APIKey
	cfg.TMDB.ReadToken = creds.ReadToken
	log.Info("using stored TMDB credentials")
	return nil
}
