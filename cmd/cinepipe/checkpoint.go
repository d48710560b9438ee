package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cinepipe/pkg/checkpoint"
	"cinepipe/pkg/config"
	"cinepipe/pkg/models"
)

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and manage wrap checkpoints",
	Long: `Inspect and manage the per-collection checkpoints the link processor
uses to resume interrupted batch runs.`,
}

// checkpointStatusCmd represents the checkpoint status command
var checkpointStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint state for every collection",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointStatus,
}

// checkpointResetCmd represents the checkpoint reset command
var checkpointResetCmd = &cobra.Command{
	Use:   "reset [collection]",
	Short: "Delete checkpoints, forcing the next run to rescan",
	Long: `Delete the checkpoint of one collection, or of every collection when
no name is given. The next wrap pass rescans from the start; rows that
already carry a wrapped link are skipped, so a reset is safe and only
costs scan time.`,
	Example: `  # Reset everything
  cinepipe checkpoint reset

  # Reset one collection
  cinepipe checkpoint reset Movies`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckpointReset,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointStatusCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
}

func openCheckpointManager() (*checkpoint.Manager, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return checkpoint.NewManager(cfg.Store.CheckpointDir)
}

func runCheckpointStatus(cmd *cobra.Command, args []string) error {
	manager, err := openCheckpointManager()
	if err != nil {
		return err
	}

	fmt.Printf("Checkpoint directory: %s\n\n", manager.Dir())

	for _, name := range models.DefaultCollections() {
		record, err := manager.Load(name)
		if err != nil {
			fmt.Printf("%-14s corrupt: %v\n", name, err)
			continue
		}
		if record == nil {
			fmt.Printf("%-14s no checkpoint\n", name)
			continue
		}
		fmt.Printf("%-14s offset %d of %d rows, updated %s\n",
			name, record.Offset, record.RowCount,
			record.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	snapshot := manager.LoadSnapshot()
	if len(snapshot) > 0 {
		fmt.Println("\nLast row-count snapshot:")
		for _, name := range models.DefaultCollections() {
			if count, ok := snapshot[name]; ok {
				fmt.Printf("  %-14s %d\n", name, count)
			}
		}
	}
	return nil
}

func runCheckpointReset(cmd *cobra.Command, args []string) error {
	manager, err := openCheckpointManager()
	if err != nil {
		return err
	}

	targets := models.DefaultCollections()
	if len(args) == 1 {
		targets = []string{args[0]}
	}

	for _, name := range targets {
		if !manager.Exists(name) {
			continue
		}
		if err := manager.Reset(name); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to reset %s: %v\n", name, err)
			continue
		}
		fmt.Printf("Reset checkpoint: %s\n", name)
	}
	return nil
}
