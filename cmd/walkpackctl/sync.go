package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"walkpack/internal/config"
)

var syncDirectoryPath string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load directory.yaml into the database",
	Long: `Upserts walkers, dogs and walk blocks from the directory file.
Existing walk blocks keep their capacity and walker so approved bookings stay valid.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncDirectoryPath, "directory", "", "directory file (defaults to directory.path from config)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	path := syncDirectoryPath
	if path == "" {
		path = cfg.Directory.Path
	}
	dir, err := config.LoadDirectory(path)
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	if err := store.SyncDirectory(cmd.Context(), dir); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Printf("Synced %s\n", dir)
	return nil
}
