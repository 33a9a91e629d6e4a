package main

import (
	"github.com/spf13/cobra"

	"walkpack/internal/database"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the database now and prune expired snapshots",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, _ []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	svc := database.NewBackupService(store, cfg.Backup, nil)
	path, err := svc.PerformBackup(cmd.Context())
	if err != nil {
		return err
	}
	removed := svc.CleanupOldBackups()

	cmd.Printf("Backup written to %s (%d expired removed)\n", path, removed)
	return nil
}
