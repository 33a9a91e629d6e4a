package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"walkpack/internal/audit"
)

var (
	exportWalkerID string
	exportOutDir   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write walk blocks and bookings to an xlsx workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportWalkerID, "walker", "", "only export this walker's rows")
	exportCmd.Flags().StringVar(&exportOutDir, "out", ".", "output directory")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := os.MkdirAll(exportOutDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(exportOutDir, audit.Filename(time.Now(), exportWalkerID))
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	exporter := audit.NewExporter(store, zerolog.Nop())
	if err := exporter.Export(cmd.Context(), f, exportWalkerID); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("export failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	cmd.Printf("Wrote %s\n", path)
	return nil
}
