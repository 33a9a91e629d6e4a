package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"walkpack/internal/config"
	"walkpack/internal/db"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "walkpackctl",
	Short:         "Operate the walkpack booking store",
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config.yaml (defaults to $WALKPACK_CONFIG_PATH, then configs/config.yaml)")
}

// openStore loads the config and opens the database it points at.
func openStore() (*config.Config, *db.DB, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("WALKPACK_CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := db.NewDB(cfg.Database.Path, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}
