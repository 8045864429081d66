package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/timeline/internal/archive"
	"github.com/iammorganparry/timeline/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "timeline",
		Short:   "Alternate history - rewrite the past one decision at a time",
		Version: Version,
	}
	rootCmd.PersistentFlags().String("config", ".", "Directory containing timeline.yaml")

	rootCmd.AddCommand(playCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(chroniclesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration from the --config directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("config")
	return config.Load(dir)
}

// openLogger returns a JSON logger writing to path, or a discarding logger
// when path is empty. The terminal belongs to the TUI.
func openLogger(cfg *config.Config, path string) (*slog.Logger, func(), error) {
	if path == "" {
		return cfg.NewLogger(io.Discard), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return cfg.NewLogger(f), func() { f.Close() }, nil
}

func openStore(cfg *config.Config) (*archive.Store, func(), error) {
	db, err := archive.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return archive.NewStore(db), func() { db.Close() }, nil
}
