package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdulachik/inkbloom/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "inkbloom",
	Short: "Add generated illustrations to EPUB books",
	Long: `inkbloom reads an EPUB, asks a text model to pick one scene per chapter,
generates an illustration for it and writes an illustrated copy of the book.`,
	SilenceUsage: true,
}

func init() {
	setupLogging(slog.LevelInfo)
}

func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig reads the configuration and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	setupLogging(level)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
