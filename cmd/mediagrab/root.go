package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
)

var (
	version = "1.0.0"

	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mediagrab",
	Short: "Extract downloadable media from social platform posts",
	Long: `mediagrab resolves a social post URL into ranked, downloadable media
formats plus metadata, caching results and rotating authenticated
sessions per platform.

Supported platforms: instagram, tiktok, twitter, youtube.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(credsCmd)
	rootCmd.AddCommand(cacheCmd)
}

// initRuntime loads configuration and the logger shared by every command.
func initRuntime() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := logger.Initialize(&logger.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}
