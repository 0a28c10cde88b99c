package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediagrab/pkg/models"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [platform]",
	Short: "Show hit/miss statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [platform]",
	Short: "Drop cached results, all platforms or one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cacheRmCmd = &cobra.Command{
	Use:   "rm <url>",
	Short: "Delete the cached result for one URL",
	Long: `Delete the cached result for one URL, forcing the next request to
fetch fresh. Useful after a known-bad result was cached.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheRm,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheRmCmd)
}

func selectedPlatforms(args []string) ([]models.Platform, error) {
	if len(args) == 0 {
		return models.KnownPlatforms, nil
	}
	p := models.Platform(strings.ToLower(args[0]))
	if !p.IsKnown() {
		return nil, fmt.Errorf("unknown platform %q", args[0])
	}
	return []models.Platform{p}, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	platforms, err := selectedPlatforms(args)
	if err != nil {
		return err
	}
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	fmt.Printf("%-10s  %8s  %8s  %8s\n", "PLATFORM", "HITS", "MISSES", "ENTRIES")
	for _, p := range platforms {
		stats, err := a.cache.PlatformStats(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s  %8d  %8d  %8d\n", p, stats.Hits, stats.Misses, stats.Entries)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	platforms, err := selectedPlatforms(args)
	if err != nil {
		return err
	}
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	total := 0
	for _, p := range platforms {
		n, err := a.cache.Clear(cmd.Context(), p)
		if err != nil {
			return err
		}
		total += n
	}
	fmt.Printf("Removed %d cached results.\n", total)
	return nil
}

func runCacheRm(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	platform := detectPlatform(rawURL)
	if platform == "" {
		return fmt.Errorf("could not detect platform from %q", rawURL)
	}
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	if err := a.cache.Delete(cmd.Context(), platform, rawURL); err != nil {
		return err
	}
	fmt.Println("Deleted.")
	return nil
}
