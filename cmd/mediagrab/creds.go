package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediagrab/pkg/fetch"
	"mediagrab/pkg/models"
)

var credsLabel string

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage the rotating credential pool",
}

var credsAddCmd = &cobra.Command{
	Use:   "add <platform>",
	Short: "Add a session credential for a platform",
	Long: `Add a session credential for a platform. The secret is a cookie
fragment (e.g. "sessionid=...") read from an interactive prompt so it
never lands in shell history. It is encrypted before being stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runCredsAdd,
}

var credsListCmd = &cobra.Command{
	Use:   "list <platform>",
	Short: "List credentials for a platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsList,
}

var credsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsRm,
}

var credsTestCmd = &cobra.Command{
	Use:   "test <id>",
	Short: "Check whether a credential still authenticates",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsTest,
}

var credsStatsCmd = &cobra.Command{
	Use:   "stats <platform>",
	Short: "Show aggregated pool statistics for a platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsStats,
}

func init() {
	credsAddCmd.Flags().StringVarP(&credsLabel, "label", "l", "", "human-readable label for the credential")
	credsCmd.AddCommand(credsAddCmd, credsListCmd, credsRmCmd, credsTestCmd, credsStatsCmd)
}

func runCredsAdd(cmd *cobra.Command, args []string) error {
	platform := strings.ToLower(args[0])
	if !models.Platform(platform).IsKnown() {
		return fmt.Errorf("unknown platform %q", platform)
	}

	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	fmt.Print("Session secret (input hidden): ")
	secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return fmt.Errorf("empty secret")
	}

	cred, err := a.pool.Add(cmd.Context(), platform, credsLabel, secret)
	if err != nil {
		return err
	}
	fmt.Printf("Added credential %s for %s\n", cred.ID, platform)
	return nil
}

func runCredsList(cmd *cobra.Command, args []string) error {
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	creds, err := a.pool.List(cmd.Context(), strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("No credentials.")
		return nil
	}

	fmt.Printf("%-36s  %-16s  %-8s  %5s  %5s  %5s  %s\n", "ID", "LABEL", "STATUS", "USES", "OK", "ERR", "LAST USED")
	for _, c := range creds {
		lastUsed := "never"
		if c.LastUsedAt != nil {
			lastUsed = c.LastUsedAt.Format(time.RFC3339)
		}
		status := string(c.Status)
		if !c.Enabled {
			status = "disabled"
		}
		fmt.Printf("%-36s  %-16s  %-8s  %5d  %5d  %5d  %s\n",
			c.ID, c.Label, status, c.UseCount, c.SuccessCount, c.ErrorCount, lastUsed)
	}
	return nil
}

func runCredsRm(cmd *cobra.Command, args []string) error {
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	if err := a.pool.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Println("Deleted.")
	return nil
}

func runCredsTest(cmd *cobra.Command, args []string) error {
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	err = a.pool.HealthTest(cmd.Context(), args[0], func(ctx context.Context, platform, secret string) error {
		_, err := a.fetcher.Fetch(ctx, models.Platform(platform), platformHomeURL(platform), fetch.Options{
			Credential: secret,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	fmt.Println("Credential authenticates.")
	return nil
}

func runCredsStats(cmd *cobra.Command, args []string) error {
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	stats, err := a.pool.Stats(cmd.Context(), strings.ToLower(args[0]))
	if err != nil {
		return err
	}

	fmt.Printf("Platform: %s\n", stats.Platform)
	fmt.Printf("Total:    %d\n", stats.Total)
	for status, n := range stats.ByStatus {
		fmt.Printf("  %-8s %d\n", status, n)
	}
	fmt.Printf("Uses:     %d (ok %d, err %d)\n", stats.UseCount, stats.SuccessCount, stats.ErrorCount)
	return nil
}

func platformHomeURL(platform string) string {
	switch models.Platform(platform) {
	case models.PlatformInstagram:
		return "https://www.instagram.com/accounts/edit/"
	case models.PlatformTikTok:
		return "https://www.tiktok.com/foryou"
	case models.PlatformTwitter:
		return "https://x.com/home"
	case models.PlatformYouTube:
		return "https://www.youtube.com/feed/you"
	default:
		return "https://" + platform + ".com/"
	}
}
