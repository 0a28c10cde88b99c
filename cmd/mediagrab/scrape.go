package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediagrab/pkg/models"
	"mediagrab/pkg/scraper"
)

var (
	scrapePlatform   string
	scrapeType       string
	scrapeSkipCache  bool
	scrapeCredential string
	scrapeJSON       bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Extract media formats and metadata from a post URL",
	Example: `  # Scrape a public post
  mediagrab scrape https://www.instagram.com/p/Cxyz123/

  # Force a fresh fetch past the cache
  mediagrab scrape --no-cache https://www.tiktok.com/@user/video/7301

  # Scrape a story with an explicit session secret
  mediagrab scrape --credential "sessionid=..." https://www.instagram.com/stories/user/314/`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapePlatform, "platform", "p", "", "platform (default: detected from URL)")
	scrapeCmd.Flags().StringVarP(&scrapeType, "type", "t", "", "content type: post, story, carousel, video")
	scrapeCmd.Flags().BoolVar(&scrapeSkipCache, "no-cache", false, "bypass the result cache")
	scrapeCmd.Flags().StringVar(&scrapeCredential, "credential", "", "session secret to use instead of the pool")
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "print the raw result as JSON")
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, log, err := initRuntime()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}

	rawURL := args[0]
	platform := models.Platform(scrapePlatform)
	if platform == "" {
		platform = detectPlatform(rawURL)
	}

	result, err := a.scraper.Scrape(cmd.Context(), platform, rawURL, scraper.Options{
		SkipCache:          scrapeSkipCache,
		CredentialOverride: scrapeCredential,
		ContentType:        models.ContentType(scrapeType),
	})
	if err != nil {
		return err
	}

	if scrapeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func printResult(result *models.ScrapeResult) {
	if result.Title != "" {
		fmt.Println("Title:  ", result.Title)
	}
	if result.Author != "" {
		fmt.Println("Author: ", result.Author)
	}
	if result.FromCache {
		fmt.Println("Source:  cache")
	}
	if result.Incomplete {
		fmt.Println("Warning: fewer items extracted than the post declares")
	}
	if result.Engagement != nil {
		fmt.Printf("Stats:   views=%d likes=%d comments=%d shares=%d\n",
			result.Engagement.Views, result.Engagement.Likes,
			result.Engagement.Comments, result.Engagement.Shares)
	}

	fmt.Printf("Formats (%d):\n", len(result.Formats))
	for i, f := range result.Formats {
		group := ""
		if f.GroupID != "" {
			group = " group=" + f.GroupID
		}
		audio := ""
		if f.Kind == models.MediaVideo && !f.HasAudio {
			audio = " (no audio)"
		}
		fmt.Printf("  %2d. [%s] %s%s%s\n      %s\n", i+1, f.Kind, f.Quality, group, audio, f.URL)
	}
}
