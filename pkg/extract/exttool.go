package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"sort"
	"time"

	"mediagrab/pkg/config"
	scrapeerr "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

// ExtTool extracts through an external wrapper script instead of page
// scraping. It resolves the URL itself, so NeedsFetch is false and the
// orchestrator hands it the bare URL. The tool prints one JSON document
// on stdout.
type ExtTool struct {
	platform models.Platform
	path     string
	timeout  time.Duration
	log      logger.Logger

	// runCommand is swapped in tests to avoid spawning processes.
	runCommand func(ctx context.Context, path, url string) ([]byte, error)
}

// NewExtTool builds the subprocess extractor for one platform.
func NewExtTool(platform models.Platform, cfg config.ExtToolConfig, log logger.Logger) *ExtTool {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ExtTool{
		platform:   platform,
		path:       cfg.Path,
		timeout:    cfg.Timeout,
		log:        log,
		runCommand: runExtTool,
	}
}

func (t *ExtTool) Platform() models.Platform { return t.platform }

func (t *ExtTool) NeedsFetch() bool { return false }

// toolOutput is the wrapper script's stdout contract.
type toolOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Author      string  `json:"author"`
		Duration    float64 `json:"duration"`
		Thumbnail   string  `json:"thumbnail"`
		ViewCount   int64   `json:"view_count"`
		LikeCount   int64   `json:"like_count"`
		Timestamp   int64   `json:"timestamp"`
		Formats     []struct {
			FormatID string  `json:"format_id"`
			Quality  string  `json:"quality"`
			Ext      string  `json:"ext"`
			URL      string  `json:"url"`
			Type     string  `json:"type"`
			Height   int     `json:"height"`
			FPS      float64 `json:"fps"`
			VCodec   string  `json:"vcodec"`
			ACodec   string  `json:"acodec"`
			ABR      float64 `json:"abr"`
		} `json:"formats"`
	} `json:"data"`
}

func (t *ExtTool) Extract(ctx context.Context, page *Page) (*models.ScrapeResult, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	out, err := t.runCommand(ctx, t.path, page.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, scrapeerr.Wrap(scrapeerr.KindTransport, "extraction tool timed out", ctx.Err())
		}
		return nil, scrapeerr.Wrap(scrapeerr.KindInternal, "extraction tool failed", err)
	}

	var parsed toolOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, scrapeerr.Wrap(scrapeerr.KindInternal, "extraction tool produced invalid output", err)
	}
	if !parsed.Success {
		return nil, scrapeerr.Newf(scrapeerr.KindContentUnavailable, "extraction tool: %s", parsed.Error)
	}

	formats := t.rankToolFormats(&parsed)
	if len(formats) == 0 {
		return nil, scrapeerr.New(scrapeerr.KindNoMedia, "extraction tool returned no formats")
	}

	result := &models.ScrapeResult{
		Success:     true,
		Title:       parsed.Data.Title,
		Author:      parsed.Data.Author,
		Description: parsed.Data.Description,
		Formats:     formats,
	}
	if parsed.Data.Timestamp > 0 {
		ts := time.Unix(parsed.Data.Timestamp, 0).UTC()
		result.PostedAt = &ts
	}
	if parsed.Data.ViewCount > 0 || parsed.Data.LikeCount > 0 {
		result.Engagement = &models.EngagementStats{
			Views: parsed.Data.ViewCount,
			Likes: parsed.Data.LikeCount,
		}
	}
	return result, nil
}

// rankToolFormats orders tool output: combined audio+video renditions
// first, then by height and frame rate descending.
func (t *ExtTool) rankToolFormats(parsed *toolOutput) []models.MediaFormat {
	type ranked struct {
		format models.MediaFormat
		combo  bool
		height int
		fps    float64
	}

	var all []ranked
	for _, f := range parsed.Data.Formats {
		if f.URL == "" {
			continue
		}
		kind := models.MediaVideo
		switch {
		case f.Type == "audio" || (f.VCodec == "none" && f.ACodec != "none"):
			kind = models.MediaAudio
		case f.Type == "image":
			kind = models.MediaImage
		}
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		all = append(all, ranked{
			format: models.MediaFormat{
				Quality:   f.Quality,
				Kind:      kind,
				URL:       f.URL,
				Container: f.Ext,
				Thumbnail: parsed.Data.Thumbnail,
				HasAudio:  hasAudio,
			},
			combo:  kind == models.MediaVideo && hasAudio,
			height: f.Height,
			fps:    f.FPS,
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].combo != all[j].combo {
			return all[i].combo
		}
		if all[i].height != all[j].height {
			return all[i].height > all[j].height
		}
		return all[i].fps > all[j].fps
	})

	formats := make([]models.MediaFormat, 0, len(all))
	for i, r := range all {
		r.format.Priority = len(all) - i
		formats = append(formats, r.format)
	}
	return formats
}

func runExtTool(ctx context.Context, path, url string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, url)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
