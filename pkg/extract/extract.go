package extract

import (
	"context"

	"mediagrab/pkg/config"
	scrapeerr "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

// Page is the fetched document handed to an extractor.
type Page struct {
	URL  string
	Body string
	// ContentType is the declared or inferred kind of the post; it
	// selects story variant pairing and carousel completeness checks.
	ContentType models.ContentType
	// UsedCredential records whether the fetch carried a credential, so
	// issue classification can distinguish "login wall without auth"
	// from "login wall despite auth".
	UsedCredential bool
}

// Extractor turns one platform's page into a ranked scrape result.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Platform() models.Platform
	// NeedsFetch reports whether the extractor consumes a fetched page
	// body. Subprocess-backed extractors resolve the URL themselves, so
	// the orchestrator skips the page fetch entirely.
	NeedsFetch() bool
	Extract(ctx context.Context, page *Page) (*models.ScrapeResult, error)
}

// Engine dispatches extraction to the per-platform extractor.
type Engine struct {
	extractors map[models.Platform]Extractor
	log        logger.Logger
}

// NewEngine builds the default extractor set: pattern-table extractors
// for instagram, tiktok and twitter, and the subprocess tool for
// youtube.
func NewEngine(cfg *config.Config, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	e := &Engine{
		extractors: make(map[models.Platform]Extractor),
		log:        log,
	}
	e.Register(newHTMLExtractor(models.PlatformInstagram, instagramSpec, log))
	e.Register(newHTMLExtractor(models.PlatformTikTok, tiktokSpec, log))
	e.Register(newHTMLExtractor(models.PlatformTwitter, twitterSpec, log))
	e.Register(NewExtTool(models.PlatformYouTube, cfg.ExtTool, log))
	return e
}

// Register installs an extractor, replacing any existing one for the
// same platform.
func (e *Engine) Register(x Extractor) {
	e.extractors[x.Platform()] = x
}

// For returns the extractor for a platform.
func (e *Engine) For(platform models.Platform) (Extractor, error) {
	x, ok := e.extractors[platform]
	if !ok {
		return nil, scrapeerr.Newf(scrapeerr.KindInvalidInput, "unsupported platform %q", platform)
	}
	return x, nil
}
