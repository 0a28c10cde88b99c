package scraper

import (
	"context"

	"mediagrab/pkg/credpool"
	"mediagrab/pkg/extract"
	"mediagrab/pkg/fetch"
	"mediagrab/pkg/models"
)

// Fetcher is the HTTP surface the orchestrator consumes.
type Fetcher interface {
	Fetch(ctx context.Context, platform models.Platform, rawURL string, opts fetch.Options) (*fetch.Response, error)
	Resolve(ctx context.Context, platform models.Platform, rawURL string, opts fetch.Options) (string, error)
}

// CredentialSource hands out rotating credential leases. A nil lease
// with a nil error means no credential is available.
type CredentialSource interface {
	AcquireRotating(ctx context.Context, platform string) (credpool.Lease, error)
}

// ResultCache is the cache surface the orchestrator consumes. Every
// method degrades gracefully when no backend is configured.
type ResultCache interface {
	QuickLookup(ctx context.Context, platform models.Platform, rawURL string) *models.ScrapeResult
	Lookup(ctx context.Context, platform models.Platform, resolvedURL string) *models.ScrapeResult
	Store(ctx context.Context, platform models.Platform, resolvedURL string, contentType models.ContentType, result *models.ScrapeResult)
	SetAlias(ctx context.Context, shortURL, resolvedURL string)
}

// ExtractorSource resolves the per-platform extraction engine.
type ExtractorSource interface {
	For(platform models.Platform) (extract.Extractor, error)
}
