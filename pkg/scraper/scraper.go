// Package scraper is the orchestrator: it composes the result cache,
// the credential pool, the fetcher and the extraction engine into the
// request lifecycle, and is the only place retry decisions are made.
package scraper

import (
	"context"
	"net/url"
	"strings"

	"mediagrab/pkg/cache"
	"mediagrab/pkg/config"
	"mediagrab/pkg/credpool"
	scrapeerr "mediagrab/pkg/errors"
	"mediagrab/pkg/extract"
	"mediagrab/pkg/fetch"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

// Options tune a single scrape call.
type Options struct {
	// SkipCache bypasses cache reads; the fresh result is still written
	// through so later requests benefit.
	SkipCache bool
	// CredentialOverride is a raw session secret used instead of the
	// pool. Pool accounting does not apply to it.
	CredentialOverride string
	// ContentType overrides the type inferred from the URL.
	ContentType models.ContentType
}

// Scraper runs the scrape pipeline.
type Scraper struct {
	cfg     *config.Config
	fetcher Fetcher
	creds   CredentialSource
	cache   ResultCache
	engine  ExtractorSource
	log     logger.Logger
}

// New wires the orchestrator. Collaborators are interfaces so tests can
// substitute fakes.
func New(cfg *config.Config, fetcher Fetcher, creds CredentialSource, resultCache ResultCache, engine ExtractorSource, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		creds:   creds,
		cache:   resultCache,
		engine:  engine,
		log:     log,
	}
}

// Scrape is the sole entry point: cache check, URL resolution, a
// credential-aware fetch, extraction, validation and cache write-back.
// On failure the returned result carries the error kind alongside the
// typed error.
func (s *Scraper) Scrape(ctx context.Context, platform models.Platform, rawURL string, opts Options) (*models.ScrapeResult, error) {
	if err := validateRequest(platform, rawURL); err != nil {
		return failedResult(err), err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = inferContentType(platform, rawURL)
	}

	log := s.log.WithFields(map[string]interface{}{
		"platform":     string(platform),
		"url":          rawURL,
		"content_type": string(contentType),
	})

	if !opts.SkipCache {
		if hit := s.cache.QuickLookup(ctx, platform, rawURL); hit != nil {
			log.Debug("served from cache without resolution")
			return hit, nil
		}
	}

	resolvedURL := rawURL
	if cache.IsShortURL(rawURL) {
		final, err := s.resolveShortURL(ctx, platform, rawURL, opts)
		if err != nil {
			log.WithError(err).Warn("short URL resolution failed")
			return failedResult(err), err
		}
		if final != rawURL {
			s.cache.SetAlias(ctx, rawURL, final)
			resolvedURL = final
			log = log.WithField("resolved_url", final)
		}
	}

	if !opts.SkipCache {
		if hit := s.cache.Lookup(ctx, platform, resolvedURL); hit != nil {
			log.Debug("served from cache after resolution")
			return hit, nil
		}
	}

	extractor, err := s.engine.For(platform)
	if err != nil {
		return failedResult(err), err
	}

	// Subprocess-backed extractors resolve the URL themselves.
	if !extractor.NeedsFetch() {
		result, err := extractor.Extract(ctx, &extract.Page{URL: resolvedURL, ContentType: contentType})
		if err != nil {
			return failedResult(err), err
		}
		s.cache.Store(ctx, platform, resolvedURL, contentType, result)
		return result, nil
	}

	withCredential := s.firstAttemptNeedsCredential(platform, contentType, opts)
	result, usedCredential, err := s.attempt(ctx, platform, resolvedURL, contentType, withCredential, opts)

	// One credential-posture retry bounds cost; transport failures were
	// already retried with backoff inside the fetcher. Retry decisions
	// key off whether a credential actually went out, not the intended
	// posture: an empty pool makes a credentialed attempt anonymous in
	// practice.
	if err != nil && scrapeerr.RetryableWithCredentialChange(err, usedCredential) {
		log.WithField("error_kind", string(scrapeerr.KindOf(err))).Info("retrying with flipped credential posture")
		retryResult, retryUsed, retryErr := s.attempt(ctx, platform, resolvedURL, contentType, !usedCredential, opts)
		if retryErr == nil {
			result, usedCredential, err = retryResult, retryUsed, nil
		}
	}

	// An incomplete multi-item result is usable but worth one bounded
	// second look with a credential, which often reveals the rest.
	if err == nil && result.Incomplete && !usedCredential {
		if retryResult, _, retryErr := s.attempt(ctx, platform, resolvedURL, contentType, true, opts); retryErr == nil {
			if !retryResult.Incomplete || len(retryResult.Formats) > len(result.Formats) {
				result = retryResult
			}
		}
	}

	if err != nil {
		log.WithError(err).WithField("error_kind", string(scrapeerr.KindOf(err))).Warn("scrape failed")
		return failedResult(err), err
	}

	s.cache.Store(ctx, platform, resolvedURL, contentType, result)
	log.InfoWithFields("scrape complete", map[string]interface{}{
		"formats":    len(result.Formats),
		"incomplete": result.Incomplete,
	})
	return result, nil
}

// attempt is one fetch+extract pass under a fixed credential posture.
// The lease acquired here is reported against here, and never escapes
// to another request. The returned flag says whether a credential was
// actually presented, which can differ from the requested posture when
// the pool comes up empty.
func (s *Scraper) attempt(ctx context.Context, platform models.Platform, pageURL string, contentType models.ContentType, withCredential bool, opts Options) (*models.ScrapeResult, bool, error) {
	var (
		secret string
		lease  credpool.Lease
	)
	if withCredential {
		if opts.CredentialOverride != "" {
			secret = opts.CredentialOverride
		} else {
			var err error
			lease, err = s.creds.AcquireRotating(ctx, string(platform))
			if err != nil {
				return nil, false, err
			}
			if lease != nil {
				secret = lease.Secret()
			}
		}
	}
	usedCredential := secret != ""

	resp, err := s.fetcher.Fetch(ctx, platform, pageURL, fetch.Options{Credential: secret})
	if err != nil {
		s.reportOutcome(ctx, lease, err)
		return nil, usedCredential, err
	}

	extractor, err := s.engine.For(platform)
	if err != nil {
		return nil, usedCredential, err
	}

	result, err := extractor.Extract(ctx, &extract.Page{
		URL:            resp.FinalURL,
		Body:           string(resp.Body),
		ContentType:    contentType,
		UsedCredential: usedCredential,
	})
	s.reportOutcome(ctx, lease, err)
	if err != nil {
		return nil, usedCredential, err
	}
	result.UsedCredential = usedCredential
	return result, usedCredential, nil
}

// resolveShortURL follows a short link to its destination. A short link
// the platform gates behind authentication gets one more resolution
// attempt with a credential, and that attempt's outcome is reported to
// the lease that supplied it.
func (s *Scraper) resolveShortURL(ctx context.Context, platform models.Platform, rawURL string, opts Options) (string, error) {
	final, err := s.fetcher.Resolve(ctx, platform, rawURL, fetch.Options{})
	if err == nil || !isAuthKind(err) {
		return final, err
	}

	secret := opts.CredentialOverride
	var lease credpool.Lease
	if secret == "" {
		var acqErr error
		lease, acqErr = s.creds.AcquireRotating(ctx, string(platform))
		if acqErr != nil {
			return "", acqErr
		}
		if lease == nil {
			return "", err
		}
		secret = lease.Secret()
	}

	final, retryErr := s.fetcher.Resolve(ctx, platform, rawURL, fetch.Options{Credential: secret})
	s.reportOutcome(ctx, lease, retryErr)
	if retryErr != nil {
		return "", retryErr
	}
	return final, nil
}

func isAuthKind(err error) bool {
	switch scrapeerr.KindOf(err) {
	case scrapeerr.KindAuthRequired, scrapeerr.KindAuthExpired:
		return true
	}
	return false
}

// reportOutcome attributes the attempt's outcome to the lease this
// request actually held.
func (s *Scraper) reportOutcome(ctx context.Context, lease credpool.Lease, err error) {
	if lease == nil {
		return
	}
	if err == nil {
		lease.ReportSuccess(ctx)
		return
	}
	switch {
	case scrapeerr.KindOf(err) == scrapeerr.KindAuthExpired:
		lease.ReportExpired(ctx, err.Error())
	case scrapeerr.IssueOf(err) == scrapeerr.IssueCheckpoint:
		lease.ReportCooldown(ctx, 0, err.Error())
	default:
		lease.ReportError(ctx, err.Error())
	}
}

// firstAttemptNeedsCredential decides the opening posture: anonymous
// fetches are preferred for usually-public content to conserve pooled
// sessions, but content types the platform gates always open with one.
func (s *Scraper) firstAttemptNeedsCredential(platform models.Platform, contentType models.ContentType, opts Options) bool {
	if opts.CredentialOverride != "" {
		return true
	}
	pc := s.cfg.Platform(string(platform))
	if pc.RequiresCredential {
		return true
	}
	return contentType == models.ContentStory && pc.StoryRequiresCredential
}

func validateRequest(platform models.Platform, rawURL string) error {
	if !platform.IsKnown() {
		return scrapeerr.Newf(scrapeerr.KindInvalidInput, "unsupported platform %q", platform)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return scrapeerr.Newf(scrapeerr.KindInvalidInput, "malformed URL %q", rawURL)
	}
	return nil
}

// inferContentType classifies the URL by path shape. The caller's
// declared type, when present, wins.
func inferContentType(platform models.Platform, rawURL string) models.ContentType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.ContentPost
	}
	path := u.Path

	switch platform {
	case models.PlatformInstagram:
		switch {
		case strings.Contains(path, "/stories/"):
			return models.ContentStory
		case strings.Contains(path, "/reel") || strings.Contains(path, "/tv/"):
			return models.ContentVideo
		}
		return models.ContentPost
	case models.PlatformTikTok:
		if strings.Contains(path, "/photo/") {
			return models.ContentCarousel
		}
		return models.ContentVideo
	case models.PlatformYouTube:
		return models.ContentVideo
	default:
		return models.ContentPost
	}
}

func failedResult(err error) *models.ScrapeResult {
	return &models.ScrapeResult{
		Success:   false,
		ErrorKind: string(scrapeerr.KindOf(err)),
	}
}
