package extract

import (
	"context"
	"strconv"

	scrapeerr "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

// mutedScanRadius bounds how far around a match the muted-track marker
// is looked for. Track flags sit inside the same JSON object as the URL.
const mutedScanRadius = 300

// htmlExtractor is the pattern-table extractor shared by every platform
// that embeds media JSON in its HTML. All platform variation lives in
// the spec tables.
type htmlExtractor struct {
	platform models.Platform
	spec     platformSpec
	log      logger.Logger
}

func newHTMLExtractor(platform models.Platform, spec platformSpec, log logger.Logger) *htmlExtractor {
	return &htmlExtractor{platform: platform, spec: spec, log: log}
}

func (x *htmlExtractor) Platform() models.Platform { return x.platform }

func (x *htmlExtractor) NeedsFetch() bool { return true }

func (x *htmlExtractor) Extract(ctx context.Context, page *Page) (*models.ScrapeResult, error) {
	if page == nil || page.Body == "" {
		return nil, scrapeerr.New(scrapeerr.KindNoMedia, "empty page body")
	}

	body := Decode(page.Body)

	if issue := detectIssue(body, x.spec.issues, x.spec.mediaIndicators); issue != scrapeerr.IssueNone {
		x.log.DebugWithFields("page issue detected", map[string]interface{}{
			"platform": string(x.platform),
			"issue":    string(issue),
		})
		return nil, issueError(issue, page.UsedCredential)
	}

	window := Localize(body, x.spec.anchors, x.spec.window)
	cands := x.collect(window)
	if page.ContentType == models.ContentStory || page.ContentType == models.ContentCarousel {
		groupAdjacentVariants(cands)
	}

	formats := Rank(cands)
	if len(formats) == 0 {
		return nil, scrapeerr.New(scrapeerr.KindNoMedia, "no media candidates survived extraction")
	}

	result := &models.ScrapeResult{
		Success:        true,
		Formats:        formats,
		UsedCredential: page.UsedCredential,
	}

	if page.ContentType == models.ContentCarousel {
		x.checkCompleteness(window, formats, result)
	}

	parseMetadata(body, result)

	x.log.DebugWithFields("extraction complete", map[string]interface{}{
		"platform": string(x.platform),
		"formats":  len(formats),
	})
	return result, nil
}

// collect runs every pattern over the localized window and records each
// match position so variant grouping can recover document order.
func (x *htmlExtractor) collect(window string) []Candidate {
	var cands []Candidate
	for _, p := range x.spec.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(window, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			c := Candidate{
				URL:          window[m[2]:m[3]],
				Quality:      p.quality,
				Kind:         p.kind,
				Container:    p.container,
				BasePriority: p.priority,
				Progressive:  p.progressive,
				Pos:          m[0],
			}
			if x.spec.mutedRe != nil && x.mutedNearby(window, m[0], m[1]) {
				c.Muted = true
			}
			cands = append(cands, c)
		}
	}
	return cands
}

func (x *htmlExtractor) mutedNearby(window string, start, end int) bool {
	lo := start - mutedScanRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + mutedScanRadius
	if hi > len(window) {
		hi = len(window)
	}
	return x.spec.mutedRe.MatchString(window[lo:hi])
}

// checkCompleteness compares extracted item groups against the count the
// page declares for multi-item posts. Fewer than declared is a soft
// signal, not a failure.
func (x *htmlExtractor) checkCompleteness(window string, formats []models.MediaFormat, result *models.ScrapeResult) {
	if x.spec.carouselCountRe == nil {
		return
	}
	m := x.spec.carouselCountRe.FindStringSubmatch(window)
	if m == nil {
		return
	}
	declared, err := strconv.Atoi(m[1])
	if err != nil || declared <= 0 {
		return
	}

	groups := make(map[string]bool)
	for _, f := range formats {
		key := f.GroupID
		if key == "" {
			key = canonicalURL(f.URL)
		}
		groups[key] = true
	}
	if len(groups) < declared {
		result.Incomplete = true
		x.log.WarnWithFields("carousel extraction incomplete", map[string]interface{}{
			"platform":  string(x.platform),
			"declared":  declared,
			"extracted": len(groups),
		})
	}
}
