package models

import "time"

// Platform identifies a supported social platform.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
)

// KnownPlatforms lists every platform the engine has an extractor for.
var KnownPlatforms = []Platform{
	PlatformInstagram,
	PlatformTikTok,
	PlatformTwitter,
	PlatformYouTube,
}

// IsKnown reports whether the platform has a registered extractor.
func (p Platform) IsKnown() bool {
	for _, k := range KnownPlatforms {
		if p == k {
			return true
		}
	}
	return false
}

// ContentType classifies what kind of post a URL points at. It drives
// cache TTL selection and the credential posture of the first fetch.
type ContentType string

const (
	ContentPost     ContentType = "post"
	ContentStory    ContentType = "story"
	ContentCarousel ContentType = "carousel"
	ContentVideo    ContentType = "video"
)

// Ephemeral reports whether the content expires on the platform side,
// which means cached results must expire quickly too.
func (c ContentType) Ephemeral() bool {
	return c == ContentStory
}

// MediaKind distinguishes the payload type of a single format.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// MediaFormat describes one downloadable rendition of a piece of media.
// Formats are produced by the extraction engine, ranked best-first, and
// only ever persisted as part of a ScrapeResult.
type MediaFormat struct {
	Quality   string    `json:"quality"`
	Kind      MediaKind `json:"kind"`
	URL       string    `json:"url"`
	Container string    `json:"container,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	HasAudio  bool      `json:"has_audio"`
	// GroupID ties together formats that belong to the same logical item
	// of a carousel or story (e.g. HD and SD variants of slide 3).
	GroupID  string `json:"group_id,omitempty"`
	Priority int    `json:"priority"`
}

// EngagementStats carries whatever counters the page exposed.
// Zero means "not found", not literally zero.
type EngagementStats struct {
	Views    int64 `json:"views,omitempty"`
	Likes    int64 `json:"likes,omitempty"`
	Comments int64 `json:"comments,omitempty"`
	Shares   int64 `json:"shares,omitempty"`
}

// ScrapeRequest is the inbound unit of work, created per call.
type ScrapeRequest struct {
	Platform       Platform
	URL            string
	ContentType    ContentType
	CredentialHint string
}

// ScrapeResult is what a scrape returns and what the result cache stores.
type ScrapeResult struct {
	Success     bool             `json:"success"`
	Title       string           `json:"title,omitempty"`
	Author      string           `json:"author,omitempty"`
	Description string           `json:"description,omitempty"`
	PostedAt    *time.Time       `json:"posted_at,omitempty"`
	Engagement  *EngagementStats `json:"engagement,omitempty"`
	Formats     []MediaFormat    `json:"formats,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	// UsedCredential records whether a pooled credential was consumed to
	// produce this result.
	UsedCredential bool `json:"used_credential"`
	// Incomplete flags a carousel or story that yielded fewer items than
	// the page declared. The result is still usable.
	Incomplete bool `json:"incomplete,omitempty"`
	// FromCache is set on results served without a network fetch.
	// Never persisted.
	FromCache bool `json:"-"`
}

// Best returns the top-ranked format, or nil for an empty result.
func (r *ScrapeResult) Best() *MediaFormat {
	if len(r.Formats) == 0 {
		return nil
	}
	return &r.Formats[0]
}
