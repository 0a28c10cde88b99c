package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"mediagrab/pkg/models"
)

// Content-ID extraction patterns per platform. A stable platform-native
// identifier lets every URL variant of the same post share one cache
// entry, so tracking parameters and share links never fragment the cache.
var (
	instagramPostRe  = regexp.MustCompile(`/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)
	instagramStoryRe = regexp.MustCompile(`/stories/([A-Za-z0-9_.]+)/(\d+)`)
	tiktokVideoRe    = regexp.MustCompile(`/(?:video|photo)/(\d+)`)
	twitterStatusRe  = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	youtubeWatchRe   = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{6,})`)
	youtubePathRe    = regexp.MustCompile(`/(?:shorts|embed|live)/([A-Za-z0-9_-]{6,})`)
)

// trackingParams are stripped during URL normalization. They vary per
// share and would otherwise defeat the URL-hash fallback key.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"igsh":         true,
	"igshid":       true,
	"si":           true,
	"s":            true,
	"t":            true,
	"_r":           true,
	"ref":          true,
	"ref_src":      true,
	"ref_url":      true,
}

// shortURLHosts host link-shortener redirects that must be resolved
// before a content ID can be derived.
var shortURLHosts = map[string]bool{
	"vm.tiktok.com": true,
	"vt.tiktok.com": true,
	"t.co":          true,
	"youtu.be":      false, // carries the video ID directly
}

// ContentID derives the platform-native identifier from a content URL.
// Returns "" when no identifier can be extracted; callers fall back to
// the normalized-URL hash.
func ContentID(platform models.Platform, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	switch platform {
	case models.PlatformInstagram:
		if m := instagramPostRe.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
		if m := instagramStoryRe.FindStringSubmatch(u.Path); m != nil {
			return "story:" + m[1] + ":" + m[2]
		}
	case models.PlatformTikTok:
		if m := tiktokVideoRe.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	case models.PlatformTwitter:
		if m := twitterStatusRe.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	case models.PlatformYouTube:
		if strings.HasSuffix(strings.ToLower(u.Host), "youtu.be") {
			if id := strings.Trim(u.Path, "/"); id != "" {
				return id
			}
		}
		if m := youtubeWatchRe.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
		if m := youtubePathRe.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	}
	return ""
}

// NormalizeURL canonicalizes a content URL for hashing: lowercased host,
// no tracking parameters, no fragment, no trailing slash. Remaining query
// parameters are sorted by url.Values encoding.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[param] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// URLHash hashes a normalized URL into a fixed-width key segment.
func URLHash(rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:16])
}

// IsShortURL reports whether the URL is a shortener redirect that must
// be resolved to its final destination before key derivation.
func IsShortURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return shortURLHosts[strings.ToLower(strings.TrimPrefix(u.Host, "www."))]
}

// Key builders. All cache entries live under a small set of prefixes so
// Clear can scan them without touching unrelated keys.

func resultKey(platform models.Platform, contentID string) string {
	return "result:" + string(platform) + ":" + contentID
}

func urlFallbackKey(platform models.Platform, rawURL string) string {
	return "result:" + string(platform) + ":url:" + URLHash(rawURL)
}

func aliasKey(rawURL string) string {
	return "alias:" + URLHash(rawURL)
}

func statsKey(platform models.Platform, outcome string) string {
	return "stats:" + string(platform) + ":" + outcome
}
