package extract

import (
	"regexp"

	scrapeerr "mediagrab/pkg/errors"
	"mediagrab/pkg/models"
)

// pattern is one structural match rule. Capture group 1 is the media
// URL. Patterns are ordered by descending specificity; priority carries
// that order into the composite score.
type pattern struct {
	re          *regexp.Regexp
	priority    int
	quality     string
	kind        models.MediaKind
	container   string
	progressive bool
}

// platformSpec is the data side of one platform's extractor: anchors
// for localization, the ordered pattern table, the issue table, and the
// indicators that suppress false-positive issues. Adding support for a
// page-structure change means editing a table, not control flow.
type platformSpec struct {
	anchors         []string
	window          int
	patterns        []pattern
	issues          []issueRule
	mediaIndicators []string
	// carouselCountRe captures the declared item count of a multi-item
	// post, when the platform exposes one.
	carouselCountRe *regexp.Regexp
	// mutedRe marks a silent track when it matches near a candidate.
	mutedRe *regexp.Regexp
}

var instagramSpec = platformSpec{
	anchors: []string{`"video_versions"`, `"shortcode_media"`, `"carousel_media"`, `"display_url"`},
	patterns: []pattern{
		{
			re:          regexp.MustCompile(`"video_versions":\[\{[^\[\]]*?"url":"(https://[^"]+)"`),
			priority:    100,
			quality:     "hd",
			kind:        models.MediaVideo,
			container:   "mp4",
			progressive: true,
		},
		{
			re:          regexp.MustCompile(`"video_url":"(https://[^"]+)"`),
			priority:    90,
			quality:     "sd",
			kind:        models.MediaVideo,
			container:   "mp4",
			progressive: true,
		},
		{
			re:       regexp.MustCompile(`"display_url":"(https://[^"]+)"`),
			priority: 70,
			quality:  "original",
			kind:     models.MediaImage,
		},
		{
			re:       regexp.MustCompile(`"display_resources":\[\{"src":"(https://[^"]+)"`),
			priority: 60,
			quality:  "scaled",
			kind:     models.MediaImage,
		},
		{
			re:          regexp.MustCompile(`(https://[a-z0-9.-]+\.cdninstagram\.com/[^"'\s\\]+\.mp4[^"'\s\\]*)`),
			priority:    30,
			quality:     "unknown",
			kind:        models.MediaVideo,
			container:   "mp4",
			progressive: true,
		},
	},
	issues: []issueRule{
		{"checkpoint_required", scrapeerr.IssueCheckpoint},
		{"/challenge/?next=", scrapeerr.IssueCheckpoint},
		{"Restricted Video", scrapeerr.IssueAgeGate},
		{"This Account is Private", scrapeerr.IssuePrivate},
		{"Sorry, this page isn't available", scrapeerr.IssueDeleted},
		{"Page Not Found", scrapeerr.IssueDeleted},
		{"Log in to see photos and videos", scrapeerr.IssueLoginWall},
		{"loginForm", scrapeerr.IssueLoginWall},
	},
	mediaIndicators: []string{`"video_versions"`, `"display_url"`, `"shortcode_media"`},
	carouselCountRe: regexp.MustCompile(`"carousel_media_count":(\d+)`),
	mutedRe:         regexp.MustCompile(`"has_audio":false`),
}

var tiktokSpec = platformSpec{
	anchors: []string{`"ItemModule"`, `"playAddr"`, `"videoData"`},
	patterns: []pattern{
		{
			re:          regexp.MustCompile(`"downloadAddr":"(https://[^"]+)"`),
			priority:    100,
			quality:     "original",
			kind:        models.MediaVideo,
			container:   "mp4",
			progressive: true,
		},
		{
			re:          regexp.MustCompile(`"playAddr":"(https://[^"]+)"`),
			priority:    90,
			quality:     "play",
			kind:        models.MediaVideo,
			container:   "mp4",
			progressive: true,
		},
		{
			re:       regexp.MustCompile(`"imageURL":\{"urlList":\["(https://[^"]+)"`),
			priority: 80,
			quality:  "original",
			kind:     models.MediaImage,
		},
		{
			re:          regexp.MustCompile(`(https://v\d{2}[a-z0-9.-]*\.tiktokcdn[a-z.-]*\.com/[^"'\s\\]+)`),
			priority:    30,
			quality:     "unknown",
			kind:        models.MediaVideo,
			progressive: true,
		},
	},
	issues: []issueRule{
		{"Verify to continue", scrapeerr.IssueCheckpoint},
		{"This post is age protected", scrapeerr.IssueAgeGate},
		{"This account is private", scrapeerr.IssuePrivate},
		{"Video currently unavailable", scrapeerr.IssueDeleted},
		{"couldn't find this video", scrapeerr.IssueDeleted},
		{"Log in to TikTok", scrapeerr.IssueLoginWall},
	},
	mediaIndicators: []string{`"playAddr"`, `"downloadAddr"`, `"imageURL"`},
	carouselCountRe: regexp.MustCompile(`"imagePost":\{[^{]*"imageCount":(\d+)`),
	mutedRe:         regexp.MustCompile(`"muted":true`),
}

var twitterSpec = platformSpec{
	anchors: []string{`"video_info"`, `"extended_entities"`, `"media_url_https"`},
	patterns: []pattern{
		{
			re:          regexp.MustCompile(`"content_type":"video/mp4"[^}]*?"url":"(https://[^"]+)"`),
			priority:    100,
			quality:     "mp4",
			kind:        models.MediaVideo,
			container:   "mp4",
			progressive: true,
		},
		{
			re:        regexp.MustCompile(`"content_type":"application/x-mpegURL"[^}]*?"url":"(https://[^"]+)"`),
			priority:  60,
			quality:   "adaptive",
			kind:      models.MediaVideo,
			container: "m3u8",
		},
		{
			re:       regexp.MustCompile(`"media_url_https":"(https://[^"]+)"`),
			priority: 70,
			quality:  "original",
			kind:     models.MediaImage,
		},
	},
	issues: []issueRule{
		{"Age-restricted adult content", scrapeerr.IssueAgeGate},
		{"These posts are protected", scrapeerr.IssuePrivate},
		{"this page doesn’t exist", scrapeerr.IssueDeleted},
		{"Hmm...this page doesn", scrapeerr.IssueDeleted},
		{"Log in to X", scrapeerr.IssueLoginWall},
	},
	mediaIndicators: []string{`"video_info"`, `"media_url_https"`},
}
