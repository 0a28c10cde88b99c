package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mediagrab/pkg/models"
)

// Engagement counter patterns across the supported platforms. Zero hits
// leave the corresponding stat unset.
var (
	likeRes = []*regexp.Regexp{
		regexp.MustCompile(`"like_count":(\d+)`),
		regexp.MustCompile(`"edge_media_preview_like":\{"count":(\d+)`),
		regexp.MustCompile(`"diggCount":(\d+)`),
		regexp.MustCompile(`"favorite_count":(\d+)`),
	}
	viewRes = []*regexp.Regexp{
		regexp.MustCompile(`"view_count":(\d+)`),
		regexp.MustCompile(`"video_view_count":(\d+)`),
		regexp.MustCompile(`"playCount":(\d+)`),
	}
	commentRes = []*regexp.Regexp{
		regexp.MustCompile(`"comment_count":(\d+)`),
		regexp.MustCompile(`"commentCount":(\d+)`),
		regexp.MustCompile(`"reply_count":(\d+)`),
	}
	shareRes = []*regexp.Regexp{
		regexp.MustCompile(`"shareCount":(\d+)`),
		regexp.MustCompile(`"retweet_count":(\d+)`),
	}
	postedAtRes = []*regexp.Regexp{
		regexp.MustCompile(`"taken_at_timestamp":(\d+)`),
		regexp.MustCompile(`"taken_at":(\d{9,11})`),
		regexp.MustCompile(`"createTime":"?(\d{9,11})"?`),
	}
	authorRes = []*regexp.Regexp{
		regexp.MustCompile(`"owner":\{[^}]*?"username":"([^"]+)"`),
		regexp.MustCompile(`"uniqueId":"([^"]+)"`),
		regexp.MustCompile(`"screen_name":"([^"]+)"`),
	}
)

// parseMetadata fills title, author, description, timestamps and
// engagement from the page's meta tags and embedded JSON. Everything
// here is best effort; a page with no metadata still yields a usable
// result.
func parseMetadata(body string, result *models.ScrapeResult) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		result.Title = metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`)
		result.Description = metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`)
		if result.Title == "" {
			result.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}

	result.Author = firstMatch(body, authorRes)

	if ts := firstMatch(body, postedAtRes); ts != "" {
		if sec, err := strconv.ParseInt(ts, 10, 64); err == nil {
			t := time.Unix(sec, 0).UTC()
			result.PostedAt = &t
		}
	}

	stats := &models.EngagementStats{
		Likes:    firstCount(body, likeRes),
		Views:    firstCount(body, viewRes),
		Comments: firstCount(body, commentRes),
		Shares:   firstCount(body, shareRes),
	}
	if stats.Likes > 0 || stats.Views > 0 || stats.Comments > 0 || stats.Shares > 0 {
		result.Engagement = stats
	}
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			return content
		}
	}
	return ""
}

func firstMatch(body string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}

func firstCount(body string, patterns []*regexp.Regexp) int64 {
	raw := firstMatch(body, patterns)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
