package extract

import "strings"

// defaultWindow bounds the substring handed to the pattern scans.
// Platform pages run to hundreds of kilobytes; scanning 5-8 fallback
// patterns over the full document multiplies that cost per pattern.
const defaultWindow = 64 * 1024

// Localize narrows the document to a window around the first anchor
// token that matches. Anchors are tried in order; the window extends
// both directions because quality variants and counts sit on either
// side of the anchor. With no anchor hit the full body is returned so
// extraction still sees everything, just slower.
func Localize(body string, anchors []string, window int) string {
	if window <= 0 {
		window = defaultWindow
	}
	if len(body) <= window {
		return body
	}

	for _, anchor := range anchors {
		idx := strings.Index(body, anchor)
		if idx < 0 {
			continue
		}
		start := idx - window/2
		if start < 0 {
			start = 0
		}
		end := idx + window/2
		if end > len(body) {
			end = len(body)
		}
		return body[start:end]
	}
	return body
}
