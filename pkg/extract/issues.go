package extract

import (
	"strings"

	scrapeerr "mediagrab/pkg/errors"
)

// issueRule maps a page substring to a semantic issue. The table is
// ordered: the first matching rule wins, so more specific indicators
// (checkpoint) sit above generic ones (login wall).
type issueRule struct {
	needle string
	issue  scrapeerr.Issue
}

// detectIssue scans the decoded body against the platform's issue table.
// Issue indicators are ignored when a strong media-presence indicator is
// also found: template leftovers routinely contain login phrasing on
// pages that still rendered the content.
func detectIssue(body string, rules []issueRule, mediaIndicators []string) scrapeerr.Issue {
	matched := scrapeerr.IssueNone
	for _, rule := range rules {
		if strings.Contains(body, rule.needle) {
			matched = rule.issue
			break
		}
	}
	if matched == scrapeerr.IssueNone {
		return scrapeerr.IssueNone
	}

	for _, indicator := range mediaIndicators {
		if strings.Contains(body, indicator) {
			return scrapeerr.IssueNone
		}
	}
	return matched
}

// issueError maps a detected issue to the typed error the orchestrator
// bases its retry decision on. A login wall seen despite a presented
// credential means that credential no longer authenticates.
func issueError(issue scrapeerr.Issue, usedCredential bool) error {
	switch issue {
	case scrapeerr.IssueLoginWall:
		if usedCredential {
			return scrapeerr.New(scrapeerr.KindAuthExpired, "login wall shown to an authenticated session").WithIssue(issue)
		}
		return scrapeerr.New(scrapeerr.KindAuthRequired, "page is behind a login wall").WithIssue(issue)
	case scrapeerr.IssueCheckpoint:
		return scrapeerr.New(scrapeerr.KindAuthRequired, "page demands checkpoint verification").WithIssue(issue)
	case scrapeerr.IssueAgeGate:
		return scrapeerr.New(scrapeerr.KindContentUnavailable, "content is age restricted").WithIssue(issue)
	case scrapeerr.IssuePrivate:
		return scrapeerr.New(scrapeerr.KindContentUnavailable, "content is private").WithIssue(issue)
	case scrapeerr.IssueDeleted:
		return scrapeerr.New(scrapeerr.KindContentUnavailable, "content was removed").WithIssue(issue)
	default:
		return nil
	}
}
