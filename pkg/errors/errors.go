package errors

import (
	"errors"
	"fmt"
)

// Kind classifies scrape failures. The orchestrator is the only component
// that decides what to do with a given kind; everything below it just
// reports the kind truthfully.
type Kind string

const (
	// KindInvalidInput covers malformed or unsupported URLs. Terminal.
	KindInvalidInput Kind = "invalid_input"
	// KindTransport covers timeouts, resets and other network failures.
	// Retried with backoff, never with a credential change.
	KindTransport Kind = "transport"
	// KindAuthRequired means the page demanded a login the request
	// did not present (login wall, checkpoint without a session).
	KindAuthRequired Kind = "auth_required"
	// KindAuthExpired means the presented credential was rejected.
	KindAuthExpired Kind = "auth_expired"
	// KindContentUnavailable covers private, deleted and age-gated pages.
	KindContentUnavailable Kind = "content_unavailable"
	// KindNoMedia means the page parsed but zero candidates survived.
	KindNoMedia Kind = "no_media"
	// KindIncomplete flags a carousel/story with fewer items than declared.
	// Soft: attached to an otherwise successful result.
	KindIncomplete Kind = "incomplete"
	// KindInternal is a catch-all for bugs and backend faults that
	// escaped their subsystem.
	KindInternal Kind = "internal"
)

// Issue names the semantic page state detected by the extraction engine.
// It refines a Kind: two ContentUnavailable errors can carry different
// issues with different retry eligibility.
type Issue string

const (
	IssueNone       Issue = ""
	IssueLoginWall  Issue = "login_wall"
	IssueAgeGate    Issue = "age_gate"
	IssueCheckpoint Issue = "checkpoint"
	IssuePrivate    Issue = "private"
	IssueDeleted    Issue = "deleted"
)

// Error is the typed error that crosses every subsystem boundary.
type Error struct {
	Kind    Kind
	Issue   Issue
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithIssue returns a copy carrying the detected page issue.
func (e *Error) WithIssue(issue Issue) *Error {
	clone := *e
	clone.Issue = issue
	return &clone
}

// KindOf extracts the Kind from any error. Untyped errors map to internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IssueOf extracts the page issue from any error.
func IssueOf(err error) Issue {
	var e *Error
	if errors.As(err, &e) {
		return e.Issue
	}
	return IssueNone
}

// IsTransport reports whether the error is a transport-level failure,
// eligible for backoff retries against the same credential posture.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// RetryableWithCredentialChange reports whether a second attempt with the
// opposite credential posture is worth making. Deleted content never is;
// private and age-gated pages only are when the failing attempt carried
// no credential (a session might see what an anonymous fetch cannot).
func RetryableWithCredentialChange(err error, usedCredential bool) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindAuthRequired, KindAuthExpired, KindNoMedia:
		return true
	case KindContentUnavailable:
		switch e.Issue {
		case IssuePrivate, IssueAgeGate:
			return !usedCredential
		}
	}
	return false
}

// IsRetryableStatusCode classifies HTTP status codes for transport retries.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // connection-level failure
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
