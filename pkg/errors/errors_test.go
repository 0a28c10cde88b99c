package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Kind("")},
		{"typed", New(KindNoMedia, "nothing"), KindNoMedia},
		{"wrapped typed", fmt.Errorf("outer: %w", New(KindTransport, "reset")), KindTransport},
		{"untyped", fmt.Errorf("plain"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryableWithCredentialChange(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		usedCred bool
		want     bool
	}{
		{"login wall without credential", New(KindAuthRequired, "login").WithIssue(IssueLoginWall), false, true},
		{"expired credential", New(KindAuthExpired, "stale session").WithIssue(IssueCheckpoint), true, true},
		{"no media anonymous", New(KindNoMedia, "empty"), false, true},
		{"no media with credential", New(KindNoMedia, "empty"), true, true},
		{"private anonymous", New(KindContentUnavailable, "private").WithIssue(IssuePrivate), false, true},
		{"private with credential", New(KindContentUnavailable, "private").WithIssue(IssuePrivate), true, false},
		{"age gate anonymous", New(KindContentUnavailable, "age gate").WithIssue(IssueAgeGate), false, true},
		{"deleted", New(KindContentUnavailable, "gone").WithIssue(IssueDeleted), false, false},
		{"transport", New(KindTransport, "timeout"), false, false},
		{"invalid input", New(KindInvalidInput, "bad url"), false, false},
		{"untyped", fmt.Errorf("boom"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryableWithCredentialChange(tt.err, tt.usedCred))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(500))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(200))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(404))
}

func TestErrorFormatting(t *testing.T) {
	err := Wrap(KindTransport, "fetch failed", fmt.Errorf("connection reset"))
	assert.Contains(t, err.Error(), "transport")
	assert.Contains(t, err.Error(), "connection reset")
	assert.NotNil(t, err.Unwrap())

	plain := New(KindInvalidInput, "not a url")
	assert.Equal(t, "invalid_input: not a url", plain.Error())
	assert.Nil(t, plain.Unwrap())
}
