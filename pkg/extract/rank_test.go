package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/models"
)

func TestRankDescendingAndDeterministic(t *testing.T) {
	cands := []Candidate{
		{URL: "https://cdn.example/a.mp4", BasePriority: 50, Progressive: true, Kind: models.MediaVideo},
		{URL: "https://cdn.example/b.mp4", BasePriority: 90, Kind: models.MediaVideo},
		{URL: "https://cdn.example/c.mp4", BasePriority: 70, Progressive: true, Kind: models.MediaVideo},
	}

	first := Rank(cands)
	for i := 1; i < len(first); i++ {
		assert.Greater(t, first[i-1].Priority, first[i].Priority, "scores must be strictly descending")
	}

	// Same input set, shuffled: identical output order.
	shuffled := []Candidate{cands[2], cands[0], cands[1]}
	second := Rank(shuffled)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].URL, second[i].URL)
	}
}

func TestRankDedupByCanonicalURL(t *testing.T) {
	cands := []Candidate{
		{URL: "https://cdn.example/v.mp4?sig=aaa&expires=1", BasePriority: 60, Kind: models.MediaVideo},
		{URL: "https://cdn.example/v.mp4?sig=bbb&expires=2", BasePriority: 90, Kind: models.MediaVideo, Quality: "hd"},
	}

	formats := Rank(cands)
	require.Len(t, formats, 1)
	// The higher scoring variant survives.
	assert.Equal(t, "hd", formats[0].Quality)
	assert.Contains(t, formats[0].URL, "sig=bbb")
}

func TestRankProgressiveBeatsFragmented(t *testing.T) {
	cands := []Candidate{
		{URL: "https://cdn.example/dash.mpd", BasePriority: 70, Kind: models.MediaVideo},
		{URL: "https://cdn.example/prog.mp4", BasePriority: 65, Progressive: true, Kind: models.MediaVideo},
	}
	formats := Rank(cands)
	require.Len(t, formats, 2)
	assert.Equal(t, "https://cdn.example/prog.mp4", formats[0].URL)
}

func TestRankMutedPenalized(t *testing.T) {
	cands := []Candidate{
		{URL: "https://cdn.example/silent.mp4", BasePriority: 80, Muted: true, Kind: models.MediaVideo},
		{URL: "https://cdn.example/sound.mp4", BasePriority: 80, Kind: models.MediaVideo},
	}
	formats := Rank(cands)
	require.Len(t, formats, 2)
	assert.Equal(t, "https://cdn.example/sound.mp4", formats[0].URL)
	assert.False(t, formats[1].HasAudio)
}

func TestRankCDNAffinity(t *testing.T) {
	cands := []Candidate{
		{URL: "https://scontent-lax3-1.cdninstagram.com/v.mp4", BasePriority: 50, Kind: models.MediaVideo},
		{URL: "https://other.example.com/v.mp4", BasePriority: 50, Kind: models.MediaVideo},
	}
	formats := Rank(cands)
	require.Len(t, formats, 2)
	assert.Contains(t, formats[0].URL, "scontent-")
}

func TestGroupAdjacentVariants(t *testing.T) {
	cands := []Candidate{
		{URL: "https://cdn/1-hd.mp4", BasePriority: 100, Pos: 10},
		{URL: "https://cdn/1-sd.mp4", BasePriority: 80, Pos: 50},
		{URL: "https://cdn/2-hd.mp4", BasePriority: 100, Pos: 100},
		{URL: "https://cdn/2-sd.mp4", BasePriority: 80, Pos: 140},
	}
	groupAdjacentVariants(cands)

	assert.Equal(t, cands[0].GroupID, cands[1].GroupID)
	assert.Equal(t, cands[2].GroupID, cands[3].GroupID)
	assert.NotEqual(t, cands[0].GroupID, cands[2].GroupID)
}
