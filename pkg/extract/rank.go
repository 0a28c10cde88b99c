package extract

import (
	"sort"
	"strconv"
	"strings"

	"mediagrab/pkg/models"
)

// Candidate is one media URL collected from a pattern match, before
// dedup and ranking.
type Candidate struct {
	URL       string
	Quality   string
	Kind      models.MediaKind
	Container string
	Thumbnail string

	// BasePriority is the pattern's specificity rank; more specific
	// structural patterns start higher.
	BasePriority int
	// Progressive marks a directly downloadable rendition, preferred
	// over fragmented/DASH delivery.
	Progressive bool
	// Muted marks a detected silent track; a version with sound beats a
	// silent one of equal resolution.
	Muted bool
	// Pos is the byte offset of the match in the scanned window, used
	// for adjacency-based variant grouping.
	Pos int
	// GroupID ties carousel/story variants of the same logical item.
	GroupID string
}

const (
	progressiveBonus = 10
	mutedPenalty     = 15
)

// cdnAffinity scores edge locations by closeness to the serving
// infrastructure. Hostname substrings, coarse on purpose.
var cdnAffinity = []struct {
	marker string
	score  int
}{
	{".fna.fbcdn.net", 8},
	{"scontent-", 6},
	{".cdninstagram.com", 5},
	{".tiktokcdn-us.com", 6},
	{".tiktokcdn.com", 4},
	{"video.twimg.com", 5},
	{".akamaized.net", 3},
}

// Score computes the composite priority of one candidate.
func (c *Candidate) Score() int {
	score := c.BasePriority
	for _, a := range cdnAffinity {
		if strings.Contains(c.URL, a.marker) {
			score += a.score
			break
		}
	}
	if c.Progressive {
		score += progressiveBonus
	}
	if c.Muted {
		score -= mutedPenalty
	}
	return score
}

// canonicalURL strips the query string so signed variants of the same
// resource collapse together.
func canonicalURL(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// Rank deduplicates candidates by canonical URL, keeping the highest
// scoring variant of each, and returns formats in strictly descending
// score order. Ties break on canonical URL so the order is
// deterministic for a fixed input set.
func Rank(cands []Candidate) []models.MediaFormat {
	type scored struct {
		cand  Candidate
		score int
	}

	best := make(map[string]scored, len(cands))
	var order []string
	for _, c := range cands {
		key := canonicalURL(c.URL)
		s := c.Score()
		prev, seen := best[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || s > prev.score {
			best[key] = scored{cand: c, score: s}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := best[order[i]], best[order[j]]
		if a.score != b.score {
			return a.score > b.score
		}
		return order[i] < order[j]
	})

	formats := make([]models.MediaFormat, 0, len(order))
	for _, key := range order {
		s := best[key]
		formats = append(formats, models.MediaFormat{
			Quality:   s.cand.Quality,
			Kind:      s.cand.Kind,
			URL:       s.cand.URL,
			Container: s.cand.Container,
			Thumbnail: s.cand.Thumbnail,
			HasAudio:  !s.cand.Muted,
			GroupID:   s.cand.GroupID,
			Priority:  s.score,
		})
	}
	return formats
}

// groupAdjacentVariants assigns group IDs to candidates in document
// order: a candidate at least as specific as the current group's leader
// opens a new logical item, lower-specificity candidates that follow it
// are its quality variants. Story items embed their high and low
// renditions adjacently, which this pairing recovers.
func groupAdjacentVariants(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Pos < cands[j].Pos })

	group := 0
	leaderPriority := -1
	for i := range cands {
		if cands[i].BasePriority >= leaderPriority {
			group++
			leaderPriority = cands[i].BasePriority
		}
		cands[i].GroupID = "item-" + strconv.Itoa(group)
	}
}
