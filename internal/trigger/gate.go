package trigger

import (
	"strings"
	"time"

	"rugguard/internal/model"
	"rugguard/internal/util"
)

// RetweetPrefix marks a retweet body.
const RetweetPrefix = "RT @"

// Decision is the outcome of the gate checks for one mention.
type Decision int

const (
	Accept Decision = iota
	RejectProcessed
	RejectStale
	RejectRetweet
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case RejectProcessed:
		return "processed"
	case RejectStale:
		return "stale"
	case RejectRetweet:
		return "retweet"
	default:
		return "unknown"
	}
}

// Seen reports whether a trigger tweet id was already handled.
type Seen interface {
	Contains(id string) bool
}

// Gate decides which mentions are analysis requests.
type Gate struct {
	phrase string
	window time.Duration
}

// NewGate returns a gate matching phrase case-insensitively and accepting
// mentions at most window old.
func NewGate(phrase string, window time.Duration) *Gate {
	return &Gate{phrase: phrase, window: window}
}

// Check runs the processed, freshness and retweet checks in that order
// and returns the first failure.
func (g *Gate) Check(t model.Tweet, seen Seen, now time.Time) Decision {
	if seen != nil && seen.Contains(t.ID) {
		return RejectProcessed
	}
	if now.Sub(t.CreatedAt) > g.window {
		return RejectStale
	}
	if strings.HasPrefix(t.Text, RetweetPrefix) {
		return RejectRetweet
	}
	return Accept
}

// ShouldProcess reports whether t passes every check.
func (g *Gate) ShouldProcess(t model.Tweet, seen Seen, now time.Time) bool {
	return g.Check(t, seen, now) == Accept
}

// IsTrigger reports whether the tweet body contains the trigger phrase anywhere.
func (g *Gate) IsTrigger(t model.Tweet) bool {
	if g.phrase == "" {
		return false
	}
	return util.ContainsFold(t.Text, g.phrase)
}

// ExtractOriginalID returns the id of the first replied_to reference.
func ExtractOriginalID(t model.Tweet) (string, bool) {
	for _, ref := range t.ReferencedTweets {
		if ref.Type == model.RefRepliedTo {
			return ref.ID, ref.ID != ""
		}
	}
	return "", false
}
