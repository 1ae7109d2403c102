package model

import (
	"time"

	"rugguard/internal/util"
)

// Sub-score ceilings. They sum to 100.
const (
	MaxAgeScore        = 25
	MaxRatioScore      = 20
	MaxBioScore        = 15
	MaxEngagementScore = 20
	MaxTrustedScore    = 20
)

// PositiveBioKeywords add 2 points each when present in a bio.
var PositiveBioKeywords = []string{
	"developer", "founder", "ceo", "official", "verified",
	"community", "building", "creator", "artist", "entrepreneur",
}

// NegativeBioKeywords subtract 3 points each when present in a bio.
var NegativeBioKeywords = []string{
	"pump", "moon", "lambo", "diamond hands", "to the moon",
	"not financial advice", "dyor", "ape", "100x", "1000x",
}

// AccountAgeDays returns whole days between created and now.
func AccountAgeDays(created, now time.Time) int {
	d := now.Sub(created)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// AgeScore scores account age in days (0-25).
func AgeScore(days int) int {
	switch {
	case days < 30:
		return 0
	case days < 90:
		return 10
	case days < 365:
		return 20
	default:
		return MaxAgeScore
	}
}

// FollowerRatio is followers/following with a zero following count treated as 1.
func FollowerRatio(followers, following int) float64 {
	if following < 1 {
		following = 1
	}
	return float64(followers) / float64(following)
}

// FollowerRatioScore scores the follower/following ratio (0-20).
func FollowerRatioScore(followers, following int) int {
	if following == 0 {
		if followers > 0 {
			return MaxRatioScore
		}
		return 0
	}
	ratio := float64(followers) / float64(following)
	switch {
	case ratio >= 2.0:
		return MaxRatioScore
	case ratio >= 1.0:
		return 15
	case ratio >= 0.5:
		return 10
	case ratio >= 0.1:
		return 5
	default:
		return 0
	}
}

// BioScore returns the matched keywords (tagged +kw / -kw) and a score clamped to 0-15.
func BioScore(bio string) ([]string, int) {
	if bio == "" {
		return nil, 0
	}
	var found []string
	score := 5
	for _, k := range util.MatchedTerms(bio, PositiveBioKeywords) {
		found = append(found, "+"+k)
		score += 2
	}
	for _, k := range util.MatchedTerms(bio, NegativeBioKeywords) {
		found = append(found, "-"+k)
		score -= 3
	}
	return found, clamp(score, 0, MaxBioScore)
}

// EngagementRate is the mean engagement per tweet as a percentage of followers.
func EngagementRate(tweets []Tweet, followers int) float64 {
	if len(tweets) == 0 || followers <= 0 {
		return 0
	}
	total := 0
	for _, t := range tweets {
		total += t.Engagement()
	}
	avg := float64(total) / float64(len(tweets))
	return avg / float64(followers) * 100
}

// EngagementScore scores recent tweet engagement relative to followers (0-20).
func EngagementScore(tweets []Tweet, followers int) int {
	if len(tweets) == 0 || followers <= 0 {
		return 0
	}
	rate := EngagementRate(tweets, followers)
	switch {
	case rate >= 5.0:
		return MaxEngagementScore
	case rate >= 2.0:
		return 15
	case rate >= 1.0:
		return 10
	case rate >= 0.1:
		return 5
	default:
		return 0
	}
}

// TrustedFollowerScore gives 10 points per trusted follower, capped at 20.
func TrustedFollowerScore(n int) int {
	if n <= 0 {
		return 0
	}
	return clamp(n*10, 0, MaxTrustedScore)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
