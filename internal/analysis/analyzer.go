package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"rugguard/internal/model"
)

// SubScores is the per-heuristic breakdown of a trust score.
type SubScores struct {
	Age        int `json:"age"`
	Ratio      int `json:"ratio"`
	Bio        int `json:"bio"`
	Engagement int `json:"engagement"`
	Trusted    int `json:"trusted"`
}

// Total sums the sub-scores. Each is capped, so the total stays within 0-100.
func (s SubScores) Total() int {
	return s.Age + s.Ratio + s.Bio + s.Engagement + s.Trusted
}

// Result is the outcome of one trust analysis. It is not modified after Evaluate returns.
type Result struct {
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	TrustScore       int       `json:"trust_score"`
	Scores           SubScores `json:"scores"`
	AccountAgeDays   int       `json:"account_age_days"`
	FollowerRatio    float64   `json:"follower_ratio"`
	EngagementRate   float64   `json:"engagement_rate"`
	TrustedFollowers int       `json:"trusted_followers"`
	BioKeywords      []string  `json:"bio_keywords"`
	RedFlags         []string  `json:"red_flags"`
	GreenFlags       []string  `json:"green_flags"`
	Tier             Tier      `json:"tier"`
	Summary          string    `json:"summary"`
	Vouched          bool      `json:"vouched"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// Input is everything Evaluate needs. Gathering it is the caller's job.
type Input struct {
	User             model.User
	Tweets           []model.Tweet
	TrustedFollowers int
	OnTrustList      bool
	Now              time.Time
}

// Evaluate is the pure scoring engine: same input, same result.
func Evaluate(in Input) Result {
	u := in.User
	ageDays := model.AccountAgeDays(u.CreatedAt, in.Now)
	keywords, bio := model.BioScore(u.Description)
	scores := SubScores{
		Age:        model.AgeScore(ageDays),
		Ratio:      model.FollowerRatioScore(u.FollowersCount, u.FollowingCount),
		Bio:        bio,
		Engagement: model.EngagementScore(in.Tweets, u.FollowersCount),
		Trusted:    model.TrustedFollowerScore(in.TrustedFollowers),
	}
	ratio := model.FollowerRatio(u.FollowersCount, u.FollowingCount)

	var red, green []string
	if ageDays < 30 {
		red = append(red, "Very new account (less than 30 days)")
	} else if ageDays > 365 {
		green = append(green, fmt.Sprintf("Established account (%d days old)", ageDays))
	}
	if ratio < 0.1 {
		red = append(red, "Poor follower/following ratio")
	} else if ratio >= 2.0 {
		green = append(green, "Good follower/following ratio")
	}
	if u.Verified {
		green = append(green, "Verified account")
	}
	if in.TrustedFollowers >= 2 {
		green = append(green, fmt.Sprintf("Followed by %d trusted accounts", in.TrustedFollowers))
	}

	total := scores.Total()
	vouched := in.OnTrustList || in.TrustedFollowers >= 2
	tier := Classify(total)
	return Result{
		UserID:           u.ID,
		Username:         u.Username,
		TrustScore:       total,
		Scores:           scores,
		AccountAgeDays:   ageDays,
		FollowerRatio:    ratio,
		EngagementRate:   model.EngagementRate(in.Tweets, u.FollowersCount),
		TrustedFollowers: in.TrustedFollowers,
		BioKeywords:      keywords,
		RedFlags:         red,
		GreenFlags:       green,
		Tier:             tier,
		Summary:          Summary(tier, total, vouched),
		Vouched:          vouched,
		AnalyzedAt:       in.Now,
	}
}

// TrustList is the read side of the trust list plus its refresh.
type TrustList interface {
	Contains(handle string) bool
	Len() int
	Refresh(ctx context.Context) bool
}

// Analyzer gathers the stateful inputs (trust list membership, trusted
// followers, current time) and hands them to Evaluate.
type Analyzer struct {
	list     TrustList
	resolver FollowerResolver
	clock    clockwork.Clock
}

// NewAnalyzer returns an Analyzer. A nil resolver means NoopResolver.
func NewAnalyzer(list TrustList, resolver FollowerResolver, clock clockwork.Clock) *Analyzer {
	if resolver == nil {
		resolver = NoopResolver{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Analyzer{list: list, resolver: resolver, clock: clock}
}

// Analyze scores u from its recent tweets and follower handles.
// An empty trust list is refreshed once before trusted followers are counted.
func (a *Analyzer) Analyze(ctx context.Context, u model.User, tweets []model.Tweet, followers []string) Result {
	if a.list.Len() == 0 {
		a.list.Refresh(ctx)
	}
	trusted := a.resolver.TrustedFollowers(ctx, followers, a.list)
	return Evaluate(Input{
		User:             u,
		Tweets:           tweets,
		TrustedFollowers: trusted,
		OnTrustList:      a.list.Contains(u.Username),
		Now:              a.clock.Now(),
	})
}
