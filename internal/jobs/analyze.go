package jobs

import (
	"context"
	"fmt"

	"rugguard/internal/analysis"
	"rugguard/internal/config"
	"rugguard/internal/model"
	"rugguard/internal/xclient"
)

// AnalyzeAccount fetches u's recent posts (and followers when withFollowers
// is set) and scores the account.
func AnalyzeAccount(ctx context.Context, client xclient.XClient, a *analysis.Analyzer, cfg config.AnalysisConfig, u model.User, withFollowers bool) (analysis.Result, error) {
	tweets, err := client.GetUserTweets(ctx, u.ID, cfg.RecentPosts)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("fetch posts of %s: %w", u.ID, err)
	}
	var followers []string
	if withFollowers {
		followers, err = client.GetFollowers(ctx, u.ID, cfg.FollowersLimit)
		if err != nil {
			return analysis.Result{}, fmt.Errorf("fetch followers of %s: %w", u.ID, err)
		}
	}
	return a.Analyze(ctx, u, tweets, followers), nil
}

// NeedsFollowers reports whether r reads follower handles at all.
func NeedsFollowers(r analysis.FollowerResolver) bool {
	switch r.(type) {
	case nil, analysis.NoopResolver, *analysis.NoopResolver:
		return false
	}
	return true
}
