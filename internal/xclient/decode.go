package xclient

import (
	"strings"
	"time"

	"rugguard/internal/model"
)

// apiProblem is an entry of the v2 "errors" array. The API answers
// lookups of deleted or unknown objects with 200 and one of these.
type apiProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

func (p apiProblem) isNotFound() bool {
	return strings.Contains(p.Title, "Not Found") || strings.HasSuffix(p.Type, "/resource-not-found")
}

type itemEnvelope[T any] struct {
	Data   *T           `json:"data"`
	Errors []apiProblem `json:"errors"`
}

func (e *itemEnvelope[T]) notFound() bool { return e.Data == nil && len(e.Errors) > 0 }

type listEnvelope[T any] struct {
	Data   []T          `json:"data"`
	Errors []apiProblem `json:"errors"`
}

func (e *listEnvelope[T]) notFound() bool {
	if len(e.Data) > 0 {
		return false
	}
	for _, p := range e.Errors {
		if p.isNotFound() {
			return true
		}
	}
	return false
}

type rawUser struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Username        string    `json:"username"`
	CreatedAt       time.Time `json:"created_at"`
	Verified        bool      `json:"verified"`
	Description     string    `json:"description"`
	ProfileImageURL string    `json:"profile_image_url"`
	PublicMetrics   struct {
		FollowersCount int `json:"followers_count"`
		FollowingCount int `json:"following_count"`
		TweetCount     int `json:"tweet_count"`
	} `json:"public_metrics"`
}

func (d rawUser) toUser() model.User {
	return model.User{
		ID:              d.ID,
		Username:        d.Username,
		Name:            d.Name,
		Description:     d.Description,
		CreatedAt:       d.CreatedAt,
		FollowersCount:  d.PublicMetrics.FollowersCount,
		FollowingCount:  d.PublicMetrics.FollowingCount,
		TweetCount:      d.PublicMetrics.TweetCount,
		Verified:        d.Verified,
		ProfileImageURL: d.ProfileImageURL,
	}
}

type rawTweet struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	AuthorID      string    `json:"author_id"`
	CreatedAt     time.Time `json:"created_at"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
		RetweetCount int `json:"retweet_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

func (d rawTweet) toTweet() model.Tweet {
	t := model.Tweet{
		ID:           d.ID,
		AuthorID:     d.AuthorID,
		Text:         d.Text,
		CreatedAt:    d.CreatedAt,
		LikeCount:    d.PublicMetrics.LikeCount,
		ReplyCount:   d.PublicMetrics.ReplyCount,
		RetweetCount: d.PublicMetrics.RetweetCount,
		QuoteCount:   d.PublicMetrics.QuoteCount,
	}
	for _, r := range d.ReferencedTweets {
		t.ReferencedTweets = append(t.ReferencedTweets, model.ReferencedTweet{Type: r.Type, ID: r.ID})
	}
	return t
}

func toTweets(in []rawTweet) []model.Tweet {
	out := make([]model.Tweet, 0, len(in))
	for _, d := range in {
		out = append(out, d.toTweet())
	}
	return out
}
