package model

import "time"

// User represents the subset of X account fields the trust analysis reads.
type User struct {
	ID              string
	Username        string
	Name            string
	Description     string
	CreatedAt       time.Time
	FollowersCount  int
	FollowingCount  int
	TweetCount      int
	Verified        bool
	ProfileImageURL string
}

// ReferencedTweet is a relation from a tweet to another one
// (replied_to, quoted, retweeted).
type ReferencedTweet struct {
	Type string
	ID   string
}

const RefRepliedTo = "replied_to"

// Tweet represents a subset of X tweet fields used by the bot.
type Tweet struct {
	ID               string
	AuthorID         string
	Text             string
	CreatedAt        time.Time
	LikeCount        int
	ReplyCount       int
	RetweetCount     int
	QuoteCount       int
	ReferencedTweets []ReferencedTweet
}

// Engagement is likes + retweets + replies. Quotes are not counted.
func (t Tweet) Engagement() int {
	return t.LikeCount + t.RetweetCount + t.ReplyCount
}
