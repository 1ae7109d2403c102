package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rugguard/internal/model"
)

type seenSet map[string]bool

func (s seenSet) Contains(id string) bool { return s[id] }

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func TestCheckRejectsEachIndependently(t *testing.T) {
	g := NewGate("riddle me this", time.Hour)
	fresh := model.Tweet{ID: "1", Text: "@bot riddle me this", CreatedAt: now.Add(-time.Minute)}

	assert.Equal(t, Accept, g.Check(fresh, seenSet{}, now))
	assert.Equal(t, RejectProcessed, g.Check(fresh, seenSet{"1": true}, now))

	stale := fresh
	stale.CreatedAt = now.Add(-time.Hour - time.Second)
	assert.Equal(t, RejectStale, g.Check(stale, seenSet{}, now))

	rt := fresh
	rt.Text = "RT @someone: riddle me this"
	assert.Equal(t, RejectRetweet, g.Check(rt, seenSet{}, now))
}

func TestCheckShortCircuitsInOrder(t *testing.T) {
	g := NewGate("riddle me this", time.Hour)
	all := model.Tweet{ID: "9", Text: "RT @x riddle me this", CreatedAt: now.Add(-2 * time.Hour)}
	assert.Equal(t, RejectProcessed, g.Check(all, seenSet{"9": true}, now))
	assert.Equal(t, RejectStale, g.Check(all, seenSet{}, now))
	assert.False(t, g.ShouldProcess(all, nil, now))
}

func TestCheckWindowBoundaryIsInclusive(t *testing.T) {
	g := NewGate("x", time.Hour)
	edge := model.Tweet{ID: "1", Text: "x", CreatedAt: now.Add(-time.Hour)}
	assert.True(t, g.ShouldProcess(edge, nil, now))
}

func TestRetweetPrefixMustLead(t *testing.T) {
	g := NewGate("x", time.Hour)
	tw := model.Tweet{ID: "1", Text: "look RT @someone", CreatedAt: now}
	assert.Equal(t, Accept, g.Check(tw, nil, now))
}

func TestIsTrigger(t *testing.T) {
	g := NewGate("riddle me this", time.Hour)
	assert.True(t, g.IsTrigger(model.Tweet{Text: "Hey @bot RIDDLE ME THIS please"}))
	assert.True(t, g.IsTrigger(model.Tweet{Text: "@bot riddle me thisplease"}))
	assert.False(t, g.IsTrigger(model.Tweet{Text: "Hey @bot what is this"}))
	assert.False(t, NewGate("", time.Hour).IsTrigger(model.Tweet{Text: "anything"}))
}

func TestExtractOriginalID(t *testing.T) {
	id, ok := ExtractOriginalID(model.Tweet{ReferencedTweets: []model.ReferencedTweet{
		{Type: "quoted", ID: "q"},
		{Type: "replied_to", ID: "orig"},
		{Type: "replied_to", ID: "second"},
	}})
	assert.True(t, ok)
	assert.Equal(t, "orig", id)

	_, ok = ExtractOriginalID(model.Tweet{})
	assert.False(t, ok)

	_, ok = ExtractOriginalID(model.Tweet{ReferencedTweets: []model.ReferencedTweet{{Type: "quoted", ID: "q"}}})
	assert.False(t, ok)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "stale", RejectStale.String())
	assert.Equal(t, "accept", Accept.String())
}
