package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rugguard/internal/analysis"
	"rugguard/internal/config"
	"rugguard/internal/metrics"
	"rugguard/internal/model"
	"rugguard/internal/store/journal"
	"rugguard/internal/xclient"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type postedReply struct{ inReplyTo, text string }

// fakeClient is an in-memory X API.
type fakeClient struct {
	mu           sync.Mutex
	me           model.User
	mentions     []model.Tweet
	mentionsErr  error
	mentionCalls int
	tweets       map[string]model.Tweet
	users        map[string]model.User
	followers    map[string][]string
	postErr      error
	posted       []postedReply
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		me:        model.User{ID: "bot", Username: "rugguardbot"},
		tweets:    map[string]model.Tweet{},
		users:     map[string]model.User{},
		followers: map[string][]string{},
	}
}

func (f *fakeClient) GetMentions(ctx context.Context, userID string, limit int) ([]model.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentionCalls++
	if f.mentionsErr != nil {
		return nil, f.mentionsErr
	}
	return append([]model.Tweet(nil), f.mentions...), nil
}

func (f *fakeClient) GetTweet(ctx context.Context, id string) (model.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tweets[id]
	if !ok {
		return model.Tweet{}, xclient.ErrNotFound
	}
	return t, nil
}

func (f *fakeClient) GetUserByID(ctx context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, xclient.ErrNotFound
	}
	return u, nil
}

func (f *fakeClient) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	if strings.EqualFold(f.me.Username, username) {
		return f.me, nil
	}
	return model.User{}, xclient.ErrNotFound
}

func (f *fakeClient) GetMe(ctx context.Context) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.me, nil
}

func (f *fakeClient) GetUserTweets(ctx context.Context, userID string, limit int) ([]model.Tweet, error) {
	return nil, nil
}

func (f *fakeClient) GetFollowers(ctx context.Context, userID string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.followers[userID], nil
}

func (f *fakeClient) PostReply(ctx context.Context, inReplyTo, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posted = append(f.posted, postedReply{inReplyTo, text})
	return "reply-" + inReplyTo, nil
}

func (f *fakeClient) replies() []postedReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedReply(nil), f.posted...)
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mentionCalls
}

type fakeList struct {
	mu        sync.Mutex
	handles   map[string]bool
	refreshes int
}

func (l *fakeList) Contains(h string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[strings.ToLower(strings.TrimPrefix(h, "@"))]
}

func (l *fakeList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handles)
}

func (l *fakeList) Refresh(context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshes++
	return true
}

// addTarget registers an established account u<n> with an original post o<n>.
func addTarget(f *fakeClient, n string) {
	f.users["u"+n] = model.User{
		ID: "u" + n, Username: "alice" + n, Description: "blockchain developer and founder",
		CreatedAt: now.Add(-400 * 24 * time.Hour), FollowersCount: 2000, FollowingCount: 1000, Verified: true,
	}
	f.tweets["o"+n] = model.Tweet{ID: "o" + n, AuthorID: "u" + n, CreatedAt: now.Add(-2 * time.Hour)}
}

func triggerFor(id, orig string) model.Tweet {
	t := model.Tweet{ID: id, AuthorID: "asker", Text: "@rugguardbot riddle me this", CreatedAt: now.Add(-time.Minute)}
	if orig != "" {
		t.ReferencedTweets = []model.ReferencedTweet{{Type: model.RefRepliedTo, ID: orig}}
	}
	return t
}

func analysesTotal() float64 {
	var sum float64
	for _, tier := range []analysis.Tier{analysis.HighlyTrusted, analysis.ModeratelyTrusted, analysis.Neutral, analysis.LowTrust, analysis.HighRisk} {
		sum += testutil.ToFloat64(metrics.Analyses.WithLabelValues(string(tier)))
	}
	return sum
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Storage.DBPath = ""
	return cfg
}

func newTestBot(t *testing.T, cfg config.Config, f *fakeClient, db *journal.DB) (*Bot, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(now)
	b, err := NewBot(cfg, Deps{Client: f, TrustList: &fakeList{}, Journal: db, Clock: clock})
	require.NoError(t, err)
	return b, clock
}

func TestRunOnceRepliesToTrigger(t *testing.T) {
	db, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	f := newFakeClient()
	addTarget(f, "1")
	f.mentions = []model.Tweet{triggerFor("m1", "o1")}
	b, _ := newTestBot(t, testConfig(), f, db)

	require.NoError(t, b.RunOnce(context.Background()))
	assert.Equal(t, "bot", b.BotID())

	got := f.replies()
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].inReplyTo)
	assert.Contains(t, got[0].text, "@alice1 Trust Analysis")
	assert.Contains(t, got[0].text, "Established account")
	assert.True(t, b.processed.Contains("m1"))
	assert.True(t, b.cooldown.IsOnCooldown("u1", now))

	recs, err := db.RecentAnalyses(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "m1", recs[0].TriggerID)
	assert.Equal(t, "reply-m1", recs[0].ReplyID)
	assert.Equal(t, "alice1", recs[0].Username)

	// The same mention on the next poll is already processed.
	require.NoError(t, b.RunOnce(context.Background()))
	assert.Len(t, f.replies(), 1)
}

func TestRunOnceGateAndPhraseFiltering(t *testing.T) {
	f := newFakeClient()
	addTarget(f, "1")
	stale := triggerFor("m-stale", "o1")
	stale.CreatedAt = now.Add(-2 * time.Hour)
	rt := triggerFor("m-rt", "o1")
	rt.Text = "RT @someone: riddle me this"
	other := triggerFor("m-other", "o1")
	other.Text = "@rugguardbot hello there"
	f.mentions = []model.Tweet{stale, rt, other}
	b, _ := newTestBot(t, testConfig(), f, nil)

	require.NoError(t, b.RunOnce(context.Background()))
	assert.Empty(t, f.replies())
	assert.False(t, b.processed.Contains("m-stale"))
	assert.False(t, b.processed.Contains("m-other"), "only recognized triggers are marked")
}

func TestRunOnceMissingReferenceIsSkip(t *testing.T) {
	f := newFakeClient()
	f.mentions = []model.Tweet{triggerFor("m1", ""), triggerFor("m2", "deleted")}
	b, _ := newTestBot(t, testConfig(), f, nil)

	require.NoError(t, b.RunOnce(context.Background()))
	assert.Empty(t, f.replies())
	assert.True(t, b.processed.Contains("m1"))
	assert.True(t, b.processed.Contains("m2"))
}

func TestCooldownSkipsSecondTriggerForSameAccount(t *testing.T) {
	f := newFakeClient()
	addTarget(f, "1")
	f.mentions = []model.Tweet{triggerFor("m1", "o1"), triggerFor("m2", "o1")}
	b, clock := newTestBot(t, testConfig(), f, nil)

	require.NoError(t, b.RunOnce(context.Background()))
	assert.Len(t, f.replies(), 1)
	assert.True(t, b.processed.Contains("m2"))

	clock.Advance(5 * time.Minute)
	f.mu.Lock()
	f.mentions = []model.Tweet{triggerFor("m3", "o1")}
	f.mu.Unlock()
	require.NoError(t, b.RunOnce(context.Background()))
	assert.Len(t, f.replies(), 2, "cooldown elapsed")
}

func TestFailedReplyMarksProcessedButNotCooldown(t *testing.T) {
	f := newFakeClient()
	addTarget(f, "1")
	f.mentions = []model.Tweet{triggerFor("m1", "o1")}
	f.postErr = errors.New("403 duplicate content")
	b, _ := newTestBot(t, testConfig(), f, nil)
	before := analysesTotal()

	err := b.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, b.processed.Contains("m1"))
	assert.False(t, b.cooldown.IsOnCooldown("u1", now))
	assert.Equal(t, before+1, analysesTotal())

	// A new trigger for the same account is answered right away.
	f.mu.Lock()
	f.postErr = nil
	f.mentions = append(f.mentions, triggerFor("m2", "o1"))
	f.mu.Unlock()
	require.NoError(t, b.RunOnce(context.Background()))
	got := f.replies()
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].inReplyTo)
}

func TestReplyBudgetSkips(t *testing.T) {
	db, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	f := newFakeClient()
	addTarget(f, "1")
	addTarget(f, "2")
	f.mentions = []model.Tweet{triggerFor("m1", "o1"), triggerFor("m2", "o2")}
	cfg := testConfig()
	cfg.Engagement.MaxRepliesPerHour = 1
	b, _ := newTestBot(t, cfg, f, db)

	require.NoError(t, b.RunOnce(context.Background()))
	assert.Len(t, f.replies(), 1)
	assert.True(t, b.processed.Contains("m2"))
}

func TestTrustedFollowersResolvedWhenEnabled(t *testing.T) {
	f := newFakeClient()
	addTarget(f, "1")
	f.followers["u1"] = []string{"Trusted1", "trusted2", "rando"}
	f.mentions = []model.Tweet{triggerFor("m1", "o1")}
	list := &fakeList{handles: map[string]bool{"trusted1": true, "trusted2": true}}
	b, err := NewBot(testConfig(), Deps{
		Client: f, TrustList: list, Resolver: analysis.HandleResolver{}, Clock: clockwork.NewFakeClockAt(now),
	})
	require.NoError(t, err)

	require.NoError(t, b.RunOnce(context.Background()))
	got := f.replies()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].text, "✅ VOUCHED")
	assert.Contains(t, got[0].text, "Trusted Connections: 2")
}

func TestStepSwitchesBetweenSteadyAndBackoff(t *testing.T) {
	f := newFakeClient()
	f.mentionsErr = errors.New("503")
	cfg := testConfig()
	b, _ := newTestBot(t, cfg, f, nil)

	assert.Equal(t, cfg.Polling.RetryInterval, b.step(context.Background()))
	assert.Equal(t, Backoff, b.State())

	f.mu.Lock()
	f.mentionsErr = nil
	f.mu.Unlock()
	assert.Equal(t, cfg.Polling.Interval, b.step(context.Background()))
	assert.Equal(t, Steady, b.State())
}

func TestBotIDFromConfiguredUsername(t *testing.T) {
	f := newFakeClient()
	f.me = model.User{ID: "other"}
	f.users["bot"] = model.User{ID: "bot", Username: "RugguardBot"}
	cfg := testConfig()
	cfg.Account.Username = "rugguardbot"
	b, _ := newTestBot(t, cfg, f, nil)

	require.NoError(t, b.RunOnce(context.Background()))
	assert.Equal(t, "bot", b.BotID())
}

func TestRunPollsOnClock(t *testing.T) {
	f := newFakeClient()
	list := &fakeList{}
	clock := clockwork.NewFakeClockAt(now)
	cfg := testConfig()
	b, err := NewBot(cfg, Deps{Client: f, TrustList: list, Clock: clock})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	clock.BlockUntil(1)
	assert.Equal(t, 1, f.calls())
	clock.Advance(cfg.Polling.Interval)
	clock.BlockUntil(1)
	assert.Equal(t, 2, f.calls())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	list.mu.Lock()
	assert.Equal(t, 1, list.refreshes, "startup refresh only")
	list.mu.Unlock()
}

func TestNewBotRequiresCollaborators(t *testing.T) {
	_, err := NewBot(testConfig(), Deps{})
	assert.Error(t, err)
}
