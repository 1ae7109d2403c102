package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"rugguard/internal/analysis"
	"rugguard/internal/config"
	"rugguard/internal/engage"
	"rugguard/internal/logging"
	"rugguard/internal/metrics"
	"rugguard/internal/model"
	"rugguard/internal/store/journal"
	"rugguard/internal/trigger"
	"rugguard/internal/xclient"
)

// State is the polling loop's control state.
type State int

const (
	Steady State = iota
	Backoff
)

func (s State) String() string {
	if s == Backoff {
		return "backoff"
	}
	return "steady"
}

// Deps are the collaborators a Bot drives. Journal and Resolver are optional.
type Deps struct {
	Client    xclient.XClient
	TrustList analysis.TrustList
	Resolver  analysis.FollowerResolver
	Journal   *journal.DB
	Clock     clockwork.Clock
}

// Bot polls mentions and answers trigger phrases with trust analyses.
// All pipeline state is owned by the single Run loop.
type Bot struct {
	cfg       config.Config
	client    xclient.XClient
	list      analysis.TrustList
	analyzer  *analysis.Analyzer
	followers bool
	gate      *trigger.Gate
	cooldown  *engage.Cooldown
	processed *engage.Processed
	journal   *journal.DB
	actions   engage.ActionLog
	clock     clockwork.Clock

	botID       string
	state       State
	lastRefresh time.Time
}

func NewBot(cfg config.Config, d Deps) (*Bot, error) {
	if d.Client == nil || d.TrustList == nil {
		return nil, errors.New("bot needs an X client and a trust list")
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Resolver == nil {
		d.Resolver = analysis.NoopResolver{}
	}
	processed, err := engage.NewProcessed(cfg.Dedup.Capacity)
	if err != nil {
		return nil, fmt.Errorf("processed set: %w", err)
	}
	b := &Bot{
		cfg:       cfg,
		client:    d.Client,
		list:      d.TrustList,
		analyzer:  analysis.NewAnalyzer(d.TrustList, d.Resolver, d.Clock),
		followers: NeedsFollowers(d.Resolver),
		gate:      trigger.NewGate(cfg.Trigger.Phrase, cfg.Trigger.Freshness),
		cooldown:  engage.NewCooldown(cfg.Analysis.Cooldown),
		processed: processed,
		clock:     d.Clock,
	}
	if d.Journal != nil {
		b.journal = d.Journal
		b.actions = d.Journal
	}
	return b, nil
}

func (b *Bot) State() State  { return b.state }
func (b *Bot) BotID() string { return b.botID }

// Run refreshes the trust list, then polls until ctx is cancelled.
// A failed tick switches to the retry interval; it never ends the loop.
func (b *Bot) Run(ctx context.Context) error {
	logging.Info("bot_start", map[string]any{
		"phrase":   b.cfg.Trigger.Phrase,
		"interval": b.cfg.Polling.Interval.String(),
		"cooldown": b.cfg.Analysis.Cooldown.String(),
	})
	b.refreshTrustList(ctx)
	for {
		delay := b.step(ctx)
		select {
		case <-ctx.Done():
			logging.Info("bot_stop", nil)
			return ctx.Err()
		case <-b.clock.After(delay):
		}
	}
}

// step runs one tick and returns how long to wait before the next.
func (b *Bot) step(ctx context.Context) time.Duration {
	start := b.clock.Now()
	metrics.Ticks.Inc()
	b.cooldown.Sweep(start)
	if ri := b.cfg.TrustList.RefreshInterval; ri > 0 && start.Sub(b.lastRefresh) >= ri {
		b.refreshTrustList(ctx)
	}
	err := b.RunOnce(ctx)
	metrics.ObserveTickDuration(b.clock.Since(start))
	if err != nil {
		metrics.TickErrors.Inc()
		if b.state != Backoff {
			logging.Warn("bot_backoff", map[string]any{"retry_in": b.cfg.Polling.RetryInterval.String()})
		}
		b.state = Backoff
		logging.Error("tick_error", map[string]any{"error": err})
		return b.cfg.Polling.RetryInterval
	}
	if b.state == Backoff {
		logging.Info("bot_recovered", nil)
	}
	b.state = Steady
	return b.cfg.Polling.Interval
}

func (b *Bot) refreshTrustList(ctx context.Context) {
	b.lastRefresh = b.clock.Now()
	b.list.Refresh(ctx)
}

// RunOnce fetches mentions once and handles every trigger among them, in order.
// Per-trigger failures are logged and joined into the returned error.
func (b *Bot) RunOnce(ctx context.Context) error {
	if err := b.ensureBotID(ctx); err != nil {
		return err
	}
	tick := uuid.NewString()
	mentions, err := b.client.GetMentions(ctx, b.botID, b.cfg.Trigger.MentionsLimit)
	if err != nil {
		return fmt.Errorf("fetch mentions: %w", err)
	}
	now := b.clock.Now()
	var errs []error
	for _, m := range mentions {
		if d := b.gate.Check(m, b.processed, now); d != trigger.Accept {
			metrics.GateRejections.WithLabelValues(d.String()).Inc()
			continue
		}
		if !b.gate.IsTrigger(m) {
			continue
		}
		// Marked before handling so a failing trigger is never retried.
		b.processed.Add(m.ID)
		metrics.Triggers.Inc()
		if err := b.handleTrigger(ctx, tick, m); err != nil {
			logging.Error("trigger_error", map[string]any{"tick": tick, "trigger_id": m.ID, "error": err})
			errs = append(errs, fmt.Errorf("trigger %s: %w", m.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) ensureBotID(ctx context.Context) error {
	if b.botID != "" {
		return nil
	}
	var (
		me  model.User
		err error
	)
	if b.cfg.Account.Username != "" {
		me, err = b.client.GetUserByUsername(ctx, b.cfg.Account.Username)
	} else {
		me, err = b.client.GetMe(ctx)
	}
	if err != nil {
		return fmt.Errorf("resolve bot account: %w", err)
	}
	b.botID = me.ID
	logging.Info("bot_account", map[string]any{"id": me.ID, "username": me.Username})
	return nil
}

func (b *Bot) skip(reason string, fields map[string]any) {
	metrics.Skips.WithLabelValues(reason).Inc()
	fields["reason"] = reason
	logging.Info("trigger_skip", fields)
}

func (b *Bot) handleTrigger(ctx context.Context, tick string, m model.Tweet) error {
	fields := map[string]any{"tick": tick, "trigger_id": m.ID}
	logging.Info("trigger_detected", map[string]any{"tick": tick, "trigger_id": m.ID, "author_id": m.AuthorID})

	origID, ok := trigger.ExtractOriginalID(m)
	if !ok {
		b.skip("no_reference", fields)
		return nil
	}
	fields["original_id"] = origID
	orig, err := b.client.GetTweet(ctx, origID)
	if errors.Is(err, xclient.ErrNotFound) || (err == nil && orig.AuthorID == "") {
		b.skip("original_not_found", fields)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch original %s: %w", origID, err)
	}
	authorID := orig.AuthorID
	fields["user_id"] = authorID

	now := b.clock.Now()
	if b.cooldown.IsOnCooldown(authorID, now) {
		b.skip("cooldown", fields)
		return nil
	}
	allowed, err := engage.ShouldAllowReply(ctx, b.actions, b.cfg.Engagement, now)
	if err != nil {
		return fmt.Errorf("reply budget: %w", err)
	}
	if !allowed {
		b.skip("budget", fields)
		return nil
	}

	user, err := b.client.GetUserByID(ctx, authorID)
	if errors.Is(err, xclient.ErrNotFound) {
		b.skip("user_not_found", fields)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch user %s: %w", authorID, err)
	}
	res, err := AnalyzeAccount(ctx, b.client, b.analyzer, b.cfg.Analysis, user, b.followers)
	if err != nil {
		return err
	}
	logging.Info("analysis_complete", map[string]any{
		"tick": tick, "username": res.Username, "score": res.TrustScore, "tier": string(res.Tier), "vouched": res.Vouched,
	})
	metrics.Analyses.WithLabelValues(string(res.Tier)).Inc()

	replyID, err := b.client.PostReply(ctx, m.ID, analysis.RenderReply(res))
	if err != nil {
		metrics.Replies.WithLabelValues("error").Inc()
		return fmt.Errorf("post reply: %w", err)
	}
	metrics.Replies.WithLabelValues("ok").Inc()
	done := b.clock.Now()
	b.cooldown.Record(authorID, done)
	logging.Info("reply_posted", map[string]any{"tick": tick, "trigger_id": m.ID, "reply_id": replyID})

	if err := engage.RecordReply(ctx, b.actions, done); err != nil {
		logging.Warn("budget_record_error", map[string]any{"error": err})
	}
	if b.journal != nil {
		rec := journal.Record{
			ID:        uuid.NewString(),
			TS:        done,
			TriggerID: m.ID,
			ReplyID:   replyID,
			UserID:    res.UserID,
			Username:  res.Username,
			Score:     res.TrustScore,
			Tier:      string(res.Tier),
			Vouched:   res.Vouched,
		}
		if err := b.journal.PutAnalysis(ctx, rec, res); err != nil {
			logging.Warn("journal_error", map[string]any{"error": err})
		}
	}
	return nil
}
