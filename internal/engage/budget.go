package engage

import (
	"context"
	"time"

	"rugguard/internal/config"
)

// ActionReply is the action type recorded for each posted reply.
const ActionReply = "reply"

// ActionLog counts and records timestamped actions.
type ActionLog interface {
	CountActionsWithin(ctx context.Context, start, end time.Time, typ string) (int, error)
	PutAction(ctx context.Context, ts time.Time, typ string) error
}

// ShouldAllowReply checks hourly/daily reply budgets before posting.
// A nil log or zero limits always allow.
func ShouldAllowReply(ctx context.Context, log ActionLog, cfg config.EngagementConfig, now time.Time) (bool, error) {
	if log == nil || (cfg.MaxRepliesPerHour <= 0 && cfg.MaxRepliesPerDay <= 0) {
		return true, nil
	}
	now = now.UTC()
	startHour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if cfg.MaxRepliesPerHour > 0 {
		n, err := log.CountActionsWithin(ctx, startHour, startHour.Add(time.Hour), ActionReply)
		if err != nil {
			return false, err
		}
		if n >= cfg.MaxRepliesPerHour {
			return false, nil
		}
	}
	if cfg.MaxRepliesPerDay > 0 {
		n, err := log.CountActionsWithin(ctx, startDay, startDay.Add(24*time.Hour), ActionReply)
		if err != nil {
			return false, err
		}
		if n >= cfg.MaxRepliesPerDay {
			return false, nil
		}
	}
	return true, nil
}

// RecordReply logs a posted reply against the budget.
func RecordReply(ctx context.Context, log ActionLog, now time.Time) error {
	if log == nil {
		return nil
	}
	return log.PutAction(ctx, now, ActionReply)
}
