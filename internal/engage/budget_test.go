package engage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rugguard/internal/config"
	"rugguard/internal/store/journal"
)

func TestShouldAllowReplyRespectsBudgets(t *testing.T) {
	db, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.EngagementConfig{MaxRepliesPerHour: 2, MaxRepliesPerDay: 3}

	ok, err := ShouldAllowReply(ctx, db, cfg, now)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, RecordReply(ctx, db, now))
	require.NoError(t, RecordReply(ctx, db, now.Add(5*time.Minute)))
	ok, err = ShouldAllowReply(ctx, db, cfg, now.Add(10*time.Minute))
	require.NoError(t, err)
	require.False(t, ok, "hourly budget should block")

	require.NoError(t, RecordReply(ctx, db, now.Add(65*time.Minute)))
	ok, err = ShouldAllowReply(ctx, db, cfg, now.Add(70*time.Minute))
	require.NoError(t, err)
	require.False(t, ok, "daily budget should block")

	ok, err = ShouldAllowReply(ctx, db, cfg, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, ok, "next day starts fresh")
}

func TestShouldAllowReplyUnlimited(t *testing.T) {
	ok, err := ShouldAllowReply(context.Background(), nil, config.EngagementConfig{MaxRepliesPerHour: 1}, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, RecordReply(context.Background(), nil, time.Now()))
}
