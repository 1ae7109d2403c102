package analysis

import (
	"fmt"
	"strings"

	"rugguard/internal/util"
)

// Reply length limits, in user-perceived characters.
const (
	MaxReplyLen   = 280
	truncateKeep  = 275
	truncateTrail = "..."
)

func statusEmoji(score int) string {
	switch {
	case score >= 80:
		return "🟢"
	case score >= 60:
		return "🟡"
	case score >= 40:
		return "🟠"
	default:
		return "🔴"
	}
}

// RenderReply formats r as reply text. Over-long text is tail-cut.
func RenderReply(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s @%s Trust Analysis", statusEmoji(r.TrustScore), r.Username)
	if r.Vouched {
		b.WriteString(" ✅ VOUCHED")
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "📊 Score: %d/100\n", r.TrustScore)
	fmt.Fprintf(&b, "📅 Account Age: %d days\n", r.AccountAgeDays)
	fmt.Fprintf(&b, "👥 Follower Ratio: %.1f\n", r.FollowerRatio)
	if r.TrustedFollowers > 0 {
		fmt.Fprintf(&b, "🤝 Trusted Connections: %d\n", r.TrustedFollowers)
	}
	if len(r.GreenFlags) > 0 {
		fmt.Fprintf(&b, "✅ %s\n", strings.Join(firstN(r.GreenFlags, 2), ", "))
	}
	if len(r.RedFlags) > 0 {
		fmt.Fprintf(&b, "⚠️ %s\n", strings.Join(firstN(r.RedFlags, 2), ", "))
	}
	fmt.Fprintf(&b, "\n%s", r.Summary)
	return util.Truncate(b.String(), MaxReplyLen, truncateKeep, truncateTrail)
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
