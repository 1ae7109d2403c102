package analysis

import (
	"context"
	"fmt"
	"strings"
)

// FollowerResolver counts how many of an account's followers are on the trust list.
// followers holds whatever the X client returned (handles for the v2 followers endpoint).
type FollowerResolver interface {
	TrustedFollowers(ctx context.Context, followers []string, list TrustList) int
}

// NoopResolver always reports zero trusted followers.
type NoopResolver struct{}

func (NoopResolver) TrustedFollowers(context.Context, []string, TrustList) int { return 0 }

// HandleResolver counts distinct follower handles present on the trust list.
type HandleResolver struct{}

func (HandleResolver) TrustedFollowers(_ context.Context, followers []string, list TrustList) int {
	seen := make(map[string]struct{}, len(followers))
	n := 0
	for _, f := range followers {
		h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), "@")
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		if list.Contains(h) {
			n++
		}
	}
	return n
}

// ResolverByName maps the analysis.followerResolver setting to an implementation.
func ResolverByName(name string) (FollowerResolver, error) {
	switch name {
	case "", "none":
		return NoopResolver{}, nil
	case "handles":
		return HandleResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown follower resolver %q", name)
	}
}
