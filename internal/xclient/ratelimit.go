package xclient

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// Client-side request pacing. X applies per-endpoint 15-minute windows on
// top of this; those surface as 429s and go through doWithRetry.
const (
	defaultRPS   = 2.0
	defaultBurst = 10
)

// newDefaultLimiter creates a rate limiter, honouring X_API_RPS and X_API_BURST.
func newDefaultLimiter() *rate.Limiter {
	return newLimiter(envFloat("X_API_RPS", defaultRPS), getEnvInt("X_API_BURST", defaultBurst))
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
