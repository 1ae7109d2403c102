package xclient

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"rugguard/internal/logging"
	"rugguard/internal/metrics"
)

// breakerTrips is how many consecutive failed calls open the breaker.
const breakerTrips = 5

// newBreaker opens after consecutive transport/5xx/429 failures and probes
// again after cooldown. Missing data and client errors do not count.
func newBreaker(cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "x_api",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerTrips
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("api_breaker_state", map[string]any{"from": from.String(), "to": to.String()})
			metrics.SetAPIBreakerState(int(to))
		},
	})
}

func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoUserAuth) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status < http.StatusInternalServerError && apiErr.Status != http.StatusTooManyRequests
	}
	return false
}
