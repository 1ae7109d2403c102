package metrics

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rugguard_ticks_total",
		Help: "Total mention poll ticks",
	})
	TickErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rugguard_tick_errors_total",
		Help: "Total poll ticks that ended in backoff",
	})
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rugguard_tick_duration_seconds",
		Help:    "Poll tick duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	GateRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_gate_rejections_total",
		Help: "Mentions rejected by the trigger gate",
	}, []string{"reason"})
	Triggers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rugguard_triggers_total",
		Help: "Mentions recognized as triggers",
	})
	Skips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_skips_total",
		Help: "Triggers skipped without analysis",
	}, []string{"reason"})
	Analyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_analyses_total",
		Help: "Completed trust analyses by tier",
	}, []string{"tier"})
	Replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_replies_total",
		Help: "Reply attempts by result",
	}, []string{"result"})
	TrustListRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_trustlist_refreshes_total",
		Help: "Trust list refresh attempts by result",
	}, []string{"result"})
	TrustListSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rugguard_trustlist_size",
		Help: "Handles currently on the trust list",
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	APIBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rugguard_api_breaker_state",
		Help: "X API circuit breaker state (0 closed, 1 half-open, 2 open)",
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rugguard_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(Ticks, TickErrors, TickDuration, GateRejections, Triggers, Skips,
		Analyses, Replies, TrustListRefreshes, TrustListSize, APIRetries, APIBreakerState, CommandRuns, CommandErrors)
}

// Handler serves /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// Serve runs a metrics HTTP server on addr (e.g., ":9090") until ctx is done.
// An empty addr falls back to METRICS_ADDR; if that is empty too, Serve blocks until ctx is done.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		<-ctx.Done()
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ObserveTickDuration records how long one poll tick took.
func ObserveTickDuration(d time.Duration) {
	TickDuration.Observe(d.Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

// SetAPIBreakerState records the X API circuit breaker state.
func SetAPIBreakerState(state int) { APIBreakerState.Set(float64(state)) }

// IncCommandRun increments the invocation counter for a CLI command.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError increments the failure counter for a CLI command.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
