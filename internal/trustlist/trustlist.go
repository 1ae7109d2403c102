// Package trustlist holds the curated set of pre-vouched handles.
//
// The list is a plain-text feed with one handle per line. A refresh replaces
// the whole set atomically; a failed refresh leaves the previous set in place.
package trustlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jonboulle/clockwork"

	"rugguard/internal/logging"
	"rugguard/internal/metrics"
)

// Store is safe for concurrent use.
type Store struct {
	url    string
	client *http.Client
	clock  clockwork.Clock

	mu        sync.RWMutex
	handles   map[string]struct{}
	updatedAt time.Time
}

type Option func(*Store)

// WithHTTPClient replaces the retrying client, mainly for tests.
func WithHTTPClient(c *http.Client) Option { return func(s *Store) { s.client = c } }

func WithClock(c clockwork.Clock) Option { return func(s *Store) { s.clock = c } }

// New returns an empty store that fetches from url.
func New(url string, timeout time.Duration, opts ...Option) *Store {
	s := &Store{
		url:     url,
		client:  newRetryingClient(timeout),
		clock:   clockwork.NewRealClock(),
		handles: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func newRetryingClient(timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	c := rc.StandardClient()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.Timeout = timeout
	return c
}

// Refresh fetches the feed and replaces the set. It never returns an error:
// failures are logged and reported as false, and the previous set is kept.
func (s *Store) Refresh(ctx context.Context) bool {
	handles, err := s.fetch(ctx)
	if err != nil {
		metrics.TrustListRefreshes.WithLabelValues("error").Inc()
		logging.Error("trustlist_refresh_failed", map[string]any{"url": s.url, "error": err.Error()})
		return false
	}
	now := s.clock.Now()
	s.mu.Lock()
	s.handles = handles
	s.updatedAt = now
	s.mu.Unlock()
	metrics.TrustListRefreshes.WithLabelValues("ok").Inc()
	metrics.TrustListSize.Set(float64(len(handles)))
	logging.Info("trustlist_refreshed", map[string]any{"count": len(handles)})
	return true
}

func (s *Store) fetch(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("trust list status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse reads one handle per line, lowercased and trimmed. Blank lines are skipped.
func Parse(r io.Reader) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		h := normalize(sc.Text())
		if h == "" {
			continue
		}
		out[h] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Contains is a case-insensitive membership test. A leading @ is ignored.
func (s *Store) Contains(handle string) bool {
	h := strings.TrimPrefix(normalize(handle), "@")
	if h == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handles[h]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}

// UpdatedAt is the time of the last successful refresh, zero if none.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Handles returns the current set sorted.
func (s *Store) Handles() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.handles))
	for h := range s.handles {
		out = append(out, h)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
