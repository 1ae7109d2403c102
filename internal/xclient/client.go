package xclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"rugguard/internal/metrics"
	"rugguard/internal/model"
)

var (
	// ErrNotFound is returned when the API reports no such tweet or user.
	ErrNotFound = errors.New("x api: not found")
	// ErrNoUserAuth is returned by calls that need OAuth 1.0a user credentials.
	ErrNoUserAuth = errors.New("x api: user credentials not configured")
)

// APIError carries a non-retryable error status from the API.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api %s status %d: %s", e.Endpoint, e.Status, e.Body)
}

// XClient defines the X API calls the bot makes.
type XClient interface {
	GetMentions(ctx context.Context, userID string, limit int) ([]model.Tweet, error)
	GetTweet(ctx context.Context, id string) (model.Tweet, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetMe(ctx context.Context) (model.User, error)
	GetUserTweets(ctx context.Context, userID string, limit int) ([]model.Tweet, error)
	// GetFollowers returns follower handles without the leading @.
	GetFollowers(ctx context.Context, userID string, limit int) ([]string, error)
	// PostReply posts text as a reply and returns the new tweet id.
	PostReply(ctx context.Context, inReplyTo, text string) (string, error)
}

const (
	userFields  = "created_at,description,public_metrics,verified,profile_image_url"
	tweetFields = "created_at,author_id,public_metrics,referenced_tweets"
)

// HTTPClient talks to X API v2. Reads use the bearer token; writes and
// /users/me are signed with OAuth 1.0a when a Signer is configured.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	signer      *Signer
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPClient(bearerToken string, signer *Signer) *HTTPClient {
	return &HTTPClient{
		baseURL:     "https://api.twitter.com/2",
		bearerToken: bearerToken,
		signer:      signer,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		breaker:     newBreaker(time.Duration(getEnvInt("X_API_BREAKER_COOLDOWN_S", 60)) * time.Second),
		maxAttempts: getEnvInt("X_API_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("X_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

// bearer and signed are the two ways a request is authorized.
func (c *HTTPClient) bearer(req *http.Request) error {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
	return nil
}

func (c *HTTPClient) signed(req *http.Request) error {
	if c.signer == nil {
		return ErrNoUserAuth
	}
	c.signer.Sign(req)
	return nil
}

func (c *HTTPClient) GetMentions(ctx context.Context, userID string, limit int) ([]model.Tweet, error) {
	u := fmt.Sprintf("%s/users/%s/mentions?max_results=%d&tweet.fields=%s",
		c.baseURL, url.PathEscape(userID), clamp(limit, 5, 100), tweetFields)
	var env listEnvelope[rawTweet]
	if err := c.getJSON(ctx, "mentions", u, c.bearer, &env); err != nil {
		return nil, err
	}
	return toTweets(env.Data), nil
}

func (c *HTTPClient) GetTweet(ctx context.Context, id string) (model.Tweet, error) {
	if id == "" {
		return model.Tweet{}, errors.New("empty tweet id")
	}
	u := fmt.Sprintf("%s/tweets/%s?tweet.fields=%s", c.baseURL, url.PathEscape(id), tweetFields)
	var env itemEnvelope[rawTweet]
	if err := c.getJSON(ctx, "tweet", u, c.bearer, &env); err != nil {
		return model.Tweet{}, err
	}
	if env.Data == nil {
		return model.Tweet{}, ErrNotFound
	}
	return env.Data.toTweet(), nil
}

func (c *HTTPClient) GetUserByID(ctx context.Context, id string) (model.User, error) {
	if id == "" {
		return model.User{}, errors.New("empty user id")
	}
	u := fmt.Sprintf("%s/users/%s?user.fields=%s", c.baseURL, url.PathEscape(id), userFields)
	return c.getUser(ctx, "user", u, c.bearer)
}

func (c *HTTPClient) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	if username == "" {
		return model.User{}, errors.New("empty username")
	}
	u := fmt.Sprintf("%s/users/by/username/%s?user.fields=%s", c.baseURL, url.PathEscape(username), userFields)
	return c.getUser(ctx, "user_by_username", u, c.bearer)
}

// GetMe returns the account the user credentials belong to.
func (c *HTTPClient) GetMe(ctx context.Context) (model.User, error) {
	u := fmt.Sprintf("%s/users/me?user.fields=%s", c.baseURL, userFields)
	return c.getUser(ctx, "me", u, c.signed)
}

func (c *HTTPClient) getUser(ctx context.Context, endpoint, u string, auth func(*http.Request) error) (model.User, error) {
	var env itemEnvelope[rawUser]
	if err := c.getJSON(ctx, endpoint, u, auth, &env); err != nil {
		return model.User{}, err
	}
	if env.Data == nil {
		return model.User{}, ErrNotFound
	}
	return env.Data.toUser(), nil
}

// GetUserTweets returns a user's most recent posts, retweets and replies included.
func (c *HTTPClient) GetUserTweets(ctx context.Context, userID string, limit int) ([]model.Tweet, error) {
	u := fmt.Sprintf("%s/users/%s/tweets?max_results=%d&tweet.fields=%s",
		c.baseURL, url.PathEscape(userID), clamp(limit, 5, 100), tweetFields)
	var env listEnvelope[rawTweet]
	if err := c.getJSON(ctx, "user_tweets", u, c.bearer, &env); err != nil {
		return nil, err
	}
	out := toTweets(env.Data)
	for i := range out {
		if out[i].AuthorID == "" {
			out[i].AuthorID = userID
		}
	}
	return out, nil
}

func (c *HTTPClient) GetFollowers(ctx context.Context, userID string, limit int) ([]string, error) {
	u := fmt.Sprintf("%s/users/%s/followers?max_results=%d&user.fields=username",
		c.baseURL, url.PathEscape(userID), clamp(limit, 1, 1000))
	var env listEnvelope[rawUser]
	if err := c.getJSON(ctx, "followers", u, c.bearer, &env); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(env.Data))
	for _, d := range env.Data {
		if d.Username != "" {
			out = append(out, d.Username)
		}
	}
	return out, nil
}

func (c *HTTPClient) PostReply(ctx context.Context, inReplyTo, text string) (string, error) {
	if c.signer == nil {
		return "", ErrNoUserAuth
	}
	var body struct {
		Text  string `json:"text"`
		Reply struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		} `json:"reply"`
	}
	body.Text = text
	body.Reply.InReplyToTweetID = inReplyTo
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var env itemEnvelope[struct {
		ID string `json:"id"`
	}]
	if err := c.doJSON(ctx, "post_tweet", req, c.signed, &env); err != nil {
		return "", err
	}
	if env.Data == nil || env.Data.ID == "" {
		return "", fmt.Errorf("x api post_tweet: missing id in response")
	}
	return env.Data.ID, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint, u string, auth func(*http.Request) error, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, endpoint, req, auth, out)
}

// doJSON runs one call through the breaker. While the breaker is open calls
// fail fast with gobreaker.ErrOpenState.
func (c *HTTPClient) doJSON(ctx context.Context, endpoint string, req *http.Request, auth func(*http.Request) error, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.call(ctx, endpoint, req, auth, out)
	})
	return err
}

func (c *HTTPClient) call(ctx context.Context, endpoint string, req *http.Request, auth func(*http.Request) error, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, endpoint, req, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(snippet)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("x api %s: decode: %w", endpoint, err)
	}
	if e, ok := out.(interface{ notFound() bool }); ok && e.notFound() {
		return ErrNotFound
	}
	return nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// doWithRetry authorizes and sends a fresh copy of req per attempt, retrying
// transport errors, 429 and 5xx with exponential backoff. Retry-After wins
// over the computed backoff.
func (c *HTTPClient) doWithRetry(ctx context.Context, endpoint string, req *http.Request, auth func(*http.Request) error) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}
		if auth != nil {
			if err := auth(r); err != nil {
				return nil, err
			}
		}
		resp, err := c.httpClient.Do(r)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				if attempt == c.maxAttempts {
					break
				}
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				// jitter +/-20%
				jitter := time.Duration(float64(wait) * 0.2)
				if jitter > 0 {
					wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
				}
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("x api %s: request failed after %d attempts: %w", endpoint, c.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
