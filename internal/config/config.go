package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultTrustListURL is the public curated trust list feed.
const DefaultTrustListURL = "https://raw.githubusercontent.com/devsyrem/turst-list/refs/heads/main/list"

// Config is the application's configuration model.
type Config struct {
	Account     AccountConfig     `yaml:"account"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	TrustList   TrustListConfig   `yaml:"trustList"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Polling     PollingConfig     `yaml:"polling"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Engagement  EngagementConfig  `yaml:"engagement"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type AccountConfig struct {
	// Handle of the bot account whose mentions are polled.
	// If empty, the bot resolves itself through /2/users/me.
	Username string `yaml:"username"`
}

type CredentialsConfig struct {
	// X/Twitter API bearer token for reads. If empty, read from env X_BEARER_TOKEN
	BearerToken string `yaml:"bearerToken"`
	// OAuth1.0a user context, required to post replies
	ConsumerKey    string `yaml:"consumerKey"`
	ConsumerSecret string `yaml:"consumerSecret"`
	AccessToken    string `yaml:"accessToken"`
	AccessSecret   string `yaml:"accessSecret"`
}

// HasUserAuth reports whether all four OAuth1.0a values are present.
func (c CredentialsConfig) HasUserAuth() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

type TriggerConfig struct {
	// Case-insensitive substring that marks a mention as an analysis request
	Phrase string `yaml:"phrase"`
	// Mentions older than this are ignored
	Freshness time.Duration `yaml:"freshness"`
	// Mentions fetched per poll
	MentionsLimit int `yaml:"mentionsLimit"`
}

type TrustListConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// 0 refreshes only at startup and when the list is empty
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

type AnalysisConfig struct {
	// Minimum time between two analyses of the same account
	Cooldown       time.Duration `yaml:"cooldown"`
	RecentPosts    int           `yaml:"recentPosts"`
	FollowersLimit int           `yaml:"followersLimit"`
	// "none" (trusted followers always 0) or "handles"
	FollowerResolver string `yaml:"followerResolver"`
}

type PollingConfig struct {
	Interval      time.Duration `yaml:"interval"`
	RetryInterval time.Duration `yaml:"retryInterval"`
}

type DedupConfig struct {
	// Processed trigger ids kept in memory
	Capacity int `yaml:"capacity"`
}

type EngagementConfig struct {
	// Reply caps; 0 means unlimited
	MaxRepliesPerHour int `yaml:"maxRepliesPerHour"`
	MaxRepliesPerDay  int `yaml:"maxRepliesPerDay"`
}

type StorageConfig struct {
	// Analysis journal; empty disables it
	DBPath string `yaml:"dbPath"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Trigger:   TriggerConfig{Phrase: "riddle me this", Freshness: time.Hour, MentionsLimit: 20},
		TrustList: TrustListConfig{URL: DefaultTrustListURL, Timeout: 10 * time.Second},
		Analysis: AnalysisConfig{
			Cooldown:         5 * time.Minute,
			RecentPosts:      10,
			FollowersLimit:   100,
			FollowerResolver: "none",
		},
		Polling:   PollingConfig{Interval: time.Minute, RetryInterval: 30 * time.Second},
		Dedup:     DedupConfig{Capacity: 50000},
		Storage:   StorageConfig{DBPath: "./rugguard.db"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
// TRIGGER_PHRASE, TRUST_LIST_URL and ANALYSIS_COOLDOWN override file values.
func (c *Config) ResolveEnv() {
	setIfEmpty(&c.Account.Username, "X_BOT_USERNAME")
	setIfEmpty(&c.Credentials.BearerToken, "X_BEARER_TOKEN")
	setIfEmpty(&c.Credentials.ConsumerKey, "X_CONSUMER_KEY")
	setIfEmpty(&c.Credentials.ConsumerSecret, "X_CONSUMER_SECRET")
	setIfEmpty(&c.Credentials.AccessToken, "X_ACCESS_TOKEN")
	setIfEmpty(&c.Credentials.AccessSecret, "X_ACCESS_SECRET")
	setIfEmpty(&c.Metrics.Addr, "METRICS_ADDR")
	if v := os.Getenv("TRIGGER_PHRASE"); v != "" {
		c.Trigger.Phrase = v
	}
	if v := os.Getenv("TRUST_LIST_URL"); v != "" {
		c.TrustList.URL = v
	}
	if v := os.Getenv("ANALYSIS_COOLDOWN"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			c.Analysis.Cooldown = time.Duration(secs) * time.Second
		}
	}
}

func setIfEmpty(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Trigger.Phrase) == "" {
		errs = append(errs, errors.New("trigger.phrase is empty"))
	}
	if c.Trigger.Freshness <= 0 {
		errs = append(errs, errors.New("trigger.freshness must be positive"))
	}
	if c.TrustList.URL == "" {
		errs = append(errs, errors.New("trustList.url is empty"))
	}
	if c.Analysis.Cooldown < 0 {
		errs = append(errs, errors.New("analysis.cooldown must not be negative"))
	}
	switch c.Analysis.FollowerResolver {
	case "", "none", "handles":
	default:
		errs = append(errs, errors.New("analysis.followerResolver must be none or handles"))
	}
	if c.Polling.Interval <= 0 || c.Polling.RetryInterval <= 0 {
		errs = append(errs, errors.New("polling intervals must be positive"))
	}
	if c.Dedup.Capacity <= 0 {
		errs = append(errs, errors.New("dedup.capacity must be positive"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads YAML config from path on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
