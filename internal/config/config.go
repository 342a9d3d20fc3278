// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/jobmarket-crawler/internal/report"
)

// EnvPrefix is prepended to every environment override, e.g.
// JOBCRAWLER_CRAWL_DESCRIPTION_LIMIT.
const EnvPrefix = "JOBCRAWLER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SiteConfig describes the job board being crawled.
type SiteConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	PageSize             int      `mapstructure:"page_size"`
	CardSelectors        []string `mapstructure:"card_selectors"`
	TitleSelector        string   `mapstructure:"title_selector"`
	CompanySelector      string   `mapstructure:"company_selector"`
	LocationSelector     string   `mapstructure:"location_selector"`
	LinkSelector         string   `mapstructure:"link_selector"`
	DescriptionSelectors []string `mapstructure:"description_selectors"`
}

// CrawlConfig governs the page loop and description lookups.
type CrawlConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
	PageTimeout        time.Duration `mapstructure:"page_timeout"`
	DescriptionTimeout time.Duration `mapstructure:"description_timeout"`
	DescriptionLimit   int           `mapstructure:"description_limit"`
	MaxPagesLimit      int           `mapstructure:"max_pages_limit"`
	DefaultPages       int           `mapstructure:"default_pages"`
	DefaultSkills      []string      `mapstructure:"default_skills"`
}

// PolitenessConfig selects the throttling policy between requests.
type PolitenessConfig struct {
	Strategy string        `mapstructure:"strategy"`
	Delay    time.Duration `mapstructure:"delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
	RPS      float64       `mapstructure:"rps"`
	Burst    int           `mapstructure:"burst"`
}

// RetryConfig configures optional retries of transient fetch failures.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// StorageConfig sets where run artifacts are written.
type StorageConfig struct {
	Backend   string   `mapstructure:"backend"`
	LocalDir  string   `mapstructure:"local_dir"`
	GCSBucket string   `mapstructure:"gcs_bucket"`
	Prefix    string   `mapstructure:"prefix"`
	Formats   []string `mapstructure:"formats"`
}

// ReportFormats parses the configured artifact formats.
func (s StorageConfig) ReportFormats() ([]report.Format, error) {
	out := make([]report.Format, 0, len(s.Formats))
	for _, name := range s.Formats {
		f, err := report.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBConfig controls listing persistence. An empty DSN disables it. For the
// sqlite driver the DSN is a file path or ":memory:".
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run-completed notifications. An empty
// project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. With an empty path it looks
// for config.yaml in the working directory, /etc/jobcrawler and
// $HOME/.jobcrawler, and falls back to defaults when none exists.
func Load(path string) (Config, error) {
	return load(path, true)
}

func load(path string, search bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	switch {
	case path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	case search:
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/jobcrawler/")
		v.AddConfigPath("$HOME/.jobcrawler")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration plus environment overrides.
// It never reads a config file.
func Default() Config {
	cfg, err := load("", false)
	if err != nil {
		// Defaults are static and always valid.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	profile := crawler.DefaultProfile()
	v.SetDefault("site.base_url", profile.BaseURL)
	v.SetDefault("site.page_size", profile.PageSize)
	v.SetDefault("site.card_selectors", profile.CardSelectors)
	v.SetDefault("site.title_selector", profile.TitleSelector)
	v.SetDefault("site.company_selector", profile.CompanySelector)
	v.SetDefault("site.location_selector", profile.LocationSelector)
	v.SetDefault("site.link_selector", profile.LinkSelector)
	v.SetDefault("site.description_selectors", profile.DescriptionSelectors)

	v.SetDefault("crawl.user_agent", crawler.DefaultUserAgent)
	v.SetDefault("crawl.respect_robots", false)
	v.SetDefault("crawl.page_timeout", 15*time.Second)
	v.SetDefault("crawl.description_timeout", 10*time.Second)
	v.SetDefault("crawl.description_limit", 50)
	v.SetDefault("crawl.max_pages_limit", 10)
	v.SetDefault("crawl.default_pages", 2)
	v.SetDefault("crawl.default_skills", []string{
		"Python", "TensorFlow", "PyTorch", "Deep Learning", "NLP",
		"SQL", "Docker", "Keras", "Scikit-learn",
	})

	v.SetDefault("politeness.strategy", ratelimit.StrategyFixed)
	v.SetDefault("politeness.delay", 1500*time.Millisecond)
	v.SetDefault("politeness.max_delay", 30*time.Second)
	v.SetDefault("politeness.rps", 0.5)
	v.SetDefault("politeness.burst", 1)

	v.SetDefault("retry.max_retries", 0)
	v.SetDefault("retry.base_delay", 500*time.Millisecond)
	v.SetDefault("retry.max_delay", 5*time.Second)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")

	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.local_dir", "reports")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("storage.formats", []string{"markdown", "csv", "json", "yaml"})

	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "jobcrawler-runs")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.Site.Profile().Validate(); err != nil {
		return fmt.Errorf("site: %w", err)
	}
	if c.Crawl.PageTimeout <= 0 {
		return errors.New("crawl.page_timeout must be > 0")
	}
	if c.Crawl.DescriptionTimeout <= 0 {
		return errors.New("crawl.description_timeout must be > 0")
	}
	if c.Crawl.DescriptionLimit < 0 {
		return errors.New("crawl.description_limit must be >= 0")
	}
	if c.Crawl.MaxPagesLimit < 0 {
		return errors.New("crawl.max_pages_limit must be >= 0")
	}
	if c.Crawl.DefaultPages <= 0 {
		return errors.New("crawl.default_pages must be > 0")
	}
	if c.Crawl.MaxPagesLimit > 0 && c.Crawl.DefaultPages > c.Crawl.MaxPagesLimit {
		return errors.New("crawl.default_pages must be <= crawl.max_pages_limit")
	}
	if _, err := ratelimit.FromConfig(c.Politeness.Settings()); err != nil {
		return fmt.Errorf("politeness: %w", err)
	}
	if c.Politeness.Delay < 0 {
		return errors.New("politeness.delay must be >= 0")
	}
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "", StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	if _, err := c.Storage.ReportFormats(); err != nil {
		return fmt.Errorf("storage.formats: %w", err)
	}
	switch c.DB.Driver {
	case "", DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("db.driver %q is not one of postgres, sqlite", c.DB.Driver)
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return errors.New("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// Profile converts the site section into a crawler.SiteProfile.
func (s SiteConfig) Profile() crawler.SiteProfile {
	return crawler.SiteProfile{
		BaseURL:              s.BaseURL,
		PageSize:             s.PageSize,
		CardSelectors:        s.CardSelectors,
		TitleSelector:        s.TitleSelector,
		CompanySelector:      s.CompanySelector,
		LocationSelector:     s.LocationSelector,
		LinkSelector:         s.LinkSelector,
		DescriptionSelectors: s.DescriptionSelectors,
	}
}

// Settings converts the politeness section into ratelimit.Settings.
func (p PolitenessConfig) Settings() ratelimit.Settings {
	return ratelimit.Settings{
		Strategy: p.Strategy,
		Delay:    p.Delay,
		MaxDelay: p.MaxDelay,
		RPS:      p.RPS,
		Burst:    p.Burst,
	}
}

// Headers returns the request headers sent with every fetch.
func (c CrawlConfig) Headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}
