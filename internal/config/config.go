package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	ProviderState ProviderStateConfig `yaml:"provider_state" mapstructure:"provider_state"`
	Jobs          JobsConfig          `yaml:"jobs" mapstructure:"jobs"`
	Retry         RetryConfig         `yaml:"retry" mapstructure:"retry"`
	Scrape        ScrapeConfig        `yaml:"scrape" mapstructure:"scrape"`
	DataForSEO    DataForSEOConfig    `yaml:"dataforseo" mapstructure:"dataforseo"`
	GoogleSearch  GoogleSearchConfig  `yaml:"google_search" mapstructure:"google_search"`
	Hunter        HunterConfig        `yaml:"hunter" mapstructure:"hunter"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini        GeminiConfig        `yaml:"gemini" mapstructure:"gemini"`
	Drafting      DraftingConfig      `yaml:"drafting" mapstructure:"drafting"`
	Gmail         GmailConfig         `yaml:"gmail" mapstructure:"gmail"`
	Monitoring    MonitoringConfig    `yaml:"monitoring" mapstructure:"monitoring"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderStateConfig selects where provider restrictions live. The memory
// backend is per-process only.
type ProviderStateConfig struct {
	Backend                string `yaml:"backend" mapstructure:"backend"`
	RedisURL               string `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix              string `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultRestrictionSecs int    `yaml:"default_restriction_secs" mapstructure:"default_restriction_secs"`
}

// JobsConfig configures job execution.
type JobsConfig struct {
	ItemDelayMs           int  `yaml:"item_delay_ms" mapstructure:"item_delay_ms"`
	MaxConcurrent         int  `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	DefaultLimit          int  `yaml:"default_limit" mapstructure:"default_limit"`
	AllowUnverifiedDrafts bool `yaml:"allow_unverified_drafts" mapstructure:"allow_unverified_drafts"`
	AcceptRiskyEmails     bool `yaml:"accept_risky_emails" mapstructure:"accept_risky_emails"`
	MaxFollowups          int  `yaml:"max_followups" mapstructure:"max_followups"`
	FollowupAfterHours    int  `yaml:"followup_after_hours" mapstructure:"followup_after_hours"`
	// StaleAfterMins marks running jobs without a heartbeat for this long as
	// failed. Zero disables reaping.
	StaleAfterMins int `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
}

// ItemDelay returns the pause between items of one job.
func (c JobsConfig) ItemDelay() time.Duration {
	return time.Duration(c.ItemDelayMs) * time.Millisecond
}

// StaleAfter returns the stale-job lease, zero when disabled.
func (c JobsConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMins) * time.Minute
}

// FollowupAfter returns the minimum gap between messages in a thread.
func (c JobsConfig) FollowupAfter() time.Duration {
	return time.Duration(c.FollowupAfterHours) * time.Hour
}

// RetryConfig configures in-call retries for provider clients.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ScrapeConfig configures website scraping during enrichment.
type ScrapeConfig struct {
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyKB    int      `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	ContactPaths []string `yaml:"contact_paths" mapstructure:"contact_paths"`
}

// DataForSEOConfig holds DataForSEO SERP API credentials.
type DataForSEOConfig struct {
	Login        string `yaml:"login" mapstructure:"login"`
	Password     string `yaml:"password" mapstructure:"password"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	LocationCode int    `yaml:"location_code" mapstructure:"location_code"`
	LanguageCode string `yaml:"language_code" mapstructure:"language_code"`
	Depth        int    `yaml:"depth" mapstructure:"depth"`
}

// GoogleSearchConfig holds Google Programmable Search credentials used for
// social profile discovery.
type GoogleSearchConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	EngineID string `yaml:"engine_id" mapstructure:"engine_id"`
}

// HunterConfig holds Hunter.io API settings.
type HunterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// DraftingConfig configures outreach message composition.
type DraftingConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	SenderName    string `yaml:"sender_name" mapstructure:"sender_name"`
	SenderCompany string `yaml:"sender_company" mapstructure:"sender_company"`
	Offer         string `yaml:"offer" mapstructure:"offer"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GmailConfig holds OAuth credentials for sending through Gmail.
type GmailConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken string `yaml:"refresh_token" mapstructure:"refresh_token"`
	From         string `yaml:"from" mapstructure:"from"`
}

// MonitoringConfig configures the stale-job reaper loop and job health
// alerts.
type MonitoringConfig struct {
	IntervalSecs         int     `yaml:"interval_secs" mapstructure:"interval_secs"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackJobs         int     `yaml:"lookback_jobs" mapstructure:"lookback_jobs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	PendingThreshold     int     `yaml:"pending_threshold" mapstructure:"pending_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("provider_state.backend", "memory")
	v.SetDefault("provider_state.key_prefix", "provider_restriction:")
	v.SetDefault("provider_state.default_restriction_secs", 3600)
	v.SetDefault("jobs.item_delay_ms", 1000)
	v.SetDefault("jobs.max_concurrent", 3)
	v.SetDefault("jobs.default_limit", 50)
	v.SetDefault("jobs.allow_unverified_drafts", false)
	v.SetDefault("jobs.accept_risky_emails", false)
	v.SetDefault("jobs.max_followups", 2)
	v.SetDefault("jobs.followup_after_hours", 72)
	v.SetDefault("jobs.stale_after_mins", 0)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.max_body_kb", 2048)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; outreach-cli/1.0)")
	v.SetDefault("scrape.contact_paths", []string{"/contact", "/contact-us", "/about"})
	v.SetDefault("dataforseo.base_url", "https://api.dataforseo.com")
	v.SetDefault("dataforseo.location_code", 2840)
	v.SetDefault("dataforseo.language_code", "en")
	v.SetDefault("dataforseo.depth", 20)
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("drafting.provider", "anthropic")
	v.SetDefault("drafting.max_tokens", 600)
	v.SetDefault("monitoring.interval_secs", 60)
	v.SetDefault("monitoring.lookback_jobs", 100)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.pending_threshold", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Empty defaults make secrets visible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"store.database_url", "provider_state.redis_url",
		"dataforseo.login", "dataforseo.password",
		"google_search.key", "google_search.engine_id",
		"hunter.key", "anthropic.key", "gemini.key",
		"drafting.sender_name", "drafting.sender_company", "drafting.offer",
		"gmail.client_id", "gmail.client_secret", "gmail.refresh_token", "gmail.from",
		"monitoring.webhook_url",
	} {
		v.SetDefault(key, "")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks settings required by the named command group.
func (c *Config) Validate(command string) error {
	var errs []string
	switch command {
	case "store":
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for postgres")
			}
		case "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
	case "provider_state":
		switch c.ProviderState.Backend {
		case "memory":
		case "redis":
			if c.ProviderState.RedisURL == "" {
				errs = append(errs, "provider_state.redis_url is required for redis")
			}
		default:
			errs = append(errs, "provider_state.backend must be memory or redis")
		}
	case "jobs":
		if c.Jobs.MaxConcurrent < 1 {
			errs = append(errs, "jobs.max_concurrent must be at least 1")
		}
		if c.Jobs.ItemDelayMs < 0 {
			errs = append(errs, "jobs.item_delay_ms must not be negative")
		}
		if c.Jobs.StaleAfterMins < 0 {
			errs = append(errs, "jobs.stale_after_mins must not be negative")
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
