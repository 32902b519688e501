package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	DataDir  string `env:"DATA_DIR" envDefault:"./data"`
	Keywords string `env:"KEYWORDS_CONFIG" envDefault:"./config/keywords.yaml"`

	TargetArticleCount     int     `env:"TARGET_ARTICLE_COUNT" envDefault:"10"`
	DomesticRatio          float64 `env:"DOMESTIC_RATIO" envDefault:"0.6"`
	MinTierARatio          float64 `env:"MIN_TIER_A_RATIO" envDefault:"0.7"`
	QualityThreshold       float64 `env:"QUALITY_THRESHOLD" envDefault:"80"`
	QualityGateEnforced    bool    `env:"QUALITY_GATE_ENFORCED" envDefault:"false"`
	MaxEntriesPerSource    int     `env:"MAX_ENTRIES_PER_SOURCE" envDefault:"3"`
	MaxArticleAgeHours     int     `env:"MAX_ARTICLE_AGE_HOURS" envDefault:"72"`
	AllowRedirectCitation  bool    `env:"ALLOW_REDIRECT_CITATION" envDefault:"false"`
	RecentHistoryDays      int     `env:"RECENT_HISTORY_DAYS" envDefault:"7"`
	MinPublishScore        int     `env:"MIN_PUBLISH_SCORE" envDefault:"4"`
	EditorialReviewEnabled bool    `env:"EDITORIAL_REVIEW_ENABLED" envDefault:"false"`
	ThinContentEnrichment  bool    `env:"THIN_CONTENT_ENRICHMENT" envDefault:"true"`
	ThinContentThreshold   int     `env:"THIN_CONTENT_THRESHOLD" envDefault:"200"`

	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMBaseURL     string        `env:"LLM_BASE_URL"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"6000"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.1"`
	LLMRetries     int           `env:"LLM_RETRIES" envDefault:"3"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"180s"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"1"`

	ComposeWorkers int           `env:"COMPOSE_WORKERS" envDefault:"2"`
	ComposeTimeout time.Duration `env:"COMPOSE_TIMEOUT" envDefault:"60s"`
	ComposeRetries int           `env:"COMPOSE_RETRIES" envDefault:"2"`

	WebFetchRPS     float64       `env:"WEB_FETCH_RPS" envDefault:"2"`
	WebFetchTimeout time.Duration `env:"WEB_FETCH_TIMEOUT" envDefault:"12s"`

	DigestTime     string `env:"DIGEST_TIME" envDefault:"07:00"`
	DigestTimezone string `env:"DIGEST_TIMEZONE" envDefault:"Asia/Shanghai"`

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LLMConfigured reports whether the chat-completion capability can be used.
func (c *Config) LLMConfigured() bool {
	return c.LLMAPIKey != ""
}
