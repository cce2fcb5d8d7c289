package config

import (
	"time"

	"pressroom/pkg/config"
)

// Config stores environment configuration for Pressroom.
type Config struct {
	Port         string
	WebflowToken string

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMAPIURL   string

	VisionModel  string
	VisionAPIKey string
	VisionAPIURL string

	// Pipeline bounds
	MaxItemsPerRequest int
	DefaultCount       int
	Workers            int

	// External call budgets
	ScrapeTimeout time.Duration
	SelectTimeout time.Duration
	UploadTimeout time.Duration
	CreateTimeout time.Duration

	// Webflow rate limit: creation calls per minute (0 = unthrottled)
	CreatesPerMinute int

	// Image selection
	ScoreThreshold float64

	// On-disk staging
	StagingDir string
	ContentDir string
	KeepImages bool

	// Mapping files
	FieldMapPath string
	TagMapPath   string
}

// LoadConfig loads the Pressroom configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:         config.GetEnv("PORT", "18030"),
		WebflowToken: config.RequireEnv("WEBFLOW_TOKEN"),

		LLMProvider: config.GetEnv("LLM_PROVIDER", "openai"),
		LLMModel:    config.GetEnv("LLM_MODEL", ""),
		LLMAPIKey:   config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:   config.GetEnv("LLM_API_URL", ""),

		VisionModel:  config.GetEnv("VISION_MODEL", config.GetEnv("LLM_MODEL", "")),
		VisionAPIKey: config.GetEnv("VISION_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		VisionAPIURL: config.GetEnv("VISION_API_URL", config.GetEnv("LLM_API_URL", "")),

		MaxItemsPerRequest: config.GetEnvInt("PRESSROOM_MAX_ITEMS", 15),
		DefaultCount:       config.GetEnvInt("PRESSROOM_DEFAULT_COUNT", 5),
		Workers:            config.GetEnvInt("PRESSROOM_WORKERS", 1),

		ScrapeTimeout: config.GetEnvDuration("PRESSROOM_SCRAPE_TIMEOUT", 90*time.Second),
		SelectTimeout: config.GetEnvDuration("PRESSROOM_SELECT_TIMEOUT", 3*time.Minute),
		UploadTimeout: config.GetEnvDuration("PRESSROOM_UPLOAD_TIMEOUT", 60*time.Second),
		CreateTimeout: config.GetEnvDuration("PRESSROOM_CREATE_TIMEOUT", 30*time.Second),

		CreatesPerMinute: config.GetEnvInt("PRESSROOM_CREATES_PER_MINUTE", 60),

		ScoreThreshold: float64(config.GetEnvInt("PRESSROOM_SCORE_THRESHOLD", 90)),

		StagingDir: config.GetEnv("PRESSROOM_STAGING_DIR", "images"),
		ContentDir: config.GetEnv("PRESSROOM_CONTENT_DIR", "content"),
		KeepImages: config.GetEnvBool("PRESSROOM_KEEP_IMAGES", false),

		FieldMapPath: config.GetEnv("PRESSROOM_FIELD_MAP", ""),
		TagMapPath:   config.GetEnv("PRESSROOM_TAG_MAP", ""),
	}
}
