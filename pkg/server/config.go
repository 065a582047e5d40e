package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from the environment; a .env file is loaded first when
// present.
type Config struct {
	Addr    string `envconfig:"ADDR" default:":8080"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	GeminiKey     string `envconfig:"GEMINI_API_KEY"`

	TextModel  string `envconfig:"TEXT_MODEL"`
	ImageModel string `envconfig:"IMAGE_MODEL"`

	DataDir  string `envconfig:"DATA_DIR" default:"data/projects"`
	FilesDir string `envconfig:"FILES_DIR" default:"data/files"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// DevPlaceholderModels swaps character-model rendering for deterministic
	// placeholder tiles.
	DevPlaceholderModels bool `envconfig:"DEV_PLACEHOLDER_MODELS" default:"false"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("reading config from environment: %w", err)
	}
	if cfg.OpenAIKey == "" && cfg.GeminiKey == "" {
		return cfg, fmt.Errorf("no model provider configured: set OPENAI_API_KEY or GEMINI_API_KEY")
	}
	return cfg, nil
}
