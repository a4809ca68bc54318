package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/davidkotlin/AImonitor/video/process"
)

type Config struct {
	// Name labels annotated frames and log lines.
	Name string `json:"name"`
	// URI of the capture source: a device index such as "0", a stream URL or a file.
	URI string `json:"uri" validate:"required"`
	// WarmupMillis is waited after opening the source.
	WarmupMillis int `json:"warmup_millis" validate:"gte=0"`

	Motion process.Params `json:"motion"`

	Analyzer AnalyzerConfig `json:"analyzer"`

	// NotifyTimeoutSec bounds the delivery of each notification.
	NotifyTimeoutSec int `json:"notify_timeout_sec" validate:"gte=0"`

	// ShutdownTimeoutSec bounds each stage of shutdown.
	ShutdownTimeoutSec int `json:"shutdown_timeout_sec" validate:"gte=0"`

	// WebPushSubscriber is the contact address sent to push services.
	WebPushSubscriber string `json:"webpush_subscriber"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=trace debug info warn warning error"`
	LogFile  string `json:"log_file"`
}

type AnalyzerConfig struct {
	Provider string `json:"provider" validate:"omitempty,oneof=openai gemini"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url" validate:"omitempty,url"`
	// ReferenceImage is the path of the image frames are compared against.
	ReferenceImage string `json:"reference_image" validate:"required"`
	// TimeoutSec bounds each analysis call.
	TimeoutSec int `json:"timeout_sec" validate:"gte=0"`
	// Prompt overrides the built-in comparison prompt.
	Prompt string `json:"prompt"`
}

func Default() *Config {
	return &Config{
		Name:         "Security Monitor",
		URI:          "0",
		WarmupMillis: 2000,
		Motion:       process.DefaultParams(),
		Analyzer: AnalyzerConfig{
			Provider:       "openai",
			ReferenceImage: "reference.jpg",
			TimeoutSec:     30,
		},
		NotifyTimeoutSec:   15,
		ShutdownTimeoutSec: 10,
		LogLevel:           "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Motion.BlurSize%2 == 0 {
		return fmt.Errorf("invalid configuration: motion.blur_size must be odd, got %d", c.Motion.BlurSize)
	}
	return nil
}

func (c *Config) Warmup() time.Duration {
	return time.Duration(c.WarmupMillis) * time.Millisecond
}

func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutSec) * time.Second
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSec) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Secrets are credentials taken from the environment, never from the config
// file.
type Secrets struct {
	OpenAIKey         string
	GeminiKey         string
	LineChannelSecret string
	LineChannelToken  string
	LineTargetID      string
	DatabaseDSN       string
}

// APIKey returns the key for the given analysis provider.
func (s *Secrets) APIKey(provider string) string {
	if provider == "gemini" {
		return s.GeminiKey
	}
	return s.OpenAIKey
}

// LoadSecrets reads secrets from the environment, after loading any of the
// given dotenv files that exist.
func LoadSecrets(files ...string) (*Secrets, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return &Secrets{
		OpenAIKey:         firstEnv("OPENAI_API_KEY", "GPT4V_API_KEY"),
		GeminiKey:         os.Getenv("GEMINI_API_KEY"),
		LineChannelSecret: firstEnv("LINE_CHANNEL_SECRET", "Line_Channel_Secret"),
		LineChannelToken:  firstEnv("LINE_CHANNEL_ACCESS_TOKEN", "Line_Channel_Access_Token"),
		LineTargetID:      os.Getenv("LINE_TARGET_USER_ID"),
		DatabaseDSN:       os.Getenv("DATABASE_DSN"),
	}, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
