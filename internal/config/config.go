package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendCLI    = "cli"
	BackendOpenAI = "openai"
)

type Config struct {
	Addr     string     `env:"ADDR"      envDefault:":8501"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	Backend           string        `env:"SUMMARIZER_BACKEND"      envDefault:"cli"`
	ToolBinary        string        `env:"TOOL_BINARY"             envDefault:"qwen"`
	ToolArgs          []string      `env:"TOOL_ARGS"               envDefault:"generate --input {input}" envSeparator:" "`
	ToolVersionFlag   string        `env:"TOOL_VERSION_FLAG"       envDefault:"--version"`
	ToolWorkDir       string        `env:"TOOL_WORK_DIR"`
	ProbeTimeout      time.Duration `env:"TOOL_PROBE_TIMEOUT"      envDefault:"10s"`
	InvocationTimeout time.Duration `env:"TOOL_INVOCATION_TIMEOUT" envDefault:"2m"`
	MaxConcurrent     int64         `env:"TOOL_MAX_CONCURRENT"     envDefault:"1"`
	BreakerFailures   uint32        `env:"TOOL_BREAKER_FAILURES"   envDefault:"3"`
	BreakerCooldown   time.Duration `env:"TOOL_BREAKER_COOLDOWN"   envDefault:"1m"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`

	CacheSize int           `env:"SUMMARY_CACHE_SIZE" envDefault:"256"`
	CacheTTL  time.Duration `env:"SUMMARY_CACHE_TTL"  envDefault:"1h"`

	MaxInputLength     int `env:"MAX_INPUT_LENGTH"     envDefault:"10000"`
	MinTargetWords     int `env:"MIN_TARGET_WORDS"     envDefault:"50"`
	MaxTargetWords     int `env:"MAX_TARGET_WORDS"     envDefault:"500"`
	DefaultTargetWords int `env:"DEFAULT_TARGET_WORDS" envDefault:"150"`
	TargetWordsStep    int `env:"TARGET_WORDS_STEP"    envDefault:"50"`

	JanitorSpec    string        `env:"JANITOR_SPEC"     envDefault:"*/15 * * * *"`
	StalePromptAge time.Duration `env:"STALE_PROMPT_AGE" envDefault:"1h"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate: %w", err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendCLI:
		if c.ToolBinary == "" {
			errs = append(errs, errors.New("TOOL_BINARY must not be empty"))
		}
	case BackendOpenAI:
	default:
		errs = append(errs, fmt.Errorf("SUMMARIZER_BACKEND must be %q or %q (got %q)",
			BackendCLI, BackendOpenAI, c.Backend))
	}

	if c.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("TOOL_PROBE_TIMEOUT must be positive"))
	}
	if c.InvocationTimeout <= 0 {
		errs = append(errs, errors.New("TOOL_INVOCATION_TIMEOUT must be positive"))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, errors.New("TOOL_MAX_CONCURRENT must be at least 1"))
	}
	if c.MaxInputLength < 1 {
		errs = append(errs, errors.New("MAX_INPUT_LENGTH must be positive"))
	}
	if c.MinTargetWords < 1 || c.MinTargetWords > c.MaxTargetWords {
		errs = append(errs, fmt.Errorf("target words range is invalid (min = %d, max = %d)",
			c.MinTargetWords, c.MaxTargetWords))
	}
	if c.DefaultTargetWords < c.MinTargetWords || c.DefaultTargetWords > c.MaxTargetWords {
		errs = append(errs, fmt.Errorf("DEFAULT_TARGET_WORDS must be within [%d, %d]",
			c.MinTargetWords, c.MaxTargetWords))
	}
	if c.TargetWordsStep < 1 {
		errs = append(errs, errors.New("TARGET_WORDS_STEP must be positive"))
	}
	if c.StalePromptAge <= c.InvocationTimeout {
		errs = append(errs, fmt.Errorf("STALE_PROMPT_AGE must exceed TOOL_INVOCATION_TIMEOUT (%s)",
			c.InvocationTimeout))
	}

	return errors.Join(errs...)
}
