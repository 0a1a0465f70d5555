// Package config loads MisakiCat configuration from an optional YAML file,
// built-in defaults and environment variables, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every config key when read from the environment,
// e.g. MISAKI_GATE_COOLDOWN.
const EnvPrefix = "MISAKI"

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Model     ModelConfig     `mapstructure:"model"`
	Gate      GateConfig      `mapstructure:"gate"`
	Context   ContextConfig   `mapstructure:"context"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// BackendConfig selects and configures the inference backend.
type BackendConfig struct {
	Provider string        `mapstructure:"provider" validate:"required,oneof=ollama gemini"`
	BaseURL  string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout"  validate:"min=0"`

	GeminiAPIKey            string `mapstructure:"gemini_api_key"            validate:"required_if=Provider gemini"`
	GeminiMaxRetries        int    `mapstructure:"gemini_max_retries"        validate:"min=0,max=10"`
	GeminiRetryDelaySeconds int    `mapstructure:"gemini_retry_delay_seconds" validate:"min=0"`
}

// ModelConfig holds the fixed generation parameters for the chat loop.
type ModelConfig struct {
	Name           string  `mapstructure:"name"            validate:"required"`
	Temperature    float64 `mapstructure:"temperature"     validate:"min=0,max=2"`
	MaxTokens      int     `mapstructure:"max_tokens"      validate:"min=1"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
}

// GateConfig holds the response gate parameters.
type GateConfig struct {
	IgnorePrefixes      []string      `mapstructure:"ignore_prefixes"`
	Cooldown            time.Duration `mapstructure:"cooldown"             validate:"min=0"`
	TriggerKeywords     []string      `mapstructure:"trigger_keywords"`
	ResponseProbability float64       `mapstructure:"response_probability" validate:"min=0,max=1"`
}

// ContextConfig bounds the per-user conversation context.
type ContextConfig struct {
	MaxEntries int           `mapstructure:"max_entries" validate:"min=3"`
	IdleTTL    time.Duration `mapstructure:"idle_ttl"    validate:"min=0"`
}

// DispatchConfig tunes the dispatch loop.
type DispatchConfig struct {
	MaxConcurrent     int64         `mapstructure:"max_concurrent"     validate:"min=1"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout" validate:"min=0"`
	TypingInterval    time.Duration `mapstructure:"typing_interval"    validate:"min=0"`
}

// DiscordConfig configures the Discord front-end.
type DiscordConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Token            string `mapstructure:"token"`
	MaxMessageLength int    `mapstructure:"max_message_length" validate:"min=1,max=2000"`
	Status           string `mapstructure:"status"`
}

// TelegramConfig configures the Telegram front-end, which streams replies
// with its own model settings.
type TelegramConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Token            string        `mapstructure:"token"`
	Model            string        `mapstructure:"model"              validate:"required"`
	Temperature      float64       `mapstructure:"temperature"        validate:"min=0,max=2"`
	MaxTokens        int           `mapstructure:"max_tokens"         validate:"min=1"`
	MaxMessageLength int           `mapstructure:"max_message_length" validate:"min=1,max=4096"`
	TypingInterval   time.Duration `mapstructure:"typing_interval"    validate:"min=0"`
}

// MessagesConfig holds user-facing notices.
type MessagesConfig struct {
	Error         string `mapstructure:"error"          validate:"required"`
	Empty         string `mapstructure:"empty"`
	TelegramError string `mapstructure:"telegram_error" validate:"required"`
	TelegramEmpty string `mapstructure:"telegram_empty" validate:"required"`
	Help          string `mapstructure:"help"           validate:"required"`
}

// SchedulerConfig lists maintenance tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task and sets its cron schedule (seconds field
// optional).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// envBindings maps config keys to the conventional environment variables
// read in addition to the MISAKI_ prefixed form.
var envBindings = map[string]string{
	"discord.token":          "DISCORD_BOT_TOKEN",
	"telegram.token":         "TELEGRAM_BOT_TOKEN",
	"backend.base_url":       "OLLAMA_BASE_URL",
	"backend.gemini_api_key": "GEMINI_API_KEY",
}

// LoadConfig reads path (a missing file is fine), applies defaults and
// environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("%w: binding %s: %w", ErrConfiguration, env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: reading %s: %w", ErrConfiguration, path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return cfg, nil
}
