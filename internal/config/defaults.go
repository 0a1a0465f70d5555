package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults for the chat loop. The gate and context values are the behaviour
// the bot was tuned for and rarely need changing.
const (
	DefaultOllamaBaseURL       = "http://localhost:11434"
	DefaultModel               = "deepseek-r1:14b"
	DefaultTemperature         = 0.5
	DefaultMaxTokens           = 10000
	DefaultCooldown            = 10 * time.Second
	DefaultResponseProbability = 0.5
	DefaultContextEntries      = 9
	DefaultDiscordReplyLength  = 2000
	DefaultTelegramModel       = "deepseek-llm:latest"
	DefaultTelegramMaxTokens   = 500
	DefaultTelegramLength      = 4096
)

var (
	defaultIgnorePrefixes  = []string{"!", "?", "/"}
	defaultTriggerKeywords = []string{"?", "what", "why", "how", "opinion"}
)

const defaultHelp = "🦙 Ollama Bot Help 🦙\n\n" +
	"Available commands:\n" +
	"/start - Start conversation\n" +
	"/help - Show this help message\n" +
	"/list_models - Show available AI models\n\n" +
	"Just type your message to chat with the AI!"

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	v.SetDefault("backend.provider", "ollama")
	v.SetDefault("backend.base_url", DefaultOllamaBaseURL)
	v.SetDefault("backend.timeout", 0)
	v.SetDefault("backend.gemini_api_key", "")
	v.SetDefault("backend.gemini_max_retries", 0)
	v.SetDefault("backend.gemini_retry_delay_seconds", 2)

	v.SetDefault("model.name", DefaultModel)
	v.SetDefault("model.temperature", DefaultTemperature)
	v.SetDefault("model.max_tokens", DefaultMaxTokens)
	v.SetDefault("model.embedding_model", "nomic-embed-text")

	v.SetDefault("gate.ignore_prefixes", defaultIgnorePrefixes)
	v.SetDefault("gate.cooldown", DefaultCooldown)
	v.SetDefault("gate.trigger_keywords", defaultTriggerKeywords)
	v.SetDefault("gate.response_probability", DefaultResponseProbability)

	v.SetDefault("context.max_entries", DefaultContextEntries)
	v.SetDefault("context.idle_ttl", 24*time.Hour)

	v.SetDefault("dispatch.max_concurrent", 4)
	v.SetDefault("dispatch.generation_timeout", 0)
	v.SetDefault("dispatch.typing_interval", 8*time.Second)

	v.SetDefault("discord.enabled", true)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.max_message_length", DefaultDiscordReplyLength)
	v.SetDefault("discord.status", "for interesting conversations")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.model", DefaultTelegramModel)
	v.SetDefault("telegram.temperature", 0.7)
	v.SetDefault("telegram.max_tokens", DefaultTelegramMaxTokens)
	v.SetDefault("telegram.max_message_length", DefaultTelegramLength)
	v.SetDefault("telegram.typing_interval", 4*time.Second)

	v.SetDefault("messages.error", "⚠️ An error occurred while processing that request.")
	v.SetDefault("messages.empty", "🤔 I couldn't come up with a proper answer. Could you rephrase that?")
	v.SetDefault("messages.telegram_error", "🚨 Sorry, I encountered an error processing your request.")
	v.SetDefault("messages.telegram_empty", "🤖 I didn't get a response. Please try again.")
	v.SetDefault("messages.help", defaultHelp)

	v.SetDefault("scheduler.tasks.context_prune.enabled", true)
	v.SetDefault("scheduler.tasks.context_prune.schedule", "0 */10 * * * *")
	v.SetDefault("scheduler.tasks.backend_health.enabled", true)
	v.SetDefault("scheduler.tasks.backend_health.schedule", "0 */5 * * * *")
}
