package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a configuration from the default search paths
func New() (*Config, error) {
	return Load("")
}

// Load creates a configuration instance. An explicit path must exist;
// without one the default search paths are tried and a missing file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/opportunity-agent/")
		v.AddConfigPath("$HOME/.opportunity-agent")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("OPPORTUNITY_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Criteria
	v.SetDefault("criteria.budget_min", 500)
	v.SetDefault("criteria.duration_max", 30)
	v.SetDefault("criteria.language", "français")
	v.SetDefault("criteria.work_mode", "full remote")
	v.SetDefault("criteria.keywords_to_avoid", []string{"gratuit", "exposition", "urgent sans budget", "bénévolat"})
	v.SetDefault("criteria.relevance_threshold", 7)
	v.SetDefault("criteria.decision_policy", "threshold")
	v.SetDefault("criteria.profile", "freelance backend developer (Python, APIs, AI)")

	// Replies
	v.SetDefault("reply.signature", "")
	v.SetDefault("reply.fallback_subject", "Réponse automatique")
	v.SetDefault("reply.fallback_message", "Bonjour,\n\nMerci pour votre message. Je vous répondrai rapidement.\n\nCordialement,")
	v.SetDefault("reply.prefix_subject", true)

	// Mailbox
	v.SetDefault("imap.server", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.password_file", "")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.bulk_limit", 50)
	v.SetDefault("imap.timeout", "30s")
	v.SetDefault("imap.ignored_senders", []string{})

	// Outbound mail
	v.SetDefault("smtp.server", "smtp.gmail.com")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.security", "tls")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.password_file", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.timeout", "30s")

	// LLM chain
	v.SetDefault("llm.providers", []string{"openai", "mistral"})
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_body_size", 8000)
	v.SetDefault("classify.max_tokens", 500)
	v.SetDefault("classify.temperature", 0.3)
	v.SetDefault("draft.max_tokens", 800)
	v.SetDefault("draft.temperature", 0.7)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.api_key_file", "")
	v.SetDefault("openai.model_name", "gpt-3.5-turbo")
	v.SetDefault("openai.base_url", "")

	// Mistral speaks the OpenAI wire protocol
	v.SetDefault("mistral.api_key", "")
	v.SetDefault("mistral.api_key_file", "")
	v.SetDefault("mistral.model_name", "mistral-medium")
	v.SetDefault("mistral.base_url", "https://api.mistral.ai/v1")

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.api_key_file", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")

	// Telegram
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.bot_token_file", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")
	v.SetDefault("telegram.daily_report", true)

	// Scheduler
	v.SetDefault("scheduler.poll_interval", "5m")
	v.SetDefault("scheduler.check_interval", "30s")
	v.SetDefault("scheduler.daily_report_time", "07:00")

	// Decision log
	v.SetDefault("decision_log.type", "json")
	v.SetDefault("decision_log.path", "opportunities_log.json")
	v.SetDefault("decision_log.sqlite_path", "opportunities.db")
	v.SetDefault("decision_log.mysql_dsn", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
