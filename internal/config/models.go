package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/secrets"
)

// Provider names accepted in llm.providers
const (
	ProviderOpenAI  = "openai"
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// GenerationConfig tunes one kind of prompt
type GenerationConfig struct {
	MaxTokens   int
	Temperature float32
}

// LLMConfig represents the provider chain configuration
type LLMConfig struct {
	Providers   []string
	Timeout     time.Duration
	MaxBodySize int
	Classify    GenerationConfig
	Draft       GenerationConfig
}

// OpenAIConfig configures an OpenAI-compatible endpoint
type OpenAIConfig struct {
	APIKey    string
	ModelName string
	BaseURL   string
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey    string
	ModelName string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region  string
	ModelID string
}

// IMAPConfig represents the mailbox source configuration
type IMAPConfig struct {
	Server         string
	Port           int
	Username       string
	Password       string
	Mailbox        string
	BulkLimit      int
	Timeout        time.Duration
	IgnoredSenders []string
}

// Addr returns host:port
func (c IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// SMTPConfig represents the outbound mail configuration
type SMTPConfig struct {
	Server   string
	Port     int
	Security string
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Addr returns host:port
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// TelegramConfig represents the alerting configuration
type TelegramConfig struct {
	Enabled     bool
	BotToken    string
	ChatID      string
	APIURL      string
	Timeout     time.Duration
	DailyReport bool
}

// Active reports whether alerts can be sent
func (c TelegramConfig) Active() bool {
	return c.Enabled && c.BotToken != "" && c.ChatID != ""
}

// SchedulerConfig represents the monitoring loop configuration
type SchedulerConfig struct {
	PollInterval  time.Duration
	CheckInterval time.Duration
	ReportHour    int
	ReportMinute  int
}

// DecisionLogConfig selects the decision log backend
type DecisionLogConfig struct {
	Type       string
	Path       string
	SQLitePath string
	MySQLDSN   string
}

// ReplyConfig represents the reply settings
type ReplyConfig struct {
	Signature       string
	FallbackSubject string
	FallbackMessage string
	PrefixSubject   bool
}

// GetCriteria returns the opportunity criteria
func (c *Config) GetCriteria() core.Criteria {
	seen := make(map[string]struct{})
	var keywords []string
	for _, k := range c.GetStringSlice("criteria.keywords_to_avoid") {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, k)
	}

	return core.Criteria{
		BudgetMin:          c.GetInt("criteria.budget_min"),
		DurationMax:        c.GetInt("criteria.duration_max"),
		Language:           c.GetString("criteria.language"),
		WorkMode:           c.GetString("criteria.work_mode"),
		KeywordsToAvoid:    keywords,
		RelevanceThreshold: c.GetInt("criteria.relevance_threshold"),
		Profile:            c.GetString("criteria.profile"),
		Policy:             core.DecisionPolicy(strings.ToLower(c.GetString("criteria.decision_policy"))),
	}
}

// GetReply returns the reply configuration
func (c *Config) GetReply() ReplyConfig {
	return ReplyConfig{
		Signature:       c.GetString("reply.signature"),
		FallbackSubject: c.GetString("reply.fallback_subject"),
		FallbackMessage: c.GetString("reply.fallback_message"),
		PrefixSubject:   c.GetBool("reply.prefix_subject"),
	}
}

// GetLLM returns the LLM chain configuration
func (c *Config) GetLLM() (LLMConfig, error) {
	timeout, err := c.GetDuration("llm.timeout")
	if err != nil {
		return LLMConfig{}, err
	}
	var providers []string
	for _, p := range c.GetStringSlice("llm.providers") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			providers = append(providers, p)
		}
	}
	return LLMConfig{
		Providers:   providers,
		Timeout:     timeout,
		MaxBodySize: c.GetInt("llm.max_body_size"),
		Classify: GenerationConfig{
			MaxTokens:   c.GetInt("classify.max_tokens"),
			Temperature: float32(c.GetFloat64("classify.temperature")),
		},
		Draft: GenerationConfig{
			MaxTokens:   c.GetInt("draft.max_tokens"),
			Temperature: float32(c.GetFloat64("draft.temperature")),
		},
	}, nil
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() (OpenAIConfig, error) {
	return c.openAICompatible("openai")
}

// GetMistral returns the Mistral configuration
func (c *Config) GetMistral() (OpenAIConfig, error) {
	return c.openAICompatible("mistral")
}

func (c *Config) openAICompatible(prefix string) (OpenAIConfig, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  prefix + " API key",
		Value: c.GetString(prefix + ".api_key"),
		File:  c.GetString(prefix + ".api_key_file"),
	})
	if err != nil {
		return OpenAIConfig{}, err
	}
	return OpenAIConfig{
		APIKey:    key,
		ModelName: c.GetString(prefix + ".model_name"),
		BaseURL:   c.GetString(prefix + ".base_url"),
	}, nil
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() (GeminiConfig, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  "gemini API key",
		Value: c.GetString("gemini.api_key"),
		File:  c.GetString("gemini.api_key_file"),
	})
	if err != nil {
		return GeminiConfig{}, err
	}
	return GeminiConfig{
		APIKey:    key,
		ModelName: c.GetString("gemini.model_name"),
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:  c.GetString("bedrock.region"),
		ModelID: c.GetString("bedrock.model_id"),
	}
}

// GetIMAP returns the mailbox configuration
func (c *Config) GetIMAP() (IMAPConfig, error) {
	timeout, err := c.GetDuration("imap.timeout")
	if err != nil {
		return IMAPConfig{}, err
	}
	password, err := secrets.Load(secrets.Source{
		Name:  "imap password",
		Value: c.GetString("imap.password"),
		File:  c.GetString("imap.password_file"),
	})
	if err != nil {
		return IMAPConfig{}, err
	}
	return IMAPConfig{
		Server:         c.GetString("imap.server"),
		Port:           c.GetInt("imap.port"),
		Username:       c.GetString("imap.username"),
		Password:       password,
		Mailbox:        c.GetString("imap.mailbox"),
		BulkLimit:      c.GetInt("imap.bulk_limit"),
		Timeout:        timeout,
		IgnoredSenders: c.GetStringSlice("imap.ignored_senders"),
	}, nil
}

// GetSMTP returns the outbound mail configuration. The IMAP username is
// used when no SMTP username or sender address is given.
func (c *Config) GetSMTP() (SMTPConfig, error) {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		return SMTPConfig{}, err
	}
	username := c.GetString("smtp.username")
	if username == "" {
		username = c.GetString("imap.username")
	}
	password, err := secrets.LoadOptional(secrets.Source{
		Name:  "smtp password",
		Value: c.GetString("smtp.password"),
		File:  c.GetString("smtp.password_file"),
	})
	if err != nil {
		return SMTPConfig{}, err
	}
	if password == "" && c.GetString("smtp.username") == "" {
		if password, err = secrets.LoadOptional(secrets.Source{
			Name:  "imap password",
			Value: c.GetString("imap.password"),
			File:  c.GetString("imap.password_file"),
		}); err != nil {
			return SMTPConfig{}, err
		}
	}
	from := c.GetString("smtp.from")
	if from == "" {
		from = username
	}
	return SMTPConfig{
		Server:   c.GetString("smtp.server"),
		Port:     c.GetInt("smtp.port"),
		Security: strings.ToLower(c.GetString("smtp.security")),
		Username: username,
		Password: password,
		From:     from,
		Timeout:  timeout,
	}, nil
}

// GetTelegram returns the alerting configuration
func (c *Config) GetTelegram() (TelegramConfig, error) {
	timeout, err := c.GetDuration("telegram.timeout")
	if err != nil {
		return TelegramConfig{}, err
	}
	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "telegram bot token",
		Value: c.GetString("telegram.bot_token"),
		File:  c.GetString("telegram.bot_token_file"),
	})
	if err != nil {
		return TelegramConfig{}, err
	}
	return TelegramConfig{
		Enabled:     c.GetBool("telegram.enabled"),
		BotToken:    token,
		ChatID:      c.GetString("telegram.chat_id"),
		APIURL:      strings.TrimRight(c.GetString("telegram.api_url"), "/"),
		Timeout:     timeout,
		DailyReport: c.GetBool("telegram.daily_report"),
	}, nil
}

// GetScheduler returns the monitoring loop configuration
func (c *Config) GetScheduler() (SchedulerConfig, error) {
	poll, err := c.GetDuration("scheduler.poll_interval")
	if err != nil {
		return SchedulerConfig{}, err
	}
	check, err := c.GetDuration("scheduler.check_interval")
	if err != nil {
		return SchedulerConfig{}, err
	}
	hour, minute, err := ParseTimeOfDay(c.GetString("scheduler.daily_report_time"))
	if err != nil {
		return SchedulerConfig{}, err
	}
	return SchedulerConfig{
		PollInterval:  poll,
		CheckInterval: check,
		ReportHour:    hour,
		ReportMinute:  minute,
	}, nil
}

// GetDecisionLog returns the decision log configuration
func (c *Config) GetDecisionLog() DecisionLogConfig {
	return DecisionLogConfig{
		Type:       strings.ToLower(c.GetString("decision_log.type")),
		Path:       c.GetString("decision_log.path"),
		SQLitePath: c.GetString("decision_log.sqlite_path"),
		MySQLDSN:   c.GetString("decision_log.mysql_dsn"),
	}
}

// ParseTimeOfDay parses an "HH:MM" clock time
func ParseTimeOfDay(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	var errs []error

	criteria := c.GetCriteria()
	if criteria.RelevanceThreshold < 0 || criteria.RelevanceThreshold > 10 {
		errs = append(errs, fmt.Errorf("criteria.relevance_threshold must be between 0 and 10, got %d", criteria.RelevanceThreshold))
	}
	if !criteria.Policy.Valid() {
		errs = append(errs, fmt.Errorf("unsupported criteria.decision_policy: %s", criteria.Policy))
	}

	if _, err := c.GetScheduler(); err != nil {
		errs = append(errs, err)
	}

	llm, err := c.GetLLM()
	if err != nil {
		errs = append(errs, err)
	}
	if len(llm.Providers) == 0 {
		errs = append(errs, errors.New("llm.providers must list at least one provider"))
	}
	for _, p := range llm.Providers {
		switch p {
		case ProviderOpenAI, ProviderMistral, ProviderGemini, ProviderBedrock:
		default:
			errs = append(errs, fmt.Errorf("unsupported LLM provider: %s", p))
		}
	}

	switch c.GetDecisionLog().Type {
	case "json", "memory", "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unsupported decision log type: %s", c.GetDecisionLog().Type))
	}

	switch strings.ToLower(c.GetString("smtp.security")) {
	case "tls", "starttls", "none":
	default:
		errs = append(errs, fmt.Errorf("unsupported smtp.security: %s", c.GetString("smtp.security")))
	}

	return errors.Join(errs...)
}
