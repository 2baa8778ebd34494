package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// DefaultAPIURL is the public Bot API endpoint
const DefaultAPIURL = "https://api.telegram.org"

// maxReasons is the number of reasons shown in an alert
const maxReasons = 3

// Notifier posts messages to a Telegram chat through the Bot API
type Notifier struct {
	cfg    config.TelegramConfig
	client *http.Client
	logger *zap.Logger
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(cfg config.TelegramConfig, logger *zap.Logger) *Notifier {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts an HTML formatted message to the configured chat
func (n *Notifier) SendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.APIURL, n.cfg.BotToken)
	form := url.Values{
		"chat_id":    {n.cfg.ChatID},
		"text":       {text},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		// the URL carries the bot token
		return fmt.Errorf("telegram request failed: %w", redact(err, n.cfg.BotToken))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("telegram returned status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, result.Description)
	}

	n.logger.Debug("Telegram message sent", zap.Int("length", len(text)))
	return nil
}

// NotifyOpportunity sends the high-score alert for an opportunity
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp *core.Opportunity, result core.AnalysisResult) error {
	return n.SendMessage(ctx, FormatAlert(opp, result))
}

// FormatAlert renders the alert for a high-score opportunity
func FormatAlert(opp *core.Opportunity, result core.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("🎯 <b>High-relevance opportunity</b>\n\n")
	fmt.Fprintf(&b, "📧 <b>Subject:</b> %s\n", html.EscapeString(opp.Subject))
	fmt.Fprintf(&b, "👤 <b>Sender:</b> %s\n", html.EscapeString(opp.Sender))
	fmt.Fprintf(&b, "📊 <b>Pertinence:</b> %d/10\n", result.Pertinence)
	fmt.Fprintf(&b, "✅ <b>Decision:</b> %s\n", html.EscapeString(string(result.Decision)))

	if len(result.Reasons) > 0 {
		b.WriteString("\n💡 <b>Reasons:</b>\n")
		for i, reason := range result.Reasons {
			if i == maxReasons {
				break
			}
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(reason))
		}
	}
	return b.String()
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

var _ core.Notifier = (*Notifier)(nil)
