package factory

import (
	"github.com/mikey/opportunity-agent/internal/adapters/telegram"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// NotifierFactory chooses the alerting channel
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *NotifierFactory) telegram() (*telegram.Notifier, config.TelegramConfig, error) {
	tgCfg, err := f.cfg.GetTelegram()
	if err != nil {
		return nil, tgCfg, err
	}
	if !tgCfg.Active() {
		if tgCfg.Enabled {
			f.logger.Warn("Telegram enabled but bot token or chat id is missing, alerts disabled")
		}
		return nil, tgCfg, nil
	}
	return telegram.NewNotifier(tgCfg, f.logger), tgCfg, nil
}

// CreateNotifier returns the Telegram notifier when it is configured and
// a no-op notifier otherwise
func (f *NotifierFactory) CreateNotifier() (core.Notifier, error) {
	n, _, err := f.telegram()
	if err != nil {
		return nil, err
	}
	if n == nil {
		return core.NoopNotifier{}, nil
	}
	return n, nil
}

// CreateReporter returns the daily reporter, or nil when the report is
// disabled or Telegram is not configured
func (f *NotifierFactory) CreateReporter(log core.DecisionLog) (core.Reporter, error) {
	n, tgCfg, err := f.telegram()
	if err != nil || n == nil {
		return nil, err
	}
	if !tgCfg.DailyReport {
		return nil, nil
	}
	return telegram.NewReporter(n, log, f.logger), nil
}
