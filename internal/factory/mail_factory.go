package factory

import (
	"github.com/mikey/opportunity-agent/internal/adapters/imap"
	"github.com/mikey/opportunity-agent/internal/adapters/smtp"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/ignorelist"
	"go.uber.org/zap"
)

// MailFactory creates the inbound and outbound mail adapters
type MailFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailbox creates the IMAP mailbox source
func (f *MailFactory) CreateMailbox() (core.MailboxSource, error) {
	imapCfg, err := f.cfg.GetIMAP()
	if err != nil {
		return nil, err
	}
	return imap.NewMailbox(imapCfg, f.logger), nil
}

// CreateDispatcher creates the SMTP dispatcher
func (f *MailFactory) CreateDispatcher() (core.Dispatcher, error) {
	smtpCfg, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}
	return smtp.NewDispatcher(smtpCfg, f.logger), nil
}

// CreateSenderFilter creates the ignored-senders filter. The mailbox's
// own address is always ignored.
func (f *MailFactory) CreateSenderFilter() core.SenderFilter {
	entries := f.cfg.GetStringSlice("imap.ignored_senders")
	if own := f.cfg.GetString("imap.username"); own != "" {
		entries = append(entries, own)
	}
	return ignorelist.NewChecker(entries, f.logger)
}
