package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// Client is the part of *client.Client the mailbox source uses
type Client interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

// Dialer opens an IMAP connection
type Dialer func(addr string, timeout time.Duration) (Client, error)

// DialTLS connects over implicit TLS with a bounded dial and command timeout
func DialTLS(addr string, timeout time.Duration) (Client, error) {
	host, _, _ := net.SplitHostPort(addr)
	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: timeout}, addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, err
	}
	c.Timeout = timeout
	return c, nil
}

// Mailbox is the IMAP implementation of core.MailboxSource
type Mailbox struct {
	cfg    config.IMAPConfig
	dial   Dialer
	logger *zap.Logger
}

// NewMailbox creates a new IMAP mailbox source
func NewMailbox(cfg config.IMAPConfig, logger *zap.Logger) *Mailbox {
	return NewMailboxWithDialer(cfg, DialTLS, logger)
}

// NewMailboxWithDialer creates a mailbox source using the given dialer
func NewMailboxWithDialer(cfg config.IMAPConfig, dial Dialer, logger *zap.Logger) *Mailbox {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Mailbox{
		cfg:    cfg,
		dial:   dial,
		logger: logger,
	}
}

// Fetch returns the candidate messages for the mode, most recent first.
// Bulk ignores the read state and is capped by the bulk limit; incremental
// returns unread messages. Bodies are peeked and only the messages that
// parsed are flagged as read. On a connection failure the error is a
// *core.ConnectionError and the slice is empty.
func (m *Mailbox) Fetch(ctx context.Context, mode core.FetchMode) ([]*core.Opportunity, error) {
	addr := m.cfg.Addr()
	logger := m.logger.With(zap.String("server", addr), zap.String("mode", mode.String()))

	fail := func(op string, err error) ([]*core.Opportunity, error) {
		cerr := &core.ConnectionError{Op: op, Server: addr, Err: err}
		logger.Error("Mailbox unavailable", zap.Error(cerr))
		return []*core.Opportunity{}, cerr
	}

	if err := ctx.Err(); err != nil {
		return fail("dial", err)
	}

	c, err := m.dial(addr, m.cfg.Timeout)
	if err != nil {
		return fail("dial", err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			logger.Debug("Logout failed", zap.Error(err))
		}
	}()

	if err := c.Login(m.cfg.Username, m.cfg.Password); err != nil {
		return fail("login", err)
	}

	status, err := c.Select(m.cfg.Mailbox, false)
	if err != nil {
		return fail("select", err)
	}
	logger.Debug("Mailbox selected",
		zap.String("mailbox", m.cfg.Mailbox),
		zap.Uint32("messages", status.Messages))

	criteria := imap.NewSearchCriteria()
	if mode == core.FetchIncremental {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fail("search", err)
	}

	uids = selectUIDs(uids, mode, m.cfg.BulkLimit)
	if len(uids) == 0 {
		logger.Debug("No candidate messages")
		return []*core.Opportunity{}, nil
	}

	messages, err := m.fetch(c, uids, logger)
	if err != nil && len(messages) == 0 {
		return fail("fetch", err)
	}
	if err != nil {
		logger.Error("Fetch interrupted, keeping the messages already read",
			zap.Int("fetched", len(messages)),
			zap.Int("requested", len(uids)),
			zap.Error(err))
	}
	m.markSeen(c, messages, logger)

	logger.Info("Fetched messages", zap.Int("count", len(messages)))
	return messages, nil
}

// selectUIDs orders UIDs most recent first and applies the bulk cap
func selectUIDs(uids []uint32, mode core.FetchMode, limit int) []uint32 {
	sorted := make([]uint32, len(uids))
	copy(sorted, uids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	if mode == core.FetchBulk && limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func (m *Mailbox) fetch(c Client, uids []uint32, logger *zap.Logger) ([]*core.Opportunity, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, ch)
	}()

	byUID := make(map[uint32]*core.Opportunity, len(uids))
	for msg := range ch {
		r := msg.GetBody(section)
		if r == nil {
			logger.Warn("Message has no body", zap.Uint32("uid", msg.Uid))
			continue
		}
		opp, err := ParseMessage(msg.Uid, r, msg.InternalDate)
		if err != nil {
			// left unread for a human
			logger.Error("Failed to parse message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		byUID[msg.Uid] = opp
	}

	// the server may answer in any order
	out := make([]*core.Opportunity, 0, len(byUID))
	for _, uid := range uids {
		if opp, ok := byUID[uid]; ok {
			out = append(out, opp)
		}
	}

	if err := <-done; err != nil {
		return out, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return out, nil
}

// markSeen flags the returned messages as read. A failure is only logged:
// the session still deduplicates them in this process.
func (m *Mailbox) markSeen(c Client, messages []*core.Opportunity, logger *zap.Logger) {
	if len(messages) == 0 {
		return
	}
	seqSet := new(imap.SeqSet)
	for _, opp := range messages {
		uid, err := strconv.ParseUint(opp.ID, 10, 32)
		if err != nil {
			continue
		}
		seqSet.AddNum(uint32(uid))
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := c.UidStore(seqSet, item, flags, nil); err != nil {
		logger.Warn("Failed to mark messages as read", zap.Int("count", len(messages)), zap.Error(err))
	}
}
