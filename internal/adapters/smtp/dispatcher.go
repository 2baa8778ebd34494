package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// Security modes accepted in smtp.security
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

const defaultTimeout = 30 * time.Second

// Dispatcher sends replies through an SMTP submission server. Each Send is
// a single attempt on a fresh connection.
type Dispatcher struct {
	cfg       config.SMTPConfig
	tlsConfig *tls.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewDispatcher creates a new SMTP dispatcher
func NewDispatcher(cfg config.SMTPConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Security == "" {
		cfg.Security = SecurityTLS
	}
	return &Dispatcher{
		cfg:       cfg,
		tlsConfig: &tls.Config{ServerName: cfg.Server, MinVersion: tls.VersionTLS12},
		logger:    logger,
		now:       time.Now,
	}
}

// Send delivers the reply. Any failure is returned as a *core.SendError.
func (d *Dispatcher) Send(ctx context.Context, to, subject, body, inReplyTo string) error {
	msg, err := buildMessage(d.cfg.From, to, subject, body, inReplyTo, d.now())
	if err != nil {
		return &core.SendError{Recipient: to, Err: err}
	}

	rcpt, err := parseAddress(to)
	if err != nil {
		return &core.SendError{Recipient: to, Err: err}
	}
	sender, err := parseAddress(d.cfg.From)
	if err != nil {
		return &core.SendError{Recipient: to, Err: err}
	}

	if err := d.deliver(ctx, sender.Address, rcpt.Address, msg); err != nil {
		return &core.SendError{Recipient: to, Err: err}
	}

	d.logger.Debug("Message delivered",
		zap.String("server", d.cfg.Addr()),
		zap.String("to", rcpt.Address),
		zap.Int("size", len(msg)))
	return nil
}

func (d *Dispatcher) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.cfg.Timeout}
	if d.cfg.Security == SecurityTLS {
		td := &tls.Dialer{NetDialer: dialer, Config: d.tlsConfig}
		return td.DialContext(ctx, "tcp", d.cfg.Addr())
	}
	return dialer.DialContext(ctx, "tcp", d.cfg.Addr())
}

func (d *Dispatcher) deliver(ctx context.Context, from, to string, msg []byte) error {
	conn, err := d.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", d.cfg.Addr(), err)
	}

	// Bound the whole conversation
	if err := conn.SetDeadline(time.Now().Add(d.cfg.Timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c, err := d.newClient(conn)
	if err != nil {
		return err
	}
	defer c.Close()

	if d.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", d.cfg.Username, d.cfg.Password)); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted
		d.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// newClient greets the server. In starttls mode the greeting and the
// upgrade are done by go-smtp itself, so Hello must not be sent again.
func (d *Dispatcher) newClient(conn net.Conn) (*gosmtp.Client, error) {
	if d.cfg.Security == SecurityStartTLS {
		c, err := gosmtp.NewClientStartTLS(conn, d.tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
		return c, nil
	}

	c := gosmtp.NewClient(conn)
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO failed: %w", err)
	}
	return c, nil
}

var _ core.Dispatcher = (*Dispatcher)(nil)

