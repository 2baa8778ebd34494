package smtp

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

type received struct {
	from string
	to   []string
	data []byte
	tls  bool
}

type testBackend struct {
	mu         sync.Mutex
	messages   []received
	rejectRcpt bool
}

func (b *testBackend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &testSession{backend: b, conn: c}, nil
}

func (b *testBackend) received() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.messages...)
}

type testSession struct {
	backend *testBackend
	conn    *gosmtp.Conn
	current received
}

func (s *testSession) Reset() {
	s.current = received{}
}

func (s *testSession) Logout() error {
	return nil
}

func (s *testSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.current.from = from
	_, s.current.tls = s.conn.TLSConnectionState()
	return nil
}

func (s *testSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	if s.backend.rejectRcpt {
		return &gosmtp.SMTPError{Code: 550, Message: "mailbox unavailable"}
	}
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = data
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.current)
	s.backend.mu.Unlock()
	return nil
}

func startServer(t *testing.T, be *testBackend) config.SMTPConfig {
	t.Helper()
	return startServerTLS(t, be, nil)
}

// startServerTLS starts the server with STARTTLS offered when tlsConfig is set
func startServerTLS(t *testing.T, be *testBackend, tlsConfig *tls.Config) config.SMTPConfig {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := gosmtp.NewServer(be)
	srv.Domain = "localhost"
	srv.TLSConfig = tlsConfig
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	addr := l.Addr().(*net.TCPAddr)
	return config.SMTPConfig{
		Server:   "127.0.0.1",
		Port:     addr.Port,
		Security: SecurityNone,
		From:     "Jane Freelance <jane@example.com>",
		Timeout:  5 * time.Second,
	}
}

func TestSendThreadedReply(t *testing.T) {
	be := &testBackend{}
	d := NewDispatcher(startServer(t, be), zap.NewNop())

	err := d.Send(context.Background(), "Client <client@example.com>", "Re: Mission Go",
		"Bonjour, budget validé.\n\nJane", "msg-1@example.com")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs := be.received()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	got := msgs[0]
	if got.from != "jane@example.com" || len(got.to) != 1 || got.to[0] != "client@example.com" {
		t.Fatalf("unexpected envelope: from=%q to=%v", got.from, got.to)
	}

	mr, err := mail.CreateReader(bytes.NewReader(got.data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subject, _ := mr.Header.Subject(); subject != "Re: Mission Go" {
		t.Fatalf("got subject %q", subject)
	}
	if v := mr.Header.Get("In-Reply-To"); v != "<msg-1@example.com>" {
		t.Fatalf("got In-Reply-To %q", v)
	}
	if v := mr.Header.Get("References"); v != "<msg-1@example.com>" {
		t.Fatalf("got References %q", v)
	}
	p, err := mr.NextPart()
	if err != nil {
		t.Fatalf("part: %v", err)
	}
	body, _ := io.ReadAll(p.Body)
	if !strings.Contains(string(body), "budget validé") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestSendRejectedRecipient(t *testing.T) {
	be := &testBackend{rejectRcpt: true}
	d := NewDispatcher(startServer(t, be), zap.NewNop())

	err := d.Send(context.Background(), "client@example.com", "Re: Offer", "body", "")
	var serr *core.SendError
	if !errors.As(err, &serr) || serr.Recipient != "client@example.com" {
		t.Fatalf("expected SendError, got %v", err)
	}
	if len(be.received()) != 0 {
		t.Fatalf("nothing should be delivered")
	}
}

func TestSendUnreachableServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	d := NewDispatcher(config.SMTPConfig{
		Server:   "127.0.0.1",
		Port:     port,
		Security: SecurityNone,
		From:     "jane@example.com",
		Timeout:  time.Second,
	}, zap.NewNop())

	err = d.Send(context.Background(), "client@example.com", "Re: Offer", "body", "")
	var serr *core.SendError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SendError, got %v", err)
	}
}

func TestSendInvalidRecipient(t *testing.T) {
	d := NewDispatcher(config.SMTPConfig{Server: "127.0.0.1", Port: 1, From: "jane@example.com"}, zap.NewNop())

	err := d.Send(context.Background(), "not an address", "Re: Offer", "body", "")
	var serr *core.SendError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SendError, got %v", err)
	}
}

// selfSigned returns a server certificate for 127.0.0.1 and a pool trusting it
func selfSigned(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, pool
}

func TestSendStartTLS(t *testing.T) {
	cert, pool := selfSigned(t)
	be := &testBackend{}
	cfg := startServerTLS(t, be, &tls.Config{Certificates: []tls.Certificate{cert}})
	cfg.Security = SecurityStartTLS

	d := NewDispatcher(cfg, zap.NewNop())
	d.tlsConfig = &tls.Config{ServerName: "127.0.0.1", RootCAs: pool, MinVersion: tls.VersionTLS12}

	if err := d.Send(context.Background(), "client@example.com", "Re: Offer", "body", "msg-2@example.com"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs := be.received()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if !msgs[0].tls {
		t.Fatalf("message should have been sent after STARTTLS")
	}
}

func TestSendStartTLSNotOffered(t *testing.T) {
	be := &testBackend{}
	cfg := startServer(t, be)
	cfg.Security = SecurityStartTLS

	err := NewDispatcher(cfg, zap.NewNop()).Send(context.Background(), "client@example.com", "Re: Offer", "body", "")
	var serr *core.SendError
	if !errors.As(err, &serr) || !strings.Contains(err.Error(), "STARTTLS") {
		t.Fatalf("expected STARTTLS SendError, got %v", err)
	}
	if len(be.received()) != 0 {
		t.Fatalf("nothing should be delivered in clear text")
	}
}
