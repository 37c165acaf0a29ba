// Package email delivers rendered notification emails over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/target/bgsms/internal/core"
	"github.com/target/bgsms/internal/util"
)

const defaultDialTimeout = 30 * time.Second

// Encryption modes accepted in smtp_json.
const (
	EncryptionNone     = "none"
	EncryptionSSL      = "ssl"
	EncryptionTLS      = "tls"
	EncryptionSTARTTLS = "starttls"
)

// Settings is the smtp_json blob stored on a notification template.
type Settings struct {
	Host       string      `json:"host"`
	Port       json.Number `json:"port"`
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	Encryption string      `json:"encryption"`
}

// ParseSettings decodes and validates smtp_json.
func ParseSettings(raw string) (Settings, error) {
	var s Settings
	if strings.TrimSpace(raw) == "" {
		return s, errors.New("smtp_json is empty")
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("decode smtp_json: %w", err)
	}
	s.Host = strings.TrimSpace(s.Host)
	s.Encryption = strings.ToLower(strings.TrimSpace(s.Encryption))
	if s.Host == "" {
		return s, errors.New("smtp_json: host is required")
	}
	if s.Port == "" {
		s.Port = "25"
		if s.Encryption == EncryptionSSL || s.Encryption == EncryptionTLS {
			s.Port = "465"
		}
	}
	if _, err := s.Port.Int64(); err != nil {
		return s, fmt.Errorf("smtp_json: invalid port %q", s.Port)
	}
	switch s.Encryption {
	case "", EncryptionNone, EncryptionSSL, EncryptionTLS, EncryptionSTARTTLS:
	default:
		return s, fmt.Errorf("smtp_json: unsupported encryption %q", s.Encryption)
	}
	return s, nil
}

func (s Settings) addr() string {
	return net.JoinHostPort(s.Host, s.Port.String())
}

func (s Settings) implicitTLS() bool {
	return s.Encryption == EncryptionSSL || s.Encryption == EncryptionTLS
}

// MailerOptions configures a Mailer.
type MailerOptions struct {
	Logger      *slog.Logger
	DialTimeout time.Duration
	// TLSConfig overrides the TLS client configuration; ServerName defaults to the SMTP host.
	TLSConfig *tls.Config
}

// Mailer implements core.Mailer with net/smtp.
type Mailer struct {
	logger  *slog.Logger
	timeout time.Duration
	tlsCfg  *tls.Config
}

// NewMailer constructs a Mailer.
func NewMailer(opts MailerOptions) *Mailer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &Mailer{logger: logger.With("component", "mailer"), timeout: timeout, tlsCfg: opts.TLSConfig}
}

// Send delivers msg to every To, CC and BCC recipient.
func (m *Mailer) Send(ctx context.Context, msg core.Message) error {
	settings, err := ParseSettings(msg.SMTPJSON)
	if err != nil {
		return err
	}
	env, err := newEnvelope(msg)
	if err != nil {
		return err
	}
	data, err := buildMessage(env, time.Now())
	if err != nil {
		return err
	}

	if err := m.deliver(ctx, settings, env, data); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.InfoContext(ctx, "email sent", "subject", env.subject, "recipients", len(env.recipients()))
	return nil
}

func (m *Mailer) tlsConfig(host string) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if m.tlsCfg != nil {
		cfg = m.tlsCfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

func (m *Mailer) deliver(ctx context.Context, s Settings, env *envelope, data []byte) (err error) {
	dialer := &net.Dialer{Timeout: m.timeout}
	var conn net.Conn
	if s.implicitTLS() {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: m.tlsConfig(s.Host)}).DialContext(ctx, "tcp", s.addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", s.addr())
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if derr := conn.SetDeadline(deadline); derr != nil {
			return errors.Join(derr, conn.Close())
		}
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return errors.Join(err, conn.Close())
	}
	defer func() {
		if cerr := client.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			m.logger.DebugContext(ctx, "smtp close", "error", cerr)
		}
	}()

	if !s.implicitTLS() && s.Encryption != EncryptionNone {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if terr := client.StartTLS(m.tlsConfig(s.Host)); terr != nil {
				return fmt.Errorf("starttls: %w", terr)
			}
		} else if s.Encryption == EncryptionSTARTTLS {
			return errors.New("server does not support STARTTLS")
		}
	}

	if s.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if aerr := client.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); aerr != nil {
				return fmt.Errorf("auth: %w", aerr)
			}
		}
	}

	if err := client.Mail(env.from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range env.recipients() {
		if err := client.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt.Address, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return errors.Join(fmt.Errorf("write body: %w", err), w.Close())
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return client.Quit()
}

type envelope struct {
	from     *mail.Address
	to       []*mail.Address
	cc       []*mail.Address
	bcc      []*mail.Address
	replyTo  []*mail.Address
	subject  string
	htmlBody string
}

func newEnvelope(msg core.Message) (*envelope, error) {
	var errs []error
	from := util.ParseAddress(msg.From)
	if from == nil {
		errs = append(errs, errors.New("from address is required"))
	}
	to := util.ParseAddressList(msg.To)
	if len(to) == 0 {
		errs = append(errs, errors.New("at least one valid to address is required"))
	}
	if strings.TrimSpace(msg.Subject) == "" {
		errs = append(errs, errors.New("subject is required"))
	}
	if strings.TrimSpace(msg.HTMLBody) == "" {
		errs = append(errs, errors.New("body is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &envelope{
		from:     from,
		to:       to,
		cc:       util.ParseAddressList(msg.CC),
		bcc:      util.ParseAddressList(msg.BCC),
		replyTo:  util.ParseAddressList(msg.ReplyTo),
		subject:  strings.TrimSpace(msg.Subject),
		htmlBody: msg.HTMLBody,
	}, nil
}

func (e *envelope) recipients() []*mail.Address {
	out := make([]*mail.Address, 0, len(e.to)+len(e.cc)+len(e.bcc))
	out = append(out, e.to...)
	out = append(out, e.cc...)
	return append(out, e.bcc...)
}

func joinAddresses(list []*mail.Address) string {
	parts := make([]string, len(list))
	for i, a := range list {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// buildMessage renders a multipart/alternative message with plain-text and HTML parts.
// BCC recipients are deliberately absent from the headers.
func buildMessage(env *envelope, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := []struct{ k, v string }{
		{"From", env.from.String()},
		{"To", joinAddresses(env.to)},
		{"Cc", joinAddresses(env.cc)},
		{"Reply-To", joinAddresses(env.replyTo)},
		{"Subject", mime.QEncoding.Encode("utf-8", env.subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", messageID(env.from.Address)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `multipart/alternative; boundary="` + mw.Boundary() + `"`},
	}
	var head bytes.Buffer
	for _, h := range header {
		if h.v == "" {
			continue
		}
		fmt.Fprintf(&head, "%s: %s\r\n", h.k, h.v)
	}
	head.WriteString("\r\n")

	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", htmlToText(env.htmlBody)},
		{"text/html; charset=utf-8", env.htmlBody},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return append(head.Bytes(), buf.Bytes()...), nil
}

func messageID(from string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = d
	}
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("<%d@%s>", time.Now().UnixNano(), domain)
	}
	return "<" + hex.EncodeToString(b) + "@" + domain + ">"
}

var (
	breakTags  = regexp.MustCompile(`(?i)<\s*(br|/p|/tr|/h[1-6]|/div|/li)\s*/?>`)
	cellTags   = regexp.MustCompile(`(?i)<\s*/td\s*>`)
	anyTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	blankLines = regexp.MustCompile(`\n[ \t]*\n([ \t]*\n)+`)
)

// htmlToText produces the plain-text alternative of an HTML body.
func htmlToText(body string) string {
	s := strings.ReplaceAll(body, "\r\n", "\n")
	s = breakTags.ReplaceAllString(s, "\n")
	s = cellTags.ReplaceAllString(s, "\t")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var _ core.Mailer = (*Mailer)(nil)
