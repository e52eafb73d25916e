// Package email sends the daily brief over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/summarize"
)

// Transport hands a finished message to the mail server.
type Transport func(ctx context.Context, from string, to []string, msg []byte) error

// Sender builds and sends brief emails.
type Sender struct {
	cfg       config.EmailConfig
	password  string
	transport Transport
	now       func() time.Time
}

// New resolves the SMTP password from the environment.
func New(cfg config.EmailConfig) *Sender {
	s := &Sender{cfg: cfg, password: config.Secret(cfg.SMTP.PasswordEnv), now: time.Now}
	s.transport = s.sendSMTP
	return s
}

// WithTransport replaces the SMTP transport.
func (s *Sender) WithTransport(t Transport) *Sender {
	s.transport = t
	return s
}

func (s *Sender) Name() string { return "email" }

// Subject fills {date} in tpl.
func Subject(tpl string, now time.Time) string {
	return strings.ReplaceAll(tpl, "{date}", now.Format("2006-01-02"))
}

// Deliver sends the English brief.
func (s *Sender) Deliver(ctx context.Context, b summarize.Bundle, topics []news.Topic) bool {
	return s.deliver(ctx, b, topics, false)
}

// DeliverChinese sends the translated brief with the Chinese subject.
func (s *Sender) DeliverChinese(ctx context.Context, b summarize.Bundle, topics []news.Topic) bool {
	return s.deliver(ctx, b, topics, true)
}

func (s *Sender) deliver(ctx context.Context, b summarize.Bundle, topics []news.Topic, chinese bool) bool {
	log := logger.Component("email")
	if len(s.cfg.To) == 0 || s.cfg.FromAddress == "" {
		log.Warn("email sender or recipients missing, skipping")
		return false
	}

	now := s.now()
	tpl := s.cfg.SubjectTemplate
	if chinese && s.cfg.ChineseSubjectTemplate != "" {
		tpl = s.cfg.ChineseSubjectTemplate
	}
	msg, err := s.Message(Subject(tpl, now), Content{
		Date:           now,
		Bundle:         b,
		Topics:         topics,
		IncludeTopics:  s.cfg.IncludeTopics,
		IncludeSummary: s.cfg.IncludeSummary,
		Chinese:        chinese,
	})
	if err != nil {
		log.Error("build email failed", "error", err)
		return false
	}

	if err := s.transport(ctx, s.cfg.FromAddress, s.cfg.To, msg); err != nil {
		log.Error("send email failed", "host", s.cfg.SMTP.Host, "error", err)
		return false
	}
	log.Info("email sent", "to", s.cfg.To, "chinese", chinese)
	return true
}

// Message renders a multipart/alternative message with text and HTML parts.
func (s *Sender) Message(subject string, c Content) ([]byte, error) {
	htmlBody, err := HTML(c)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct{ ctype, text string }{
		{"text/plain; charset=utf-8", Text(c)},
		{"text/html; charset=utf-8", htmlBody},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("create part: %w", err)
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.text)); err != nil {
			return nil, fmt.Errorf("encode part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	from := mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddress}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// sendSMTP dials the configured server, upgrades with STARTTLS when use_tls is
// set and authenticates with PLAIN when a password is available.
func (s *Sender) sendSMTP(ctx context.Context, from string, to []string, msg []byte) error {
	smtpCfg := s.cfg.SMTP
	if s.password == "" {
		return fmt.Errorf("smtp password not set (%s): %w", smtpCfg.PasswordEnv, config.ErrMissingCredential)
	}
	addr := net.JoinHostPort(smtpCfg.Host, strconv.Itoa(smtpCfg.Port))
	logger.Component("email").Info("connecting to smtp", "addr", addr)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, smtpCfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if smtpCfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server %s does not support STARTTLS", smtpCfg.Host)
		}
		if err := c.StartTLS(&tls.Config{ServerName: smtpCfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	user := smtpCfg.Username
	if user == "" {
		user = from
	}
	if err := c.Auth(smtp.PlainAuth("", user, s.password, smtpCfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return c.Quit()
}
