package mail

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/sentinelops/anomaly-sentinel/internal/service/notification"
)

// SMTPTransport delivers messages over plain SMTP with optional auth. One
// attempt per message: failures are the dispatcher's to report.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPTransport(cfg Config, logger *zap.Logger) *SMTPTransport {
	return &SMTPTransport{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		logger:   logger,
	}
}

// Send composes a multipart/alternative mail and submits it. The context
// deadline is honored up front; net/smtp itself has no cancellation hooks.
func (t *SMTPTransport) Send(ctx context.Context, msg notification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := composeMIME(t.from, msg)
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	var auth smtp.Auth
	if t.username != "" {
		auth = smtp.PlainAuth("", t.username, t.password, t.host)
	}

	if err := smtp.SendMail(addr, auth, t.from, msg.Recipients, body); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}

	t.logger.Debug("mail sent",
		zap.String("subject", msg.Subject),
		zap.Int("recipients", len(msg.Recipients)),
	)
	return nil
}

func composeMIME(from string, msg notification.Message) ([]byte, error) {
	var buf strings.Builder
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	text, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(msg.TextBody)); err != nil {
		return nil, err
	}

	if msg.HTMLBody != "" {
		html, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"text/html; charset=UTF-8"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := html.Write([]byte(msg.HTMLBody)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}
