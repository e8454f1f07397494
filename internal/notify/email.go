package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/jmehdipour/leadsite/internal/dedup"
	"github.com/jmehdipour/leadsite/internal/metrics"
	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/util"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailOptions struct {
	From     string
	FromName string
	ReplyTo  string
	Enabled  bool
	Timeout  time.Duration
}

type EmailSender struct {
	mailer Mailer
	opts   EmailOptions
	dedup  *dedup.Deduplicator
	log    *zap.Logger
}

// NewSMTPMailer returns a gomail dialer, or nil when host or user is empty.
func NewSMTPMailer(host string, port int, user, password string) Mailer {
	if host == "" || user == "" {
		return nil
	}
	if port <= 0 {
		port = 587
	}
	return gomail.NewDialer(host, port, user, password)
}

func NewEmailSender(mailer Mailer, opts EmailOptions, d *dedup.Deduplicator, log *zap.Logger) *EmailSender {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailSender{mailer: mailer, opts: opts, dedup: d, log: log.Named("email")}
}

func (s *EmailSender) Channel() model.Channel { return model.ChannelEmail }

// Configured reports whether a transport and sender address are present.
func (s *EmailSender) Configured() bool { return s.mailer != nil && s.opts.From != "" }

func (s *EmailSender) Send(ctx context.Context, to, templateName string, data TemplateData, messageType string) (res Result) {
	defer func() { metrics.NotificationsTotal.WithLabelValues(model.ChannelEmail.String(), res.Outcome()).Inc() }()

	to = strings.TrimSpace(strings.ToLower(to))
	if !s.opts.Enabled {
		return softSkip("email disabled for this package")
	}
	if !s.Configured() {
		s.log.Warn("email not configured, skipping", zap.String("template", templateName))
		return softSkip("email not configured")
	}
	if to == "" {
		return failed(fmt.Errorf("missing recipient"))
	}

	subject, body, err := renderEmail(templateName, data)
	if err != nil {
		s.log.Error("render email failed", zap.String("template", templateName), zap.Error(err))
		return failed(err)
	}

	key := dedup.Key(model.ChannelEmail.String(), to, dedup.ContentPrefix(subject+body, 100), messageType)
	if s.dedup != nil && s.dedup.ShouldSuppress(ctx, key) {
		s.log.Info("duplicate email suppressed", zap.String("to", to), zap.String("type", messageType))
		return duplicate()
	}

	msgID := fmt.Sprintf("<%s@%s>", util.NewID(), domainOf(s.opts.From))
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.opts.From, s.opts.FromName)
	m.SetHeader("To", to)
	if s.opts.ReplyTo != "" {
		m.SetHeader("Reply-To", s.opts.ReplyTo)
	}
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", msgID)
	m.SetBody("text/html", body)

	if err := s.dialAndSend(ctx, m); err != nil {
		s.log.Error("smtp send failed", zap.String("to", to), zap.String("template", templateName), zap.Error(err))
		return failed(err)
	}

	if s.dedup != nil {
		s.dedup.MarkSent(ctx, key)
	}
	s.log.Info("email sent", zap.String("to", to), zap.String("template", templateName))
	return Result{Success: true, ProviderMessageID: msgID}
}

// dialAndSend bounds the SMTP exchange by ctx and the configured timeout. gomail has
// no context support, so a timed-out send finishes in the background.
func (s *EmailSender) dialAndSend(ctx context.Context, m *gomail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.mailer.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
