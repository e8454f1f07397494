package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/dedup"
	"github.com/jmehdipour/leadsite/internal/metrics"
	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/util"
)

const whatsAppPrefix = "whatsapp:"

// MessageAPI is the slice of the Twilio REST client used here; *openapi.ApiService satisfies it.
type MessageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type WhatsAppOptions struct {
	From               string
	DefaultCountryCode string // only used when explicitly configured
	Enabled            bool
}

type WhatsAppSender struct {
	api   MessageAPI
	opts  WhatsAppOptions
	dedup *dedup.Deduplicator
	log   *zap.Logger
}

// NewTwilioAPI returns the Twilio message API, or nil without credentials.
func NewTwilioAPI(accountSID, authToken string) MessageAPI {
	if accountSID == "" || authToken == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return client.Api
}

func NewWhatsAppSender(api MessageAPI, opts WhatsAppOptions, d *dedup.Deduplicator, log *zap.Logger) *WhatsAppSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &WhatsAppSender{api: api, opts: opts, dedup: d, log: log.Named("whatsapp")}
}

func (s *WhatsAppSender) Channel() model.Channel { return model.ChannelWhatsApp }

func (s *WhatsAppSender) Configured() bool { return s.api != nil && s.opts.From != "" }

func (s *WhatsAppSender) Send(ctx context.Context, to, templateName string, data TemplateData, messageType string) (res Result) {
	defer func() { metrics.NotificationsTotal.WithLabelValues(model.ChannelWhatsApp.String(), res.Outcome()).Inc() }()

	if !s.opts.Enabled {
		return softSkip("whatsapp disabled for this package")
	}
	if !s.Configured() {
		s.log.Warn("whatsapp not configured, skipping", zap.String("template", templateName))
		return softSkip("whatsapp not configured")
	}

	body, err := renderWhatsApp(templateName, data)
	if err != nil {
		s.log.Error("render whatsapp failed", zap.String("template", templateName), zap.Error(err))
		return failed(err)
	}

	toAddr, err := FormatWhatsApp(to, s.opts.DefaultCountryCode)
	if err != nil {
		s.log.Warn("invalid whatsapp recipient", zap.String("to", to), zap.Error(err))
		return failed(err)
	}
	fromAddr, err := FormatWhatsApp(s.opts.From, s.opts.DefaultCountryCode)
	if err != nil {
		return failed(fmt.Errorf("invalid whatsapp sender: %w", err))
	}

	key := dedup.Key(model.ChannelWhatsApp.String(), toAddr, dedup.ContentPrefix(body, 100), messageType)
	if s.dedup != nil && s.dedup.ShouldSuppress(ctx, key) {
		s.log.Info("duplicate whatsapp suppressed", zap.String("to", toAddr), zap.String("type", messageType))
		return duplicate()
	}
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(toAddr)
	params.SetFrom(fromAddr)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		s.log.Error("twilio send failed", zap.String("to", toAddr), zap.Error(err))
		return failed(err)
	}

	if s.dedup != nil {
		s.dedup.MarkSent(ctx, key)
	}

	res = Result{Success: true}
	if msg != nil && msg.Sid != nil {
		res.ProviderMessageID = *msg.Sid
	}
	s.log.Info("whatsapp sent", zap.String("to", toAddr), zap.String("sid", res.ProviderMessageID))
	return res
}

// FormatWhatsApp normalizes a number into "whatsapp:+<cc><digits>".
func FormatWhatsApp(raw, defaultCC string) (string, error) {
	n, err := util.NormalizeE164(strings.TrimPrefix(strings.TrimSpace(raw), whatsAppPrefix), defaultCC)
	if err != nil {
		return "", err
	}
	return whatsAppPrefix + n, nil
}
