// Package features resolves the effective feature set of a client from its
// package tier and explicit per-feature overrides.
package features

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

type Feature string

const (
	Email     Feature = "email"
	Chatbot   Feature = "chatbot"
	Sheets    Feature = "sheets"
	WhatsApp  Feature = "whatsapp"
	Booking   Feature = "booking"
	FollowUps Feature = "followUps"
	Reports   Feature = "reports"
)

// All lists every known feature in display order.
var All = []Feature{Email, Chatbot, Sheets, WhatsApp, Booking, FollowUps, Reports}

// ParseFeature matches a feature name case-insensitively ("followups" == "followUps").
func ParseFeature(s string) (Feature, bool) {
	for _, f := range All {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, true
		}
	}
	return "", false
}

type Tier string

const (
	TierCore    Tier = "CORE"
	TierPro     Tier = "PRO"
	TierPremium Tier = "PREMIUM"
)

func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case "", TierCore:
		return TierCore, true
	case TierPro:
		return TierPro, true
	case TierPremium:
		return TierPremium, true
	default:
		return TierCore, false
	}
}

// Set is an immutable-by-convention feature set.
type Set map[Feature]bool

func NewSet(fs ...Feature) Set {
	s := make(Set, len(fs))
	for _, f := range fs {
		s[f] = true
	}
	return s
}

func (s Set) Has(f Feature) bool { return s[f] }

func (s Set) union(o Set) Set {
	out := make(Set, len(s)+len(o))
	for f, on := range s {
		out[f] = on
	}
	for f, on := range o {
		if on {
			out[f] = true
		}
	}
	return out
}

// Sorted returns the enabled features in display order.
func (s Set) Sorted() []Feature {
	out := make([]Feature, 0, len(s))
	for _, f := range All {
		if s[f] {
			out = append(out, f)
		}
	}
	return out
}

var (
	coreSet    = NewSet(Email, Chatbot, Sheets)
	proSet     = coreSet.union(NewSet(WhatsApp, Booking))
	premiumSet = proSet.union(NewSet(FollowUps, Reports))
)

// TierDefaults returns a fresh copy of the features bundled with tier.
func TierDefaults(t Tier) Set {
	switch t {
	case TierPremium:
		return premiumSet.union(nil)
	case TierPro:
		return proSet.union(nil)
	default:
		return coreSet.union(nil)
	}
}

// Credentials holds the channel secrets checked by Validate.
type Credentials struct {
	SMTPHost        string
	SMTPUser        string
	SMTPPass        string
	SheetID         string
	GoogleCredsJSON string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	BookingLink     string
}

// ClientConfig is the effective configuration for the client this deployment serves.
type ClientConfig struct {
	Tier        Tier
	Features    Set
	Credentials Credentials
}

// Resolve computes tierDefaults(tier) and then applies overrides, which always win.
// An unknown tier is logged and treated as CORE.
func Resolve(tier string, overrides map[Feature]bool, creds Credentials, log *zap.Logger) ClientConfig {
	if log == nil {
		log = zap.NewNop()
	}

	t, ok := ParseTier(tier)
	if !ok {
		log.Warn("unknown package tier, falling back to CORE", zap.String("tier", tier))
	}

	set := TierDefaults(t)
	for f, on := range overrides {
		set[f] = on
	}

	cc := ClientConfig{Tier: t, Features: set, Credentials: creds}
	log.Info("client config resolved",
		zap.String("tier", string(t)),
		zap.Any("features", cc.EnabledFeatures()),
	)
	return cc
}

func (c ClientConfig) IsFeatureEnabled(f Feature) bool { return c.Features.Has(f) }

// BookingLink is empty unless the booking feature is on.
func (c ClientConfig) BookingLink() string {
	if !c.IsFeatureEnabled(Booking) {
		return ""
	}
	return c.Credentials.BookingLink
}

func (c ClientConfig) EnabledFeatures() []Feature { return c.Features.Sorted() }

// EmailConfigured reports whether SMTP credentials are present, regardless of tier.
func (c ClientConfig) EmailConfigured() bool {
	cr := c.Credentials
	return cr.SMTPHost != "" && cr.SMTPUser != "" && cr.SMTPPass != ""
}

func (c ClientConfig) SheetsConfigured() bool {
	return c.Credentials.SheetID != "" && c.Credentials.GoogleCredsJSON != ""
}

func (c ClientConfig) WhatsAppConfigured() bool {
	cr := c.Credentials
	return cr.TwilioSID != "" && cr.TwilioToken != "" && cr.TwilioFrom != ""
}

// Validate lists the env variables missing for the enabled channels. It never fails.
func (c ClientConfig) Validate() []string {
	var missing []string
	need := func(val, name string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, name)
		}
	}

	cr := c.Credentials
	if c.IsFeatureEnabled(Email) {
		need(cr.SMTPHost, "SMTP_HOST")
		need(cr.SMTPUser, "SMTP_USER")
		need(cr.SMTPPass, "SMTP_PASS")
	}
	if c.IsFeatureEnabled(Sheets) {
		need(cr.SheetID, "GOOGLE_SHEET_ID")
		need(cr.GoogleCredsJSON, "GOOGLE_CREDENTIALS_JSON")
	}
	if c.IsFeatureEnabled(WhatsApp) {
		need(cr.TwilioSID, "TWILIO_ACCOUNT_SID")
		need(cr.TwilioToken, "TWILIO_AUTH_TOKEN")
		need(cr.TwilioFrom, "TWILIO_WHATSAPP_FROM")
	}
	if c.IsFeatureEnabled(Booking) {
		need(cr.BookingLink, "BOOKING_LINK")
	}

	sort.Strings(missing)
	return missing
}
