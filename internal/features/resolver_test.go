package features

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestTierDefaultsAreMonotonic(t *testing.T) {
	tiers := []Tier{TierCore, TierPro, TierPremium}
	for i := 1; i < len(tiers); i++ {
		lower, higher := TierDefaults(tiers[i-1]), TierDefaults(tiers[i])
		for f := range lower {
			assert.True(t, higher.Has(f), "%s enabled under %s but not %s", f, tiers[i-1], tiers[i])
		}
		assert.Greater(t, len(higher), len(lower))
	}
}

func TestResolveTiers(t *testing.T) {
	cases := map[string][]Feature{
		"CORE":    {Email, Chatbot, Sheets},
		"pro":     {Email, Chatbot, Sheets, WhatsApp, Booking},
		"PREMIUM": {Email, Chatbot, Sheets, WhatsApp, Booking, FollowUps, Reports},
		"gold":    {Email, Chatbot, Sheets},
		"":        {Email, Chatbot, Sheets},
	}
	for tier, want := range cases {
		got := Resolve(tier, nil, Credentials{}, nil).EnabledFeatures()
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("tier %q (-want +got):\n%s", tier, diff)
		}
	}
}

func TestOverridesAlwaysWin(t *testing.T) {
	cc := Resolve("CORE", map[Feature]bool{WhatsApp: true}, Credentials{}, nil)
	assert.True(t, cc.IsFeatureEnabled(WhatsApp))
	assert.False(t, cc.IsFeatureEnabled(Booking))

	cc = Resolve("PREMIUM", map[Feature]bool{Reports: false, Email: false}, Credentials{}, nil)
	assert.False(t, cc.IsFeatureEnabled(Reports))
	assert.False(t, cc.IsFeatureEnabled(Email))
	assert.True(t, cc.IsFeatureEnabled(FollowUps))
}

func TestResolveDoesNotMutateSharedDefaults(t *testing.T) {
	_ = Resolve("CORE", map[Feature]bool{Email: false}, Credentials{}, nil)
	assert.True(t, TierDefaults(TierCore).Has(Email))
}

func TestBookingLinkRequiresFeature(t *testing.T) {
	creds := Credentials{BookingLink: "https://cal.com/acme"}
	assert.Empty(t, Resolve("CORE", nil, creds, nil).BookingLink())
	assert.Equal(t, "https://cal.com/acme", Resolve("PRO", nil, creds, nil).BookingLink())
}

func TestValidateReportsMissingVars(t *testing.T) {
	cc := Resolve("PRO", nil, Credentials{SMTPHost: "smtp.x", SMTPUser: "u", SheetID: "sheet"}, nil)
	want := []string{
		"BOOKING_LINK",
		"GOOGLE_CREDENTIALS_JSON",
		"SMTP_PASS",
		"TWILIO_ACCOUNT_SID",
		"TWILIO_AUTH_TOKEN",
		"TWILIO_WHATSAPP_FROM",
	}
	if diff := cmp.Diff(want, cc.Validate()); diff != "" {
		t.Errorf("missing vars (-want +got):\n%s", diff)
	}

	full := Credentials{
		SMTPHost: "h", SMTPUser: "u", SMTPPass: "p",
		SheetID: "s", GoogleCredsJSON: "{}",
	}
	assert.Empty(t, Resolve("CORE", nil, full, nil).Validate())
}

func TestParseFeature(t *testing.T) {
	f, ok := ParseFeature("FOLLOWUPS")
	assert.True(t, ok)
	assert.Equal(t, FollowUps, f)

	_, ok = ParseFeature("teleport")
	assert.False(t, ok)
}
