package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/leadsite/internal/model"
)

func validInput() LeadInput {
	return LeadInput{
		Name:    "  Jane Doe ",
		Email:   "  Jane@X.com ",
		Phone:   "+1 (415) 555-1234",
		Service: " Consulting ",
		Message: " hi there ",
	}
}

func TestLeadValidNormalizes(t *testing.T) {
	lead, errs := Lead(validInput())
	require.Nil(t, errs)

	assert.Equal(t, "Jane Doe", lead.Name)
	assert.Equal(t, "jane@x.com", lead.Email)
	assert.Equal(t, "+1 (415) 555-1234", lead.Phone)
	assert.Equal(t, "Consulting", lead.Service)
	assert.Equal(t, "hi there", lead.Message)
	assert.Equal(t, model.StatusNotContacted, lead.Status)
}

func TestLeadAcceptsNamePunctuationAndUnicode(t *testing.T) {
	for _, name := range []string{"Mary-Jane O'Neil", "Dr. Who", "José Álvarez", "Jose\u0301 Zoe\u0308"} {
		in := validInput()
		in.Name = name
		_, errs := Lead(in)
		assert.Nil(t, errs, name)
	}
}

func TestLeadMissingRequiredFields(t *testing.T) {
	cases := map[string]func(*LeadInput){
		"name":    func(in *LeadInput) { in.Name = "   " },
		"email":   func(in *LeadInput) { in.Email = "" },
		"phone":   func(in *LeadInput) { in.Phone = "" },
		"service": func(in *LeadInput) { in.Service = " " },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			lead, errs := Lead(in)
			require.NotNil(t, errs)
			assert.Contains(t, errs, field)
			assert.Len(t, errs, 1)
			assert.Equal(t, model.Lead{}, lead)
		})
	}
}

func TestLeadFieldRules(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*LeadInput)
	}{
		{"name", func(in *LeadInput) { in.Name = "J" }},
		{"name", func(in *LeadInput) { in.Name = strings.Repeat("a", 101) }},
		{"name", func(in *LeadInput) { in.Name = "Jane99" }},
		{"name", func(in *LeadInput) { in.Name = "Jane\nDoe\tX" }},
		{"email", func(in *LeadInput) { in.Email = "jane@x" }},
		{"email", func(in *LeadInput) { in.Email = "jane x@x.com" }},
		{"email", func(in *LeadInput) { in.Email = strings.Repeat("a", 250) + "@x.com" }},
		{"phone", func(in *LeadInput) { in.Phone = "555-1234" }},
		{"phone", func(in *LeadInput) { in.Phone = "+1 415 555 1234 ext 9" }},
		{"phone", func(in *LeadInput) { in.Phone = "1234567890123456" }},
		{"service", func(in *LeadInput) { in.Service = strings.Repeat("s", 101) }},
		{"message", func(in *LeadInput) { in.Message = strings.Repeat("m", 2001) }},
		{"businessType", func(in *LeadInput) { in.BusinessType = strings.Repeat("b", 51) }},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		_, errs := Lead(in)
		require.NotNil(t, errs, tc.field)
		assert.Contains(t, errs, tc.field)
	}
}

func TestLeadAllOrNothing(t *testing.T) {
	in := validInput()
	in.Email = "nope"
	in.Phone = "12"
	_, errs := Lead(in)
	assert.Len(t, errs, 2)
	assert.Contains(t, errs.Error(), "email:")
	assert.Contains(t, errs.Error(), "phone:")
}
