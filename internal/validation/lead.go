package validation

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/util"
)

// LeadInput is the raw lead form payload.
type LeadInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Company       string `json:"company"`
	Service       string `json:"service"`
	Budget        string `json:"budget"`
	PreferredTime string `json:"preferredTime"`
	Message       string `json:"message"`
	BusinessType  string `json:"businessType"`
}

// FieldErrors maps a form field to its error message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid lead: " + strings.Join(parts, "; ")
}

const (
	maxEmailLen    = 254
	maxServiceLen  = 100
	maxOptionalLen = 100
	maxMessageLen  = 2000
	maxBizTypeLen  = 50
)

var (
	nameRe  = regexp.MustCompile(`^[\p{L}\p{M} \-'.]+$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[\d\s\-+()]+$`)
)

// Lead checks in and returns a normalized lead (trimmed fields, lowercased email,
// status Not Contacted). Either every required field is valid or errs is non-nil.
func Lead(in LeadInput) (model.Lead, FieldErrors) {
	errs := FieldErrors{}

	name := strings.TrimSpace(in.Name)
	if msg := checkName(name); msg != "" {
		errs["name"] = msg
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if msg := checkEmail(email); msg != "" {
		errs["email"] = msg
	}

	phone := strings.TrimSpace(in.Phone)
	if msg := checkPhone(phone); msg != "" {
		errs["phone"] = msg
	}

	service := strings.TrimSpace(in.Service)
	switch {
	case service == "":
		errs["service"] = "Please select a service"
	case utf8.RuneCountInString(service) > maxServiceLen:
		errs["service"] = "Service must be 100 characters or fewer"
	}

	optional := map[string]*string{
		"company":       &in.Company,
		"budget":        &in.Budget,
		"preferredTime": &in.PreferredTime,
		"message":       &in.Message,
		"businessType":  &in.BusinessType,
	}
	for field, v := range optional {
		*v = strings.TrimSpace(*v)
		limit := maxOptionalLen
		switch field {
		case "message":
			limit = maxMessageLen
		case "businessType":
			limit = maxBizTypeLen
		}
		if utf8.RuneCountInString(*v) > limit {
			errs[field] = "Value is too long"
		}
	}

	if len(errs) > 0 {
		return model.Lead{}, errs
	}

	return model.Lead{
		Name:          name,
		Email:         email,
		Phone:         phone,
		Company:       in.Company,
		Service:       service,
		Budget:        in.Budget,
		PreferredTime: in.PreferredTime,
		Message:       in.Message,
		BusinessType:  in.BusinessType,
		Status:        model.StatusNotContacted,
	}, nil
}

func checkName(name string) string {
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return "Name is required"
	case n < 2:
		return "Name must be at least 2 characters"
	case n > 100:
		return "Name must be 100 characters or fewer"
	case !nameRe.MatchString(name):
		return "Name can only contain letters, spaces, hyphens, apostrophes and periods"
	}
	return ""
}

func checkEmail(email string) string {
	switch {
	case email == "":
		return "Email is required"
	case len(email) > maxEmailLen:
		return "Email is too long"
	case !emailRe.MatchString(email):
		return "Please enter a valid email address"
	}
	return ""
}

func checkPhone(phone string) string {
	if phone == "" {
		return "Phone number is required"
	}
	if !phoneRe.MatchString(phone) {
		return "Phone number can only contain digits, spaces, hyphens, plus signs and parentheses"
	}
	if d := util.DigitCount(phone); d < 10 || d > 15 {
		return "Phone number must contain 10 to 15 digits"
	}
	return ""
}
