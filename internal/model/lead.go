package model

import (
	"strings"
	"time"
)

type LeadStatus string

const (
	StatusNotContacted LeadStatus = "Not Contacted"
	StatusContacted    LeadStatus = "Contacted"
	StatusFollowedUp   LeadStatus = "Followed Up"
	StatusConverted    LeadStatus = "Converted"
	StatusOptedOut     LeadStatus = "Opted Out"
)

func (s LeadStatus) String() string { return string(s) }

func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNotContacted, StatusContacted, StatusFollowedUp, StatusConverted, StatusOptedOut:
		return true
	default:
		return false
	}
}

// ParseLeadStatus is tolerant of case, spacing and underscores; empty => Not Contacted.
// Returns (value, true) if recognised; otherwise (Not Contacted, false).
func ParseLeadStatus(s string) (LeadStatus, bool) {
	k := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "", "notcontacted", "new":
		return StatusNotContacted, true
	case "contacted":
		return StatusContacted, true
	case "followedup":
		return StatusFollowedUp, true
	case "converted":
		return StatusConverted, true
	case "optedout", "unsubscribed":
		return StatusOptedOut, true
	default:
		return StatusNotContacted, false
	}
}

// Lead is a prospective customer's submitted contact record. Timestamp (epoch ms)
// is authoritative for every time-window computation; SubmittedAt is the
// human-readable copy written next to it.
type Lead struct {
	ID             string     `json:"id,omitempty"            db:"id"`
	Name           string     `json:"name"                    db:"name"`
	Email          string     `json:"email"                   db:"email"`
	Phone          string     `json:"phone"                   db:"phone"`
	Company        string     `json:"company,omitempty"       db:"company"`
	Service        string     `json:"service"                 db:"service"`
	Budget         string     `json:"budget,omitempty"        db:"budget"`
	PreferredTime  string     `json:"preferredTime,omitempty" db:"preferred_time"`
	Message        string     `json:"message,omitempty"       db:"message"`
	BusinessType   string     `json:"businessType,omitempty"  db:"business_type"`
	SubmittedAt    string     `json:"submittedAt"             db:"submitted_at"`
	Timestamp      int64      `json:"timestamp"               db:"submitted_at_ms"`
	Status         LeadStatus `json:"status"                  db:"status"`
	OptOut         bool       `json:"optOut"                  db:"opt_out"`
	LastFollowUpAt int64      `json:"lastFollowUpAt,omitempty" db:"last_follow_up_ms"`
}

// Stamp sets both submission timestamps from t.
func (l *Lead) Stamp(t time.Time) {
	l.Timestamp = t.UnixMilli()
	l.SubmittedAt = t.UTC().Format(time.RFC3339)
}

func (l Lead) SubmittedTime() time.Time { return time.UnixMilli(l.Timestamp) }

// LastContactTime is the last follow-up time, or the submission time if none happened yet.
func (l Lead) LastContactTime() time.Time {
	if l.LastFollowUpAt > 0 {
		return time.UnixMilli(l.LastFollowUpAt)
	}
	return l.SubmittedTime()
}

// LeadPatch carries the mutable subset of a Lead; nil fields are left untouched.
type LeadPatch struct {
	Status         *LeadStatus
	OptOut         *bool
	LastFollowUpAt *int64
}

func (p LeadPatch) Apply(l *Lead) {
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.OptOut != nil {
		l.OptOut = *p.OptOut
	}
	if p.LastFollowUpAt != nil {
		l.LastFollowUpAt = *p.LastFollowUpAt
	}
}
