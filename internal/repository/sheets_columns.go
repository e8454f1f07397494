package repository

import (
	"strings"
	"unicode"
)

type column int

const (
	colName column = iota
	colEmail
	colPhone
	colCompany
	colService
	colBudget
	colPreferredTime
	colMessage
	colBusinessType
	colDate
	colTimestamp
	colStatus
	colOptOut
	colLastFollowUp
	numColumns
)

type columnSpec struct {
	canonical string
	aliases   []string
}

// leadColumns is indexed by column; the canonical order is also the positional fallback.
var leadColumns = [numColumns]columnSpec{
	colName:          {"Name", []string{"full name", "contact name", "your name", "client name"}},
	colEmail:         {"Email", []string{"email address", "e-mail", "mail", "your email"}},
	colPhone:         {"Phone", []string{"phone number", "mobile", "telephone", "tel", "whatsapp", "contact number"}},
	colCompany:       {"Company", []string{"company name", "business", "business name", "organization"}},
	colService:       {"Service", []string{"services", "service interested", "interested in", "service type"}},
	colBudget:        {"Budget", []string{"monthly budget", "budget range"}},
	colPreferredTime: {"PreferredTime", []string{"preferred time", "best time", "best time to call", "time to call"}},
	colMessage:       {"Message", []string{"notes", "comments", "details", "your message"}},
	colBusinessType:  {"BusinessType", []string{"business type", "industry", "niche"}},
	colDate:          {"Date", []string{"submitted", "submitted at", "created at", "created"}},
	colTimestamp:     {"Timestamp", []string{"epoch", "timestamp ms", "submitted ms"}},
	colStatus:        {"Status", []string{"lead status", "stage"}},
	colOptOut:        {"OptOut", []string{"opt out", "opted out", "unsubscribed"}},
	colLastFollowUp:  {"LastFollowUp", []string{"last follow up", "last followup", "last contacted"}},
}

// CanonicalHeader is the header row written into a freshly created worksheet.
func CanonicalHeader() []string {
	out := make([]string, numColumns)
	for i, c := range leadColumns {
		out[i] = c.canonical
	}
	return out
}

// headerKey folds case and drops separators so "Preferred_Time" matches "preferred time".
func headerKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// binding maps every logical column to a 0-based cell index of the worksheet.
type binding struct {
	idx   [numColumns]int
	width int
}

// bindHeader resolves each column against header: alias match first, then the
// canonical position when that cell is blank, and finally a new trailing column.
// The returned header is the row that must be written back (nil when unchanged).
func bindHeader(header []string) (binding, []string) {
	var b binding
	claimed := make(map[int]bool, len(header))

	lookup := make(map[string]int, len(header))
	for i, h := range header {
		k := headerKey(h)
		if k == "" {
			continue
		}
		if _, ok := lookup[k]; !ok {
			lookup[k] = i
		}
	}

	var unresolved []column
	for c := column(0); c < numColumns; c++ {
		def := leadColumns[c]
		b.idx[c] = -1
		for _, name := range append([]string{def.canonical}, def.aliases...) {
			if i, ok := lookup[headerKey(name)]; ok && !claimed[i] {
				b.idx[c] = i
				claimed[i] = true
				break
			}
		}
		if b.idx[c] < 0 {
			unresolved = append(unresolved, c)
		}
	}

	out := append([]string(nil), header...)
	changed := false
	for _, c := range unresolved {
		pos := int(c)
		if pos < len(out) && !claimed[pos] && strings.TrimSpace(out[pos]) == "" {
			b.idx[c] = pos
		} else {
			out = append(out, "")
			pos = len(out) - 1
			b.idx[c] = pos
		}
		claimed[pos] = true
		out[pos] = leadColumns[c].canonical
		changed = true
	}

	b.width = len(out)
	if !changed {
		return b, nil
	}
	return b, out
}

func (b binding) get(row []string, c column) string {
	i := b.idx[c]
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (b binding) set(row []string, c column, v string) []string {
	i := b.idx[c]
	for len(row) <= i {
		row = append(row, "")
	}
	row[i] = v
	return row
}
