package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/util"
)

// DefaultSheetName is created when the spreadsheet has no worksheet at all.
const DefaultSheetName = "Leads"

// preferredSheets are tried in order before falling back to the first worksheet.
var preferredSheets = []string{DefaultSheetName, "Sheet1", "Form Responses 1", "Contacts"}

// SheetsLeadStore keeps one lead per row of a worksheet. The worksheet and its
// column binding are resolved on first use and cached for the life of the store.
type SheetsLeadStore struct {
	api SheetsAPI
	log *zap.Logger

	// Now is the clock used for stamping and the duplicate window.
	Now func() time.Time

	mu    sync.Mutex
	title string
	bind  *binding
}

var _ LeadStore = (*SheetsLeadStore)(nil)

func NewSheetsLeadStore(api SheetsAPI, log *zap.Logger) *SheetsLeadStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SheetsLeadStore{api: api, log: log.Named("sheets"), Now: time.Now}
}

func (s *SheetsLeadStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ensure(ctx)
	return err
}

func (s *SheetsLeadStore) Save(ctx context.Context, lead *model.Lead) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.ensure(ctx)
	if err != nil {
		return SaveResult{}, err
	}

	now := s.Now()
	email := strings.ToLower(strings.TrimSpace(lead.Email))
	since := now.Add(-DuplicateWindow).UnixMilli()
	for _, row := range rows {
		if !strings.EqualFold(s.bind.get(row, colEmail), email) {
			continue
		}
		if ts := s.rowTimestamp(row); ts >= since && ts <= now.UnixMilli() {
			s.log.Info("duplicate lead row", zap.String("email", email))
			return SaveResult{Duplicate: true}, nil
		}
	}

	lead.Email = email
	lead.Stamp(now)
	if lead.ID == "" {
		lead.ID = util.NewIDAt(now)
	}
	if !lead.Status.Valid() {
		lead.Status = model.StatusNotContacted
	}

	if err := s.api.AppendRow(ctx, s.title, s.toRow(nil, *lead)); err != nil {
		return SaveResult{}, fmt.Errorf("append lead row: %w", err)
	}
	return SaveResult{Success: true}, nil
}

// List returns every lead row, newest first. Rows without an email are skipped.
func (s *SheetsLeadStore) List(ctx context.Context) ([]model.Lead, error) {
	s.mu.Lock()
	rows, err := s.ensure(ctx)
	var b binding
	if err == nil {
		b = *s.bind
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	leads := make([]model.Lead, 0, len(rows))
	for _, row := range rows {
		l, ok := s.fromRow(b, row)
		if ok {
			leads = append(leads, l)
		}
	}
	sort.SliceStable(leads, func(i, j int) bool { return leads[i].Timestamp > leads[j].Timestamp })
	return leads, nil
}

// UpdateStatus applies patch to the most recent row for email. Cells outside the
// bound columns are written back untouched.
func (s *SheetsLeadStore) UpdateStatus(ctx context.Context, email string, patch model.LeadPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.ensure(ctx)
	if err != nil {
		return err
	}

	target, newest := -1, int64(-1)
	for i, row := range rows {
		if !strings.EqualFold(s.bind.get(row, colEmail), strings.TrimSpace(email)) {
			continue
		}
		if ts := s.rowTimestamp(row); ts >= newest {
			target, newest = i, ts
		}
	}
	if target < 0 {
		return ErrLeadNotFound
	}

	lead, _ := s.fromRow(*s.bind, rows[target])
	patch.Apply(&lead)
	row := s.toRow(append([]string(nil), rows[target]...), lead)

	// rows excludes the header, which sits on row 1
	if err := s.api.UpdateRow(ctx, s.title, target+2, row); err != nil {
		return fmt.Errorf("update lead row: %w", err)
	}
	return nil
}

// ensure locates the worksheet and binds the header on first call, then returns
// the data rows below the header. Caller holds s.mu.
func (s *SheetsLeadStore) ensure(ctx context.Context) ([][]string, error) {
	if s.title == "" {
		title, err := s.locateSheet(ctx)
		if err != nil {
			return nil, err
		}
		s.title = title
	}

	rows, err := s.api.ReadRows(ctx, s.title)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", s.title, err)
	}

	if s.bind == nil {
		var header []string
		if len(rows) > 0 {
			header = rows[0]
		}
		b, rewrite := bindHeader(header)
		if rewrite != nil {
			if len(rows) == 0 {
				err = s.api.AppendRow(ctx, s.title, rewrite)
			} else {
				err = s.api.UpdateRow(ctx, s.title, 1, rewrite)
			}
			if err != nil {
				return nil, fmt.Errorf("write header row: %w", err)
			}
			s.log.Info("sheet header updated", zap.String("sheet", s.title), zap.Strings("header", rewrite))
		}
		s.bind = &b
	}

	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func (s *SheetsLeadStore) locateSheet(ctx context.Context) (string, error) {
	titles, err := s.api.Titles(ctx)
	if err != nil {
		return "", fmt.Errorf("list worksheets: %w", err)
	}

	for _, want := range preferredSheets {
		for _, t := range titles {
			if strings.EqualFold(strings.TrimSpace(t), want) {
				return t, nil
			}
		}
	}
	if len(titles) > 0 {
		return titles[0], nil
	}

	if err := s.api.AddSheet(ctx, DefaultSheetName); err != nil {
		return "", fmt.Errorf("create worksheet: %w", err)
	}
	s.log.Info("worksheet created", zap.String("sheet", DefaultSheetName))
	return DefaultSheetName, nil
}

// rowTimestamp prefers the epoch-ms Timestamp cell and falls back to the Date cell.
func (s *SheetsLeadStore) rowTimestamp(row []string) int64 {
	if ms := parseMillis(s.bind.get(row, colTimestamp)); ms > 0 {
		return ms
	}
	return parseMillis(s.bind.get(row, colDate))
}

func (s *SheetsLeadStore) toRow(row []string, l model.Lead) []string {
	b := *s.bind
	if row == nil {
		row = make([]string, b.width)
	}
	row = b.set(row, colName, l.Name)
	row = b.set(row, colEmail, l.Email)
	row = b.set(row, colPhone, l.Phone)
	row = b.set(row, colCompany, l.Company)
	row = b.set(row, colService, l.Service)
	row = b.set(row, colBudget, l.Budget)
	row = b.set(row, colPreferredTime, l.PreferredTime)
	row = b.set(row, colMessage, l.Message)
	row = b.set(row, colBusinessType, l.BusinessType)
	row = b.set(row, colDate, l.SubmittedAt)
	row = b.set(row, colTimestamp, strconv.FormatInt(l.Timestamp, 10))
	row = b.set(row, colStatus, l.Status.String())
	row = b.set(row, colOptOut, strconv.FormatBool(l.OptOut))
	last := ""
	if l.LastFollowUpAt > 0 {
		last = time.UnixMilli(l.LastFollowUpAt).UTC().Format(time.RFC3339)
	}
	row = b.set(row, colLastFollowUp, last)
	return row
}

func (s *SheetsLeadStore) fromRow(b binding, row []string) (model.Lead, bool) {
	l := model.Lead{
		Name:          b.get(row, colName),
		Email:         strings.ToLower(b.get(row, colEmail)),
		Phone:         b.get(row, colPhone),
		Company:       b.get(row, colCompany),
		Service:       b.get(row, colService),
		Budget:        b.get(row, colBudget),
		PreferredTime: b.get(row, colPreferredTime),
		Message:       b.get(row, colMessage),
		BusinessType:  b.get(row, colBusinessType),
		SubmittedAt:   b.get(row, colDate),
	}
	if l.Email == "" {
		return l, false
	}

	l.Timestamp = parseMillis(b.get(row, colTimestamp))
	if l.Timestamp == 0 {
		l.Timestamp = parseMillis(l.SubmittedAt)
	}
	l.Status, _ = model.ParseLeadStatus(b.get(row, colStatus))
	l.OptOut = parseBool(b.get(row, colOptOut))
	if l.Status == model.StatusOptedOut {
		l.OptOut = true
	}
	l.LastFollowUpAt = parseMillis(b.get(row, colLastFollowUp))
	return l, true
}

var sheetTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"2006-01-02",
}

// sheetEpoch is day zero of spreadsheet serial dates.
var sheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerialDate bounds what is read as a serial day count rather than epoch ms.
// 10^7 days is far past any real date; 10^7 ms is the first hours of 1970.
const maxSerialDate = 1e7

// parseMillis accepts epoch milliseconds, a spreadsheet serial date, or one of
// the date layouts a sheet is likely to hold. Unparseable input yields 0.
func parseMillis(v string) int64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= maxSerialDate {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f <= 0 || f >= maxSerialDate {
			return 0
		}
		return sheetEpoch.Add(time.Duration(f * float64(24*time.Hour))).UnixMilli()
	}
	for _, layout := range sheetTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1", "x":
		return true
	default:
		return false
	}
}
