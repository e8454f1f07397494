package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/jmehdipour/leadsite/internal/model"
)

// fakeSheets is an in-memory spreadsheet keyed by worksheet title.
type fakeSheets struct {
	mu      sync.Mutex
	order   []string
	sheets  map[string][][]string
	appends int
	readErr error
}

func newFakeSheets(titles ...string) *fakeSheets {
	f := &fakeSheets{sheets: make(map[string][][]string)}
	for _, t := range titles {
		f.order = append(f.order, t)
		f.sheets[t] = nil
	}
	return f
}

func (f *fakeSheets) Titles(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...), nil
}

func (f *fakeSheets) AddSheet(_ context.Context, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, title)
	f.sheets[title] = nil
	return nil
}

func (f *fakeSheets) ReadRows(_ context.Context, title string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([][]string, len(f.sheets[title]))
	for i, r := range f.sheets[title] {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (f *fakeSheets) AppendRow(_ context.Context, title string, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	f.sheets[title] = append(f.sheets[title], append([]string(nil), row...))
	return nil
}

func (f *fakeSheets) UpdateRow(_ context.Context, title string, rowNumber int, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.sheets[title]
	for len(rows) < rowNumber {
		rows = append(rows, nil)
	}
	rows[rowNumber-1] = append([]string(nil), row...)
	f.sheets[title] = rows
	return nil
}

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(api SheetsAPI, c *clock) *SheetsLeadStore {
	s := NewSheetsLeadStore(api, nil)
	s.Now = c.Now
	return s
}

func jane() *model.Lead {
	return &model.Lead{Name: "Jane Doe", Email: "Jane@X.com", Phone: "+1 415 555 1234", Service: "Consulting"}
}

func TestSheetsCreatesLeadsSheetWithCanonicalHeader(t *testing.T) {
	api := newFakeSheets()
	s := newStore(api, newClock())

	res, err := s.Save(context.Background(), jane())
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Success: true}, res)

	rows := api.sheets[DefaultSheetName]
	require.Len(t, rows, 2)
	assert.Equal(t, CanonicalHeader(), rows[0])
	assert.Equal(t, "jane@x.com", rows[1][colEmail])
	assert.Equal(t, "Not Contacted", rows[1][colStatus])
	assert.Equal(t, strconv.FormatInt(newClock().t.UnixMilli(), 10), rows[1][colTimestamp])
}

func TestSheetsPrefersConventionalNames(t *testing.T) {
	cases := []struct {
		titles []string
		want   string
	}{
		{[]string{"Data", "Sheet1", "Leads"}, "Leads"},
		{[]string{"Data", "Contacts", "Sheet1"}, "Sheet1"},
		{[]string{"Data", "Form Responses 1"}, "Form Responses 1"},
		{[]string{"Data", "Other"}, "Data"},
	}
	for _, tc := range cases {
		api := newFakeSheets(tc.titles...)
		s := newStore(api, newClock())
		require.NoError(t, s.Ping(context.Background()))
		assert.Equal(t, tc.want, s.title, tc.titles)
	}
}

func TestSheetsBindsDriftedHeader(t *testing.T) {
	api := newFakeSheets("Sheet1")
	api.sheets["Sheet1"] = [][]string{
		{"Timestamp", "Full Name", "E-mail", "Phone Number", "Services", "Notes"},
		{"1/2/2025 09:30:00", "Old Lead", "old@x.com", "4155550000", "Audit", "hi"},
	}
	c := newClock()
	s := newStore(api, c)

	leads, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Old Lead", leads[0].Name)
	assert.Equal(t, "old@x.com", leads[0].Email)
	assert.Equal(t, "Audit", leads[0].Service)
	assert.Equal(t, "hi", leads[0].Message)
	assert.Equal(t, model.StatusNotContacted, leads[0].Status)
	assert.Equal(t, time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC).UnixMilli(), leads[0].Timestamp)

	// missing columns were appended to the header, existing ones kept in place
	header := api.sheets["Sheet1"][0]
	assert.Equal(t, "Full Name", header[1])
	assert.Contains(t, header, "Status")
	assert.Contains(t, header, "OptOut")

	_, err = s.Save(context.Background(), jane())
	require.NoError(t, err)
	row := api.sheets["Sheet1"][2]
	assert.Equal(t, "Jane Doe", row[1])
	assert.Equal(t, "jane@x.com", row[2])
	assert.Equal(t, "Consulting", row[4])
}

func TestSheetsPositionalFallbackForBlankHeaderCells(t *testing.T) {
	api := newFakeSheets("Leads")
	api.sheets["Leads"] = [][]string{{"Name", "Email", "", "Company"}}

	s := newStore(api, newClock())
	require.NoError(t, s.Ping(context.Background()))

	header := api.sheets["Leads"][0]
	assert.Equal(t, "Phone", header[2])
	assert.Equal(t, 2, s.bind.idx[colPhone])
	assert.Len(t, header, int(numColumns))
}

func TestSheetsRejectsDuplicateWithinWindow(t *testing.T) {
	api := newFakeSheets("Leads")
	c := newClock()
	s := newStore(api, c)
	ctx := context.Background()

	res, err := s.Save(ctx, jane())
	require.NoError(t, err)
	assert.True(t, res.Success)

	c.Advance(4 * time.Minute)
	res, err = s.Save(ctx, &model.Lead{Name: "Jane", Email: "JANE@x.com", Phone: "4155551234", Service: "Other"})
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Duplicate: true}, res)
	assert.Len(t, api.sheets["Leads"], 2)

	c.Advance(2 * time.Minute)
	res, err = s.Save(ctx, jane())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, api.sheets["Leads"], 3)
}

func TestSheetsListNewestFirstAndUpdateStatus(t *testing.T) {
	api := newFakeSheets("Leads")
	c := newClock()
	s := newStore(api, c)
	ctx := context.Background()

	_, err := s.Save(ctx, &model.Lead{Name: "A", Email: "a@x.com", Service: "S"})
	require.NoError(t, err)
	c.Advance(time.Hour)
	_, err = s.Save(ctx, &model.Lead{Name: "B", Email: "b@x.com", Service: "S"})
	require.NoError(t, err)

	leads, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "b@x.com", leads[0].Email)
	assert.Equal(t, "a@x.com", leads[1].Email)

	status := model.StatusContacted
	at := c.t.UnixMilli()
	require.NoError(t, s.UpdateStatus(ctx, "A@x.com", model.LeadPatch{Status: &status, LastFollowUpAt: &at}))

	leads, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContacted, leads[1].Status)
	assert.Equal(t, at, leads[1].LastFollowUpAt)
	assert.Equal(t, "A", leads[1].Name)

	err = s.UpdateStatus(ctx, "nobody@x.com", model.LeadPatch{Status: &status})
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestSheetsReadErrorIsWrapped(t *testing.T) {
	api := newFakeSheets("Leads")
	api.readErr = &googleapi.Error{Code: 403, Message: "The caller does not have permission"}
	s := newStore(api, newClock())

	_, err := s.Save(context.Background(), jane())
	require.Error(t, err)
	assert.Contains(t, StorageHint(err), "Share the spreadsheet")
	assert.Zero(t, api.appends)
}

func TestSheetsListReadErrorOnFirstUse(t *testing.T) {
	api := newFakeSheets("Leads")
	api.readErr = errors.New("boom")
	s := newStore(api, newClock())

	leads, err := s.List(context.Background())
	require.Error(t, err)
	assert.Nil(t, leads)

	api.readErr = nil
	leads, err = s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSheetsSerialDateIsNotEpochMillis(t *testing.T) {
	api := newFakeSheets("Leads")
	api.sheets["Leads"] = [][]string{
		{"Name", "Email", "Service", "Date"},
		{"Old Lead", "old@x.com", "Audit", "45717.5"},
	}
	s := newStore(api, newClock())

	leads, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli(), leads[0].Timestamp)
}

func TestParseMillis(t *testing.T) {
	ms := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"nope", 0},
		{"-3", 0},
		{strconv.FormatInt(ms, 10), ms},
		{"45717", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{"2025-03-01T10:00:00Z", ms},
		{"2025-03-01 10:00:00", ms},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseMillis(tc.in), tc.in)
	}
}

func TestStorageHint(t *testing.T) {
	assert.Empty(t, StorageHint(nil))
	assert.Contains(t, StorageHint(&googleapi.Error{Code: 404}), "GOOGLE_SHEET_ID")
	assert.Contains(t, StorageHint(&googleapi.Error{Code: 403, Message: "Google Sheets API has not been used in project 1"}), "Enable")
	assert.Contains(t, StorageHint(errors.New("empty google credentials")), "GOOGLE_CREDENTIALS_JSON")
	assert.Empty(t, StorageHint(errors.New("boom")))
}
