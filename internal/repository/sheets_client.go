package repository

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsAPI is the narrow spreadsheet surface the lead store needs. Rows are
// addressed 1-based, the way the spreadsheet UI numbers them.
type SheetsAPI interface {
	Titles(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string) error
	ReadRows(ctx context.Context, title string) ([][]string, error)
	AppendRow(ctx context.Context, title string, row []string) error
	UpdateRow(ctx context.Context, title string, rowNumber int, row []string) error
}

// GoogleSheets implements SheetsAPI on top of the Sheets v4 REST API.
type GoogleSheets struct {
	srv           *sheets.Service
	spreadsheetID string
}

var _ SheetsAPI = (*GoogleSheets)(nil)

// NewGoogleSheets authenticates with a service-account JSON. credentials may be
// the JSON itself or a path to a file containing it.
func NewGoogleSheets(ctx context.Context, spreadsheetID, credentials string) (*GoogleSheets, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("empty spreadsheet id")
	}
	raw, err := credentialsJSON(credentials)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(raw),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &GoogleSheets{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func credentialsJSON(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty google credentials")
	}
	if strings.HasPrefix(v, "{") {
		return []byte(v), nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return nil, fmt.Errorf("read google credentials file: %w", err)
	}
	return b, nil
}

func (g *GoogleSheets) Titles(ctx context.Context) ([]string, error) {
	ss, err := g.srv.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (g *GoogleSheets) AddSheet(ctx context.Context, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	_, err := g.srv.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (g *GoogleSheets) ReadRows(ctx context.Context, title string) ([][]string, error) {
	vr, err := g.srv.Spreadsheets.Values.Get(g.spreadsheetID, quoteSheet(title)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(vr.Values))
	for i, r := range vr.Values {
		row := make([]string, len(r))
		for j, c := range r {
			row[j] = cellString(c)
		}
		rows[i] = row
	}
	return rows, nil
}

func (g *GoogleSheets) AppendRow(ctx context.Context, title string, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := g.srv.Spreadsheets.Values.Append(g.spreadsheetID, quoteSheet(title)+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (g *GoogleSheets) UpdateRow(ctx context.Context, title string, rowNumber int, row []string) error {
	rng := fmt.Sprintf("%s!A%d", quoteSheet(title), rowNumber)
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := g.srv.Spreadsheets.Values.Update(g.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// cellString renders UNFORMATTED_VALUE cells; numbers arrive as float64 and must
// not turn into exponent notation (epoch ms timestamps).
func cellString(c interface{}) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(v)
	}
}
