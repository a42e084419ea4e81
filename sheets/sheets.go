// Package sheets pushes leads into the shared Google Sheet the acquisition
// team works out of. Appends are batched into a single API call per run and
// duplicates are filtered against what the sheet already holds.
package sheets

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"nodleads/config"
	"nodleads/leads"
	"nodleads/models"
)

const scope = "https://www.googleapis.com/auth/spreadsheets"

// AuthError marks a credentials problem. Collection keeps its local cache
// on auth failure; only the sheet push is lost.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sheets auth: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ValuesService is the slice of the Sheets values API the client uses.
type ValuesService interface {
	Get(ctx context.Context, readRange string) ([][]any, error)
	Append(ctx context.Context, writeRange string, rows [][]any) error
	Update(ctx context.Context, writeRange string, rows [][]any) error
}

type Client struct {
	values    ValuesService
	sheetName string
	dedupe    *leads.Deduplicator
	now       func() time.Time
}

func NewClient(ctx context.Context, cfg config.SheetsConfig, dedupe *leads.Deduplicator) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsPath),
		option.WithScopes(scope),
	)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	return &Client{
		values:    &googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID},
		sheetName: cfg.SheetName,
		dedupe:    dedupe,
		now:       time.Now,
	}, nil
}

// EnsureHeaders writes the column header row if the sheet is blank.
func (c *Client) EnsureHeaders(ctx context.Context) error {
	headerRange := fmt.Sprintf("%s!A1:%s1", c.sheetName, lastColumn())
	values, err := c.values.Get(ctx, headerRange)
	if err != nil {
		return err
	}
	if len(values) > 0 && len(values[0]) > 0 {
		return nil
	}

	row := make([]any, len(models.Columns))
	for i, col := range models.Columns {
		row[i] = col
	}
	return c.values.Update(ctx, headerRange, [][]any{row})
}

// ExistingLeads reads the whole sheet back, with row numbers, so callers can
// dedupe against it or update rows in place.
func (c *Client) ExistingLeads(ctx context.Context) ([]*models.Lead, error) {
	values, err := c.values.Get(ctx, c.dataRange())
	if err != nil {
		return nil, err
	}
	if len(values) <= 1 {
		return nil, nil
	}

	existing := make([]*models.Lead, 0, len(values)-1)
	for i, row := range values[1:] {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		// Row 1 is the header, data starts at 2.
		existing = append(existing, models.LeadFromRow(cells, i+2))
	}
	return existing, nil
}

// Sync appends new leads in one batched call. The sheet is read once up
// front; each batch record is checked against sheet rows plus the records
// already accepted from this batch.
func (c *Client) Sync(ctx context.Context, batch []*models.Lead) (models.SyncStats, error) {
	stats := models.SyncStats{}

	existing, err := c.ExistingLeads(ctx)
	if err != nil {
		return stats, fmt.Errorf("read existing rows: %w", err)
	}
	log.Printf("sheet has %d existing leads", len(existing))

	var rows [][]any
	for _, l := range batch {
		c.fillDefaults(l)

		if c.dedupe.IsDuplicate(l, existing) {
			stats.Duplicates++
			continue
		}

		row := make([]any, 0, len(models.Columns))
		for _, cell := range l.Row() {
			row = append(row, cell)
		}
		rows = append(rows, row)
		existing = append(existing, l)
	}

	if len(rows) == 0 {
		return stats, nil
	}

	if err := c.values.Append(ctx, c.dataRange(), rows); err != nil {
		stats.Errors = len(rows)
		return stats, fmt.Errorf("append %d rows: %w", len(rows), err)
	}

	stats.Added = len(rows)
	log.Printf("appended %d leads (%d duplicates skipped)", stats.Added, stats.Duplicates)
	return stats, nil
}

func (c *Client) fillDefaults(l *models.Lead) {
	if l.Status == "" {
		l.Status = models.StatusNew
	}
	if l.DateFound == "" {
		l.DateFound = c.now().Format("2006-01-02")
	}
}

// UpdateRow writes individual cells of an existing row. Unknown column names
// are skipped; updating the same row twice with the same values is a no-op
// on the sheet.
func (c *Client) UpdateRow(ctx context.Context, rowNumber int, updates map[string]string) error {
	if rowNumber < 2 {
		return fmt.Errorf("row %d is not a data row", rowNumber)
	}

	for col, value := range updates {
		idx := columnIndex(col)
		if idx < 0 {
			log.Printf("skipping unknown column %q", col)
			continue
		}

		cellRange := fmt.Sprintf("%s!%s%d", c.sheetName, columnLetter(idx), rowNumber)
		if err := c.values.Update(ctx, cellRange, [][]any{{value}}); err != nil {
			return fmt.Errorf("update %s: %w", cellRange, err)
		}
	}
	return nil
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn())
}

func columnIndex(name string) int {
	for i, col := range models.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

func columnLetter(idx int) string {
	// 23 columns fit in A..W; no double letters needed.
	return string(rune('A' + idx))
}

func lastColumn() string {
	return columnLetter(len(models.Columns) - 1)
}

// googleValues adapts the generated Sheets service to ValuesService.
type googleValues struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

func (g *googleValues) Get(ctx context.Context, readRange string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Append(ctx context.Context, writeRange string, rows [][]any) error {
	_, err := g.svc.Spreadsheets.Values.
		Append(g.spreadsheetID, writeRange, &sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}

func (g *googleValues) Update(ctx context.Context, writeRange string, rows [][]any) error {
	_, err := g.svc.Spreadsheets.Values.
		Update(g.spreadsheetID, writeRange, &sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}
