package sheets

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nodleads/leads"
	"nodleads/models"
)

type fakeValues struct {
	data [][]any

	getCalls    int
	appendCalls int
	appended    [][]any
	updates     map[string][][]any
	appendErr   error
}

func newFakeValues(rows ...[]any) *fakeValues {
	header := make([]any, len(models.Columns))
	for i, col := range models.Columns {
		header[i] = col
	}
	data := [][]any{header}
	data = append(data, rows...)
	return &fakeValues{data: data, updates: make(map[string][][]any)}
}

func (f *fakeValues) Get(_ context.Context, readRange string) ([][]any, error) {
	f.getCalls++
	if strings.Contains(readRange, "A1:") {
		if len(f.data) == 0 {
			return nil, nil
		}
		return f.data[:1], nil
	}
	return f.data, nil
}

func (f *fakeValues) Append(_ context.Context, _ string, rows [][]any) error {
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, rows...)
	f.data = append(f.data, rows...)
	return nil
}

func (f *fakeValues) Update(_ context.Context, writeRange string, rows [][]any) error {
	f.updates[writeRange] = rows
	return nil
}

func testClient(values ValuesService) *Client {
	return &Client{
		values:    values,
		sheetName: "Sheet1",
		dedupe:    leads.NewDeduplicator(20),
		now:       func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func sheetRow(address, recordingDate string) []any {
	l := &models.Lead{
		LeadID:          "EXISTING0001",
		PropertyAddress: address,
		RecordingDate:   recordingDate,
		County:          "Los Angeles",
	}
	row := make([]any, 0, len(models.Columns))
	for _, cell := range l.Row() {
		row = append(row, cell)
	}
	return row
}

func TestSyncBatchesOneAppend(t *testing.T) {
	values := newFakeValues()
	c := testClient(values)

	batch := []*models.Lead{
		{LeadID: "A1", PropertyAddress: "100 First St", RecordingDate: "2024-03-01"},
		{LeadID: "A2", PropertyAddress: "200 Second St", RecordingDate: "2024-03-02"},
		{LeadID: "A3", PropertyAddress: "300 Third St", RecordingDate: "2024-03-03"},
	}

	stats, err := c.Sync(context.Background(), batch)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if stats.Added != 3 || stats.Duplicates != 0 || stats.Errors != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// All N rows go out in one API call.
	if values.appendCalls != 1 {
		t.Fatalf("expected 1 append call, got %d", values.appendCalls)
	}
	if len(values.appended) != 3 {
		t.Fatalf("expected 3 appended rows, got %d", len(values.appended))
	}
	// Sheet read exactly once per sync.
	if values.getCalls != 1 {
		t.Fatalf("expected 1 read, got %d", values.getCalls)
	}
}

func TestSyncSkipsSheetDuplicates(t *testing.T) {
	values := newFakeValues(sheetRow("123 Main Street, Los Angeles", "2024-03-01"))
	c := testClient(values)

	batch := []*models.Lead{
		{LeadID: "B1", PropertyAddress: "123 Main Street, Los Angeles", RecordingDate: "2024-03-01"},
		{LeadID: "B2", PropertyAddress: "456 Oak Ave", RecordingDate: "2024-03-02"},
	}

	stats, err := c.Sync(context.Background(), batch)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if stats.Added != 1 || stats.Duplicates != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSyncSkipsWithinBatchDuplicates(t *testing.T) {
	values := newFakeValues()
	c := testClient(values)

	batch := []*models.Lead{
		{LeadID: "C1", PropertyAddress: "789 Pine Road, Riverside", RecordingDate: "2024-03-05"},
		{LeadID: "C2", PropertyAddress: "789 Pine Road, Riverside", RecordingDate: "2024-03-05"},
	}

	stats, err := c.Sync(context.Background(), batch)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if stats.Added != 1 || stats.Duplicates != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSyncFillsDefaults(t *testing.T) {
	values := newFakeValues()
	c := testClient(values)

	l := &models.Lead{LeadID: "D1", PropertyAddress: "10 Default Way"}
	if _, err := c.Sync(context.Background(), []*models.Lead{l}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if l.Status != models.StatusNew {
		t.Errorf("status = %q", l.Status)
	}
	if l.DateFound != "2024-03-15" {
		t.Errorf("date found = %q", l.DateFound)
	}
}

func TestSyncAppendFailure(t *testing.T) {
	values := newFakeValues()
	values.appendErr = errors.New("quota exceeded")
	c := testClient(values)

	batch := []*models.Lead{
		{LeadID: "E1", PropertyAddress: "1 Fail St", RecordingDate: "2024-03-01"},
		{LeadID: "E2", PropertyAddress: "2 Fail St", RecordingDate: "2024-03-01"},
	}

	stats, err := c.Sync(context.Background(), batch)
	if err == nil {
		t.Fatal("expected append error")
	}
	if stats.Errors != 2 || stats.Added != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSyncEmptySheet(t *testing.T) {
	// A brand-new sheet returns no rows at all.
	values := &fakeValues{updates: make(map[string][][]any)}
	c := testClient(values)

	stats, err := c.Sync(context.Background(), []*models.Lead{
		{LeadID: "F1", PropertyAddress: "5 Fresh St", RecordingDate: "2024-03-10"},
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if stats.Added != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestUpdateRow(t *testing.T) {
	values := newFakeValues(sheetRow("123 Main St", "2024-03-01"))
	c := testClient(values)

	err := c.UpdateRow(context.Background(), 2, map[string]string{
		"status": "Contacted",
		"phone":  "(555) 123-4567",
	})
	if err != nil {
		t.Fatalf("update row: %v", err)
	}

	// status is column T, phone column F.
	if got := values.updates["Sheet1!T2"]; len(got) != 1 || got[0][0] != "Contacted" {
		t.Errorf("status update missing: %v", values.updates)
	}
	if got := values.updates["Sheet1!F2"]; len(got) != 1 || got[0][0] != "(555) 123-4567" {
		t.Errorf("phone update missing: %v", values.updates)
	}
}

func TestUpdateRowRejectsHeader(t *testing.T) {
	c := testClient(newFakeValues())
	if err := c.UpdateRow(context.Background(), 1, map[string]string{"status": "x"}); err == nil {
		t.Fatal("expected error updating the header row")
	}
}

func TestEnsureHeadersOnBlankSheet(t *testing.T) {
	values := &fakeValues{updates: make(map[string][][]any)}
	c := testClient(values)

	if err := c.EnsureHeaders(context.Background()); err != nil {
		t.Fatalf("ensure headers: %v", err)
	}

	rows, ok := values.updates["Sheet1!A1:W1"]
	if !ok {
		t.Fatalf("header row not written: %v", values.updates)
	}
	if len(rows[0]) != len(models.Columns) || rows[0][0] != "lead_id" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}
}

func TestEnsureHeadersIdempotent(t *testing.T) {
	values := newFakeValues()
	c := testClient(values)

	if err := c.EnsureHeaders(context.Background()); err != nil {
		t.Fatalf("ensure headers: %v", err)
	}
	if len(values.updates) != 0 {
		t.Fatalf("headers rewritten on populated sheet: %v", values.updates)
	}
}
