package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"nodleads/config"
	"nodleads/models"
)

type stubHandler struct {
	id      string
	records []models.RawRecord
	err     error
}

func (h *stubHandler) ID() string { return h.id }

func (h *stubHandler) Collect(context.Context, time.Time, time.Time) ([]models.RawRecord, error) {
	return h.records, h.err
}

type stubSheet struct {
	synced  []*models.Lead
	syncErr error
}

func (s *stubSheet) EnsureHeaders(context.Context) error { return nil }

func (s *stubSheet) Sync(_ context.Context, batch []*models.Lead) (models.SyncStats, error) {
	if s.syncErr != nil {
		return models.SyncStats{Errors: len(batch)}, s.syncErr
	}
	s.synced = append(s.synced, batch...)
	return models.SyncStats{Added: len(batch)}, nil
}

func testConfig(counties ...string) *config.Config {
	cfg := &config.Config{
		Scraper:  config.ScraperConfig{DaysBack: 7, MaxPages: 4, AddrKeyLen: 20},
		Counties: make(map[string]*config.CountyConfig),
	}
	for _, id := range counties {
		cfg.Counties[id] = &config.CountyConfig{
			ID:          id,
			Name:        id,
			DocKeywords: []string{"default", "nod"},
		}
	}
	return cfg
}

func nodRecord(county, apn, owner string) models.RawRecord {
	return models.RawRecord{
		"county":         county,
		"apn":            apn,
		"owner_name":     owner,
		"recording_date": "03/01/2024",
		"stage":          "NOD",
	}
}

func TestRunPipeline(t *testing.T) {
	cfg := testConfig("la_county")
	sheet := &stubSheet{}
	o := NewOrchestrator(cfg, Options{Sheet: sheet})

	o.handlers["la_county"] = &stubHandler{
		id: "la_county",
		records: []models.RawRecord{
			nodRecord("la_county", "1234-567-890", "JOHN SMITH"),
			nodRecord("la_county", "1234-567-890", "JOHN SMITH"), // repeat
			nodRecord("la_county", "5555-111-222", "MARIA GARCIA"),
		},
	}

	summary, err := o.Run(context.Background(), nil, 7, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.TotalRaw != 3 || summary.TotalUnique != 2 {
		t.Fatalf("dedupe counts wrong: raw=%d unique=%d", summary.TotalRaw, summary.TotalUnique)
	}
	if summary.RecordsCollected["la_county"] != 3 {
		t.Fatalf("collected count wrong: %v", summary.RecordsCollected)
	}
	if len(sheet.synced) != 2 {
		t.Fatalf("expected 2 synced leads, got %d", len(sheet.synced))
	}
	if summary.SyncStats.Added != 2 {
		t.Fatalf("sync stats wrong: %+v", summary.SyncStats)
	}

	// Pipeline output is standardized and scored.
	for _, l := range sheet.synced {
		if l.LeadID == "" {
			t.Error("lead id not derived")
		}
		if l.RecordingDate != "2024-03-01" {
			t.Errorf("date not normalized: %q", l.RecordingDate)
		}
		if l.LeadScore == 0 {
			t.Error("lead not scored")
		}
	}
}

func TestRunSurvivesCountyFailure(t *testing.T) {
	cfg := testConfig("la_county", "riverside")
	sheet := &stubSheet{}
	o := NewOrchestrator(cfg, Options{Sheet: sheet})

	o.handlers["la_county"] = &stubHandler{id: "la_county", err: errors.New("portal down")}
	o.handlers["riverside"] = &stubHandler{
		id:      "riverside",
		records: []models.RawRecord{nodRecord("riverside", "123-456-789", "GONZALEZ, CARLOS")},
	}

	summary, err := o.Run(context.Background(), []string{"la_county", "riverside"}, 7, false)
	if err != nil {
		t.Fatalf("run should tolerate one county failing: %v", err)
	}

	if summary.CountyErrors["la_county"] == "" {
		t.Error("failed county missing from summary")
	}
	if summary.RecordsCollected["riverside"] != 1 {
		t.Errorf("surviving county not collected: %v", summary.RecordsCollected)
	}
	if len(sheet.synced) != 1 {
		t.Errorf("surviving county's lead not synced, got %d", len(sheet.synced))
	}
}

func TestRunTestModeSkipsWrites(t *testing.T) {
	cfg := testConfig("la_county")
	sheet := &stubSheet{}
	o := NewOrchestrator(cfg, Options{Sheet: sheet, TestMode: true})

	o.handlers["la_county"] = &stubHandler{
		id:      "la_county",
		records: []models.RawRecord{nodRecord("la_county", "1234-567-890", "JOHN SMITH")},
	}

	summary, err := o.Run(context.Background(), nil, 3, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sheet.synced) != 0 {
		t.Fatal("test mode must not write to the sheet")
	}
	if summary.TotalUnique != 1 {
		t.Fatalf("test mode still collects: %+v", summary)
	}
	if summary.DaysBack != 3 {
		t.Fatalf("days back not honored: %d", summary.DaysBack)
	}
	// The summary still reports what a real run would have appended.
	if summary.SyncStats.Added != 1 {
		t.Fatalf("would-be added = %d, want 1", summary.SyncStats.Added)
	}
}

func TestRunSheetFailureStillReturnsSummary(t *testing.T) {
	cfg := testConfig("la_county")
	sheet := &stubSheet{syncErr: errors.New("auth expired")}
	o := NewOrchestrator(cfg, Options{Sheet: sheet})

	o.handlers["la_county"] = &stubHandler{
		id:      "la_county",
		records: []models.RawRecord{nodRecord("la_county", "1234-567-890", "JOHN SMITH")},
	}

	summary, err := o.Run(context.Background(), nil, 7, false)
	if err == nil {
		t.Fatal("expected sync error to surface")
	}
	if summary == nil {
		t.Fatal("summary must be returned even when sync fails")
	}
	if summary.SyncStats.Errors != 1 {
		t.Fatalf("sync errors not recorded: %+v", summary.SyncStats)
	}
}

func TestRunCountyUnknown(t *testing.T) {
	o := NewOrchestrator(testConfig("la_county"), Options{})
	if _, err := o.RunCounty(context.Background(), "orange", 7, false); err == nil {
		t.Fatal("expected error for unknown county")
	}
}
