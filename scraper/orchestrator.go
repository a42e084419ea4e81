package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"nodleads/config"
	"nodleads/enrich"
	"nodleads/leads"
	"nodleads/models"
	"nodleads/storage"
)

// SheetSyncer is the outbound side of the pipeline.
type SheetSyncer interface {
	EnsureHeaders(ctx context.Context) error
	Sync(ctx context.Context, batch []*models.Lead) (models.SyncStats, error)
}

// Orchestrator runs collection end to end: scrape each county, standardize,
// dedupe, optionally enrich, score, then cache and sync. One county failing
// never stops the others; whatever was collected still flows through.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	shared   *storage.PostgresStore
	sheet    SheetSyncer
	enricher *enrich.Enricher

	std      *leads.Standardizer
	dedupe   *leads.Deduplicator
	handlers map[string]Handler

	// TestMode runs the scrape and the pipeline but skips every write:
	// no cache inserts, no run rows, no sheet append.
	TestMode bool
}

type Options struct {
	Store    *storage.SQLiteStore
	Shared   *storage.PostgresStore
	Sheet    SheetSyncer
	Enricher *enrich.Enricher
	TestMode bool
}

func NewOrchestrator(cfg *config.Config, opts Options) *Orchestrator {
	handlers := make(map[string]Handler, len(cfg.Counties))
	for id, cc := range cfg.Counties {
		handlers[id] = NewHandler(cc, cfg.Scraper)
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    opts.Store,
		shared:   opts.Shared,
		sheet:    opts.Sheet,
		enricher: opts.Enricher,
		std:      leads.NewStandardizer(),
		dedupe:   leads.NewDeduplicator(cfg.Scraper.AddrKeyLen),
		handlers: handlers,
		TestMode: opts.TestMode,
	}
}

// Run collects the given counties (all configured ones when empty) and
// returns a summary. The summary is always populated, including on partial
// failure; the error reports what kept results from being delivered.
func (o *Orchestrator) Run(ctx context.Context, counties []string, daysBack int, enrichLeads bool) (*models.RunSummary, error) {
	if len(counties) == 0 {
		for id := range o.cfg.Counties {
			counties = append(counties, id)
		}
	}
	if daysBack <= 0 {
		daysBack = o.cfg.Scraper.DaysBack
	}

	to := time.Now()
	from := to.AddDate(0, 0, -daysBack)

	summary := &models.RunSummary{
		RunID:            uuid.NewString(),
		CollectionTime:   to,
		Counties:         counties,
		DaysBack:         daysBack,
		Enriched:         enrichLeads,
		RecordsCollected: make(map[string]int),
		CountyErrors:     make(map[string]string),
	}

	var pool []*models.Lead
	for _, id := range counties {
		collected, err := o.collectCounty(ctx, id, from, to)
		if err != nil {
			log.Printf("county %s failed: %v", id, err)
			summary.CountyErrors[id] = err.Error()
			continue
		}
		summary.RecordsCollected[id] = len(collected)
		pool = append(pool, collected...)
	}

	summary.TotalRaw = len(pool)
	unique := o.dedupe.Dedupe(pool)
	summary.TotalUnique = len(unique)
	log.Printf("collected %d records, %d unique", summary.TotalRaw, summary.TotalUnique)

	if enrichLeads && o.enricher != nil {
		enriched := o.enricher.EnrichBatch(ctx, unique)
		log.Printf("enriched %d of %d leads", enriched, len(unique))
	}

	for _, l := range unique {
		l.LeadScore = leads.Score(l)
	}

	if o.TestMode {
		// Report what a real run would append so the summary is still
		// meaningful without any write.
		summary.SyncStats.Added = len(unique)
		summary.SyncStats.Duplicates = summary.TotalRaw - summary.TotalUnique
		log.Printf("test mode: skipping cache and sheet writes")
		return summary, nil
	}

	if err := o.deliver(ctx, unique, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// RunCounty is Run for a single county.
func (o *Orchestrator) RunCounty(ctx context.Context, id string, daysBack int, enrichLeads bool) (*models.RunSummary, error) {
	if _, ok := o.cfg.Counties[id]; !ok {
		return nil, fmt.Errorf("unknown county: %s", id)
	}
	return o.Run(ctx, []string{id}, daysBack, enrichLeads)
}

func (o *Orchestrator) collectCounty(ctx context.Context, id string, from, to time.Time) ([]*models.Lead, error) {
	cc, ok := o.cfg.Counties[id]
	if !ok {
		return nil, fmt.Errorf("unknown county: %s", id)
	}
	handler := o.handlers[id]

	log.Printf("collecting %s (%s handler) from %s to %s",
		cc.Name, cc.Handler, from.Format("2006-01-02"), to.Format("2006-01-02"))

	run := &models.CollectionRun{
		County:    cc.Name,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	o.createRun(run)

	raw, err := handler.Collect(ctx, from, to)

	now := time.Now()
	run.FinishedAt = &now
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = err.Error()
		o.updateRun(run)
		return nil, err
	}

	collected := make([]*models.Lead, 0, len(raw))
	for _, r := range raw {
		collected = append(collected, o.std.Standardize(r))
	}

	run.Status = models.RunStatusCompleted
	run.RecordsFound = len(collected)
	o.updateRun(run)

	log.Printf("%s: %d records", cc.Name, len(collected))
	return collected, nil
}

// deliver caches the batch locally (and in the shared store when one is
// configured), then pushes it to the sheet. A sheet failure after a
// successful cache write is recoverable: the leads are on disk.
func (o *Orchestrator) deliver(ctx context.Context, batch []*models.Lead, summary *models.RunSummary) error {
	if o.store != nil {
		cached, err := o.store.SaveLeads(batch)
		if err != nil {
			log.Printf("cache write failed: %v", err)
		} else {
			log.Printf("cached %d new leads", cached)
		}
	}

	if o.shared != nil {
		if _, err := o.shared.SaveLeads(ctx, batch); err != nil {
			log.Printf("shared store write failed: %v", err)
		}
	}

	if o.sheet == nil {
		return nil
	}
	if err := o.sheet.EnsureHeaders(ctx); err != nil {
		summary.SyncStats.Errors = len(batch)
		return fmt.Errorf("sheet headers: %w", err)
	}

	stats, err := o.sheet.Sync(ctx, batch)
	summary.SyncStats = stats
	if err != nil {
		return fmt.Errorf("sheet sync: %w", err)
	}
	return nil
}

func (o *Orchestrator) createRun(run *models.CollectionRun) {
	if o.store == nil || o.TestMode {
		return
	}
	id, err := o.store.CreateRun(run)
	if err != nil {
		log.Printf("create run row: %v", err)
		return
	}
	run.ID = id
}

func (o *Orchestrator) updateRun(run *models.CollectionRun) {
	if o.store == nil || o.TestMode || run.ID == 0 {
		return
	}
	if err := o.store.UpdateRun(run); err != nil {
		log.Printf("update run row: %v", err)
	}
}
