package workers

import (
	"context"
	"log"
	"time"

	"nodleads/enrich"
	"nodleads/leads"
	"nodleads/models"
	"nodleads/storage"
)

// EnrichmentWorker periodically pulls cached leads that are missing property
// details and backfills them from county assessor portals. It runs alongside
// the scraping schedule so leads collected without detail pages still end up
// with values, owners and equity estimates.
type EnrichmentWorker struct {
	store     *storage.SQLiteStore
	enricher  *enrich.Enricher
	batchSize int

	trigger chan struct{}
}

// NewEnrichmentWorker creates a worker that enriches up to batchSize leads
// per pass.
func NewEnrichmentWorker(store *storage.SQLiteStore, enricher *enrich.Enricher, batchSize int) *EnrichmentWorker {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &EnrichmentWorker{
		store:     store,
		enricher:  enricher,
		batchSize: batchSize,
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger requests an immediate pass outside the normal interval. Safe to
// call from other goroutines; coalesces when a pass is already pending.
func (w *EnrichmentWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *EnrichmentWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Enrichment worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		case <-w.trigger:
			w.processBatch(ctx)
		}
	}
}

func (w *EnrichmentWorker) processBatch(ctx context.Context) {
	batch, err := w.store.LeadsMissingDetails(w.batchSize)
	if err != nil {
		log.Printf("Enrichment: query error: %v", err)
		return
	}
	if len(batch) == 0 {
		return
	}

	log.Printf("Enrichment: processing %d leads", len(batch))

	updated := 0
	for _, l := range batch {
		if ctx.Err() != nil {
			return
		}
		changed, err := w.enricher.Enrich(ctx, l)
		if err != nil {
			log.Printf("Enrichment: %s: %v", l.LeadID, err)
			continue
		}
		if !changed {
			continue
		}
		w.rescore(l)
		if err := w.store.UpdateLead(l); err != nil {
			log.Printf("Enrichment: update %s: %v", l.LeadID, err)
			continue
		}
		updated++
	}

	if updated > 0 {
		log.Printf("Enrichment: updated %d of %d leads", updated, len(batch))
	}
}

func (w *EnrichmentWorker) rescore(l *models.Lead) {
	if score := leads.Score(l); score > l.LeadScore {
		l.LeadScore = score
	}
}
