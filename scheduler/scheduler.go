package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"nodleads/config"
	"nodleads/scraper"
	"nodleads/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scheduler drives recurring collection runs in daemon mode. A cron
// expression takes precedence; a plain interval is the fallback.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	store        *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	enrichmentWorker Triggerable
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetEnrichmentWorker registers the background enrichment worker so
// scheduled runs can kick a backfill pass after new leads land.
func (s *Scheduler) SetEnrichmentWorker(w Triggerable) {
	s.enrichmentWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCleanup(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runAll(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		return fmt.Errorf("daemon mode requires a cron expression or interval")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) runAll(ctx context.Context) {
	summary, err := s.orchestrator.Run(ctx, nil, 0, false)
	if err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
	if summary != nil {
		log.Printf("Scheduled run %s: %d unique leads (%d raw), %d counties failed",
			summary.RunID, summary.TotalUnique, summary.TotalRaw, len(summary.CountyErrors))
	}
	if s.enrichmentWorker != nil {
		s.enrichmentWorker.Trigger()
	}
}

// TriggerNow runs a full collection pass immediately, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	_, err := s.orchestrator.Run(ctx, nil, 0, false)
	return err
}

const runLogRetention = 90 * 24 * time.Hour

func (s *Scheduler) pollCleanup(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.store == nil {
				continue
			}
			n, err := s.store.Cleanup(runLogRetention)
			if err != nil {
				log.Printf("Run log cleanup error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Run log cleanup: removed %d old entries", n)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
