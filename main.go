package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"nodleads/config"
	"nodleads/enrich"
	"nodleads/export"
	"nodleads/httputil"
	"nodleads/leads"
	"nodleads/logging"
	"nodleads/models"
	"nodleads/scheduler"
	"nodleads/scraper"
	"nodleads/sheets"
	"nodleads/storage"
	"nodleads/workers"
)

var (
	allCounties    = flag.Bool("all", false, "Collect from all configured counties")
	county         = flag.String("county", "", "Collect from a single county by id")
	days           = flag.Int("days", 0, "How many days back to search (default from config)")
	enrichFlag     = flag.Bool("enrich", false, "Enrich new leads from assessor portals")
	maxEnrich      = flag.Int("max-enrich", 0, "Cap assessor lookups per run (0 = config default)")
	testMode       = flag.Bool("test", false, "Collect and report without writing anywhere")
	output         = flag.String("output", "", "Write the run summary as JSON to this file")
	exportPath     = flag.String("export-skiptrace", "", "Export skip-trace candidates to this .csv or .xlsx file and exit")
	exportLimit    = flag.Int("export-limit", 500, "Max rows in the skip-trace export")
	statsFlag      = flag.Bool("stats", false, "Print lead cache statistics and exit")
	daemon         = flag.Bool("daemon", false, "Run on a schedule until interrupted")
	enrichInterval = flag.Duration("enrich-interval", 15*time.Minute, "Background enrichment interval in daemon mode")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("nodleads.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Counties) == 0 {
		log.Fatal("No county configs found")
	}
	log.Printf("Loaded %d county configs", len(cfg.Counties))
	for id, cc := range cfg.Counties {
		log.Printf("  - %s (%s, %s)", cc.Name, id, cc.Handler)
	}

	if *maxEnrich > 0 {
		cfg.Enrich.MaxPerRun = *maxEnrich
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open lead cache: %v", err)
	}
	defer store.Close()
	log.Printf("Lead cache: %s", cfg.DBPath)

	var shared *storage.PostgresStore
	if cfg.LeadsDB.URL != "" {
		shared, err = storage.NewPostgresStore(ctx, cfg.LeadsDB.URL)
		if err != nil {
			log.Printf("Warning: shared lead store unavailable: %v", err)
		} else {
			defer shared.Close()
			log.Printf("Connected to shared lead store: %s", maskConnectionString(cfg.LeadsDB.URL))
		}
	}

	if *statsFlag {
		if err := printStats(ctx, store, shared); err != nil {
			log.Fatalf("Stats failed: %v", err)
		}
		return
	}

	if *exportPath != "" {
		if err := runExport(ctx, cfg, store, *exportPath, *exportLimit); err != nil {
			log.Fatalf("Skip-trace export failed: %v", err)
		}
		return
	}

	enricher := enrich.New(cfg.Enrich, cfg.Counties, assessorClient(cfg))

	opts := scraper.Options{
		Store:    store,
		Shared:   shared,
		Enricher: enricher,
		TestMode: *testMode,
	}

	dedupe := leads.NewDeduplicator(cfg.Scraper.AddrKeyLen)
	sheet, err := sheets.NewClient(ctx, cfg.Sheets, dedupe)
	if err != nil {
		var authErr *sheets.AuthError
		if errors.As(err, &authErr) {
			log.Printf("Warning: sheet sync disabled: %v", err)
		} else {
			log.Fatalf("Failed to set up sheet client: %v", err)
		}
	} else {
		opts.Sheet = sheet
	}

	orchestrator := scraper.NewOrchestrator(cfg, opts)

	if *daemon {
		runDaemon(ctx, cfg, orchestrator, store, enricher)
		return
	}

	var counties []string
	switch {
	case *county != "":
		counties = []string{*county}
	case *allCounties:
		// empty slice means all configured counties
	default:
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nSpecify --all, --county, --daemon, --stats, or --export-skiptrace")
		os.Exit(2)
	}

	summary, runErr := orchestrator.Run(ctx, counties, *days, *enrichFlag)
	if summary != nil {
		printSummary(summary)
		if *output != "" {
			if err := writeSummary(*output, summary); err != nil {
				log.Printf("Warning: could not write summary file: %v", err)
			}
		}
	}
	if runErr != nil {
		log.Fatalf("Run finished with errors: %v", runErr)
	}
	if summary != nil && summary.SyncStats.Errors > 0 {
		os.Exit(1)
	}
}

func runDaemon(ctx context.Context, cfg *config.Config, orchestrator *scraper.Orchestrator, store *storage.SQLiteStore, enricher *enrich.Enricher) {
	sched := scheduler.New(cfg, orchestrator, store)

	worker := workers.NewEnrichmentWorker(store, enricher, cfg.Enrich.MaxPerRun)
	sched.SetEnrichmentWorker(worker)
	go worker.Run(ctx, *enrichInterval)
	log.Println("Enrichment worker started")

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Println("Daemon running. Press Ctrl+C to stop.")

	// First pass right away; the schedule covers the rest.
	go func() {
		if err := sched.TriggerNow(ctx); err != nil {
			log.Printf("Initial run error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	sched.Stop()
}

func runExport(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore, path string, limit int) error {
	pool, err := store.LeadsForSkipTrace(0)
	if err != nil {
		return err
	}
	candidates := export.SkipTraceCandidates(pool, limit)
	if len(candidates) == 0 {
		log.Println("No skip-trace candidates found")
		return nil
	}
	if err := export.WriteFile(path, candidates); err != nil {
		return err
	}
	log.Printf("Exported %d leads to %s", len(candidates), path)

	if cfg.Archive.Bucket == "" {
		return nil
	}
	archiver, err := storage.NewArchiver(ctx, cfg.Archive)
	if err != nil {
		log.Printf("Warning: archive disabled: %v", err)
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	key, err := archiver.ArchiveExport(ctx, filepath.Base(path), f, exportContentType(path))
	if err != nil {
		log.Printf("Warning: archive upload failed: %v", err)
		return nil
	}
	log.Printf("Archived export: %s", archiver.ObjectURL(key))
	return nil
}

func printStats(ctx context.Context, store *storage.SQLiteStore, shared *storage.PostgresStore) error {
	stats, err := store.Stats()
	if err != nil {
		return err
	}

	counties := make([]string, 0, len(stats))
	for name := range stats {
		if name != "total" {
			counties = append(counties, name)
		}
	}
	sort.Strings(counties)

	fmt.Println("Leads by county:")
	for _, name := range counties {
		fmt.Printf("  %-20s %d\n", name, stats[name])
	}
	fmt.Printf("  %-20s %d\n", "total", stats["total"])

	runs, err := store.RecentRuns(10)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		fmt.Println("\nRecent runs:")
		for _, run := range runs {
			line := fmt.Sprintf("  %s  %-15s %-9s %d records",
				run.StartedAt.Format("2006-01-02 15:04"), run.County, run.Status, run.RecordsFound)
			if run.ErrorMessage != "" {
				line += "  (" + run.ErrorMessage + ")"
			}
			fmt.Println(line)
		}
	}

	if shared != nil {
		n, err := shared.CountLeads(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nShared store: %d leads\n", n)
	}
	return nil
}

func exportContentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

func assessorClient(cfg *config.Config) *httputil.Client {
	delay := time.Duration(cfg.Enrich.RateLimitMS) * time.Millisecond
	return httputil.NewClient(delay, cfg.Scraper.UserAgents)
}

func printSummary(s *models.RunSummary) {
	fmt.Printf("\nRun %s (%s)\n", s.RunID, s.CollectionTime.Format("2006-01-02 15:04"))
	fmt.Printf("  Searched %d days back across %d counties\n", s.DaysBack, len(s.Counties))

	counties := make([]string, 0, len(s.RecordsCollected))
	for id := range s.RecordsCollected {
		counties = append(counties, id)
	}
	sort.Strings(counties)
	for _, id := range counties {
		fmt.Printf("  %-20s %d records\n", id, s.RecordsCollected[id])
	}
	for id, msg := range s.CountyErrors {
		fmt.Printf("  %-20s FAILED: %s\n", id, msg)
	}

	fmt.Printf("  Raw records: %d, unique leads: %d\n", s.TotalRaw, s.TotalUnique)
	if s.Enriched {
		fmt.Println("  Enrichment: enabled")
	}
	fmt.Printf("  Sheet sync: %d added, %d duplicates, %d errors\n",
		s.SyncStats.Added, s.SyncStats.Duplicates, s.SyncStats.Errors)
}

func writeSummary(path string, s *models.RunSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	rest := connStr[start+3:]
	at := strings.IndexByte(rest, '@')
	if at < 0 {
		return connStr
	}
	colon := strings.IndexByte(rest[:at], ':')
	if colon < 0 {
		return connStr
	}
	return connStr[:start+3] + rest[:colon+1] + "****" + rest[at:]
}
