// Package storage persists leads and run history. SQLite is the local cache
// every deployment gets; Postgres is an optional shared store for teams
// running collectors on several machines.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nodleads/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leads (
		lead_id TEXT PRIMARY KEY,
		date_found TEXT,
		recording_date TEXT,
		owner_name TEXT,
		phone TEXT,
		email TEXT,
		property_address TEXT,
		city TEXT,
		county TEXT,
		apn TEXT,
		estimated_value TEXT,
		mortgage_balance TEXT,
		equity TEXT,
		lender TEXT,
		trustee TEXT,
		auction_date TEXT,
		stage TEXT,
		status TEXT,
		lead_score INTEGER DEFAULT 0,
		notes TEXT,
		source TEXT,
		document_number TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(property_address, county, document_number)
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		county TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		records_found INTEGER DEFAULT 0,
		status TEXT,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leads_county ON leads(county, recording_date);
	CREATE INDEX IF NOT EXISTS idx_leads_apn ON leads(apn);
	CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(lead_score);
	CREATE INDEX IF NOT EXISTS idx_runs_county ON scrape_runs(county, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveLeads caches a batch, skipping rows already present. Returns how many
// were actually new.
func (s *SQLiteStore) SaveLeads(leads []*models.Lead) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO leads (
			lead_id, date_found, recording_date, owner_name, phone, email,
			property_address, city, county, apn, estimated_value,
			mortgage_balance, equity, lender, trustee, auction_date,
			stage, status, lead_score, notes, source, document_number
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, l := range leads {
		res, err := stmt.Exec(
			l.LeadID, l.DateFound, l.RecordingDate, l.OwnerName, l.Phone, l.Email,
			l.PropertyAddress, l.City, l.County, l.APN, l.EstimatedValue,
			l.MortgageBalance, l.Equity, l.Lender, l.Trustee, l.AuctionDate,
			string(l.Stage), string(l.Status), l.LeadScore, l.Notes, l.Source, l.DocumentNumber,
		)
		if err != nil {
			return 0, fmt.Errorf("insert lead %s: %w", l.LeadID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	return inserted, tx.Commit()
}

func (s *SQLiteStore) GetLead(leadID string) (*models.Lead, error) {
	row := s.db.QueryRow(leadSelect+` WHERE lead_id = ?`, leadID)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// LeadsMissingDetails returns cached leads with no property value yet, the
// ones worth an enrichment pass. Highest scores first.
func (s *SQLiteStore) LeadsMissingDetails(limit int) ([]*models.Lead, error) {
	rows, err := s.db.Query(leadSelect+`
		WHERE (estimated_value = '' OR property_address = '' OR owner_name = '')
		ORDER BY lead_score DESC, recording_date DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows)
}

// LeadsForSkipTrace returns promising leads with no contact info on file.
func (s *SQLiteStore) LeadsForSkipTrace(minScore int) ([]*models.Lead, error) {
	rows, err := s.db.Query(leadSelect+`
		WHERE lead_score >= ? AND phone = '' AND email = ''
		ORDER BY lead_score DESC`, minScore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows)
}

func (s *SQLiteStore) UpdateLead(l *models.Lead) error {
	_, err := s.db.Exec(`
		UPDATE leads SET
			owner_name = ?, phone = ?, email = ?, property_address = ?,
			city = ?, estimated_value = ?, mortgage_balance = ?, equity = ?,
			lead_score = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE lead_id = ?`,
		l.OwnerName, l.Phone, l.Email, l.PropertyAddress,
		l.City, l.EstimatedValue, l.MortgageBalance, l.Equity,
		l.LeadScore, l.Notes, l.LeadID)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.CollectionRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO scrape_runs (county, started_at, status, records_found)
		VALUES (?, ?, ?, ?)`,
		run.County, run.StartedAt, string(run.Status), run.RecordsFound)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.CollectionRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs
		SET finished_at = ?, status = ?, records_found = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, string(run.Status), run.RecordsFound, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) RecentRuns(limit int) ([]models.CollectionRun, error) {
	rows, err := s.db.Query(`
		SELECT id, county, started_at, finished_at, records_found, status, COALESCE(error_message, '')
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CollectionRun
	for rows.Next() {
		var run models.CollectionRun
		var status string
		if err := rows.Scan(&run.ID, &run.County, &run.StartedAt, &run.FinishedAt,
			&run.RecordsFound, &status, &run.ErrorMessage); err != nil {
			return nil, err
		}
		run.Status = models.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats reports cached lead counts per county plus the total.
func (s *SQLiteStore) Stats() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT county, COUNT(*) FROM leads GROUP BY county`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	total := 0
	for rows.Next() {
		var county string
		var count int
		if err := rows.Scan(&county, &count); err != nil {
			return nil, err
		}
		stats[county] = count
		total += count
	}
	stats["total"] = total
	return stats, rows.Err()
}

// Cleanup drops run history older than the retention window. Leads are kept
// forever; only the operational log is pruned.
func (s *SQLiteStore) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.db.Exec(`DELETE FROM scrape_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const leadSelect = `
	SELECT lead_id, date_found, recording_date, owner_name, phone, email,
		property_address, city, county, apn, estimated_value,
		mortgage_balance, equity, lender, trustee, auction_date,
		stage, status, lead_score, notes, source, document_number
	FROM leads`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	var stage, status string
	err := row.Scan(
		&l.LeadID, &l.DateFound, &l.RecordingDate, &l.OwnerName, &l.Phone, &l.Email,
		&l.PropertyAddress, &l.City, &l.County, &l.APN, &l.EstimatedValue,
		&l.MortgageBalance, &l.Equity, &l.Lender, &l.Trustee, &l.AuctionDate,
		&stage, &status, &l.LeadScore, &l.Notes, &l.Source, &l.DocumentNumber,
	)
	if err != nil {
		return nil, err
	}
	l.Stage = models.Stage(stage)
	l.Status = models.Status(status)
	return &l, nil
}

func scanLeads(rows *sql.Rows) ([]*models.Lead, error) {
	var leads []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}
