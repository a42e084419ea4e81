package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"nodleads/models"
)

// PostgresStore mirrors collected leads into a shared database so several
// collector machines feed one lead list. It is additive only: the local
// SQLite cache stays authoritative for run history and enrichment state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
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
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now()
		)`)
	return err
}

// SaveLeads upserts a batch into the shared store. Existing rows win on
// identity but pick up newly enriched fields when the stored value is blank.
func (s *PostgresStore) SaveLeads(ctx context.Context, leads []*models.Lead) (int, error) {
	inserted := 0
	for _, l := range leads {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO leads (
				lead_id, date_found, recording_date, owner_name, phone, email,
				property_address, city, county, apn, estimated_value,
				mortgage_balance, equity, lender, trustee, auction_date,
				stage, status, lead_score, notes, source, document_number
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
			ON CONFLICT (lead_id) DO UPDATE SET
				phone = COALESCE(NULLIF(leads.phone, ''), EXCLUDED.phone),
				email = COALESCE(NULLIF(leads.email, ''), EXCLUDED.email),
				estimated_value = COALESCE(NULLIF(leads.estimated_value, ''), EXCLUDED.estimated_value),
				equity = COALESCE(NULLIF(leads.equity, ''), EXCLUDED.equity),
				lead_score = GREATEST(leads.lead_score, EXCLUDED.lead_score),
				updated_at = now()`,
			l.LeadID, l.DateFound, l.RecordingDate, l.OwnerName, l.Phone, l.Email,
			l.PropertyAddress, l.City, l.County, l.APN, l.EstimatedValue,
			l.MortgageBalance, l.Equity, l.Lender, l.Trustee, l.AuctionDate,
			string(l.Stage), string(l.Status), l.LeadScore, l.Notes, l.Source, l.DocumentNumber,
		)
		if err != nil {
			return inserted, fmt.Errorf("upsert lead %s: %w", l.LeadID, err)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// CountLeads reports the shared store size, mostly for the stats command.
func (s *PostgresStore) CountLeads(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count)
	return count, err
}
