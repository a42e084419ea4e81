package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CollectionRun is one county's entry in the local run log.
type CollectionRun struct {
	ID           int64      `json:"id" db:"id"`
	County       string     `json:"county" db:"county"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	RecordsFound int        `json:"records_found" db:"records_found"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}

// SyncStats reports the outcome of one batched sheet sync.
type SyncStats struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// RunSummary is printed (and optionally written to JSON) at the end of
// every run, including partially failed ones.
type RunSummary struct {
	RunID            string            `json:"run_id"`
	CollectionTime   time.Time         `json:"collection_time"`
	Counties         []string          `json:"counties"`
	DaysBack         int               `json:"days_back"`
	Enriched         bool              `json:"enriched"`
	RecordsCollected map[string]int    `json:"records_collected"`
	CountyErrors     map[string]string `json:"county_errors,omitempty"`
	TotalRaw         int               `json:"total_raw"`
	TotalUnique      int               `json:"total_unique"`
	SyncStats        SyncStats         `json:"sync_stats"`
}
