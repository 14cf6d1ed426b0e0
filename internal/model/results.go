package model

import "time"

// SyncMode identifies which reconciliation path a sync call took.
type SyncMode string

const (
	// SyncModeNone means the user had no active accounts; nothing to do.
	SyncModeNone SyncMode = "NONE"
	// SyncModeFull means the full transaction history was pulled.
	SyncModeFull SyncMode = "FULL"
	// SyncModeIncremental means only the aggregator's delta was applied.
	SyncModeIncremental SyncMode = "INCREMENTAL"
)

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SyncResult summarizes one sync pass across a user's active accounts.
// Per-account failures land in Errors; the pass itself still succeeds.
type SyncResult struct {
	DateRange *DateRange
	Mode      SyncMode
	Errors    []string
	Imported  int
	Accounts  int
}

// CategorizeResult summarizes one categorization batch. Errors holds one
// human-readable entry per transaction that could not be resolved or
// persisted.
type CategorizeResult struct {
	Errors      []string
	Categorized int
	Total       int
}
