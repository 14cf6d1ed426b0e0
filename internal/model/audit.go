package model

import "time"

// Audit actions recorded by the pipeline.
const (
	AuditActionLinkedBank     = "LINKED_BANK"
	AuditActionInitialSync    = "INITIAL_SYNC"
	AuditActionMonthlySync    = "MONTHLY_SYNC"
	AuditActionDisconnectBank = "DISCONNECT_BANK"
)

// AuditEvent records a side-channel audit entry. Audit writes are best
// effort: a failure to record one never fails the operation it describes.
type AuditEvent struct {
	CreatedAt   time.Time
	ID          string // UUID
	ActorUserID string
	Action      string
	TableName   string
	RecordID    string
	Metadata    map[string]any
}
