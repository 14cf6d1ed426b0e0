package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agencytax/agencytax/internal/model"
	"github.com/google/uuid"
)

// RecordAuditEvent persists a side-channel audit entry. Callers are
// expected to swallow failures; an audit miss never fails the primary
// operation.
func (s *SQLiteStorage) RecordAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("%w: event", ErrNilParameter)
	}
	if err := validateString(event.ActorUserID, "actorUserID"); err != nil {
		return err
	}
	if err := validateString(event.Action, "action"); err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, table_name, record_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.ActorUserID,
		event.Action,
		sql.NullString{String: event.TableName, Valid: event.TableName != ""},
		sql.NullString{String: event.RecordID, Valid: event.RecordID != ""},
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	return nil
}
