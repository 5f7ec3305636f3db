package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphengine/application/ports"
	"graphengine/domain/events"
	"graphengine/infrastructure/persistence/schema"
)

// eventSchemaVersion is stamped on every stored event payload
const eventSchemaVersion = 1

// PublishStatus represents the publishing status of an event
type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "pending"
	PublishStatusPublished PublishStatus = "published"
	PublishStatusFailed    PublishStatus = "failed"
)

// StoredEvent is an event read back from the journal. It satisfies
// events.DomainEvent and marshals to the payload it was stored with.
type StoredEvent struct {
	ID              string
	BatchID         string
	Seq             int
	AggregateID     string
	EventType       string
	Payload         json.RawMessage
	OccurredAt      time.Time
	Status          PublishStatus
	PublishAttempts int
	LastError       string
}

func (e StoredEvent) GetAggregateID() string  { return e.AggregateID }
func (e StoredEvent) GetEventType() string    { return e.EventType }
func (e StoredEvent) GetTimestamp() time.Time { return e.OccurredAt }
func (e StoredEvent) GetVersion() int         { return eventSchemaVersion }

// MarshalJSON returns the stored payload
func (e StoredEvent) MarshalJSON() ([]byte, error) {
	if len(e.Payload) == 0 {
		return []byte("null"), nil
	}
	return e.Payload, nil
}

// JournalStore implements ports.JournalStore with an outbox of the events
// each batch produced
type JournalStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJournalStore creates a journal over an opened database
func NewJournalStore(db *sql.DB, logger *zap.Logger) *JournalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalStore{db: db, logger: logger}
}

// Append stores the record and its events in one transaction
func (s *JournalStore) Append(ctx context.Context, record ports.BatchRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.AppliedAt.IsZero() {
		record.AppliedAt = time.Now().UTC()
	}

	created, err := json.Marshal(record.CreatedNodes)
	if err != nil {
		return fmt.Errorf("failed to marshal created nodes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO batches
		(id, graph_id, asset_path, graph_name, domain, operation, success, error_count, created_nodes, fingerprint, request, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.GraphID, record.Graph.AssetPath, record.Graph.GraphName, record.Domain,
		record.Operation, record.Success, record.ErrorCount, string(created), record.Fingerprint,
		nullableJSON(record.Request), record.AppliedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", record.ID, err)
	}

	for i, event := range record.Events {
		payload, err := schema.MarshalWithSchema(event, eventSchemaVersion)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.GetEventType(), err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO events
			(id, batch_id, seq, aggregate_id, event_type, payload, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), record.ID, i, event.GetAggregateID(), event.GetEventType(),
			string(payload), event.GetTimestamp().UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert event %d of batch %s: %w", i, record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("Batch journaled",
		zap.String("batch_id", record.ID),
		zap.String("graph", record.Graph.String()),
		zap.Int("events", len(record.Events)),
	)
	return nil
}

// Recent lists the newest records for a graph, newest first
func (s *JournalStore) Recent(ctx context.Context, graphID string, limit int) ([]ports.BatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, graph_id, asset_path, graph_name, domain, operation, success, error_count, created_nodes, fingerprint, request, applied_at
		FROM batches WHERE graph_id = ? ORDER BY applied_at DESC, rowid DESC LIMIT ?`, graphID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.BatchRecord
	for rows.Next() {
		var (
			r       ports.BatchRecord
			created sql.NullString
			request sql.NullString
			applied int64
		)
		if err := rows.Scan(&r.ID, &r.GraphID, &r.Graph.AssetPath, &r.Graph.GraphName, &r.Domain,
			&r.Operation, &r.Success, &r.ErrorCount, &created, &r.Fingerprint, &request, &applied); err != nil {
			return nil, err
		}
		if created.Valid && created.String != "" && created.String != "null" {
			if err := json.Unmarshal([]byte(created.String), &r.CreatedNodes); err != nil {
				return nil, fmt.Errorf("batch %s: created nodes: %w", r.ID, err)
			}
		}
		if request.Valid {
			r.Request = json.RawMessage(request.String)
		}
		r.AppliedAt = time.Unix(0, applied).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns the events of one batch in the order they happened
func (s *JournalStore) Events(ctx context.Context, batchID string) ([]StoredEvent, error) {
	return s.queryEvents(ctx, `WHERE batch_id = ? ORDER BY seq`, batchID)
}

// PendingEvents returns unpublished events, oldest first. Failed events are
// included until they reach maxAttempts.
func (s *JournalStore) PendingEvents(ctx context.Context, limit, maxAttempts int) ([]StoredEvent, error) {
	return s.queryEvents(ctx, `WHERE publish_status = ? OR (publish_status = ? AND publish_attempts < ?)
		ORDER BY occurred_at, seq LIMIT ?`,
		string(PublishStatusPending), string(PublishStatusFailed), maxAttempts, limit)
}

// MarkEventsAsPublished flags events as delivered
func (s *JournalStore) MarkEventsAsPublished(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(PublishStatusPublished), time.Now().UnixNano())
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE events SET publish_status = ?, published_at = ?, last_error = NULL
		WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// MarkEventAsFailed records a failed publish attempt
func (s *JournalStore) MarkEventAsFailed(ctx context.Context, id, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE events
		SET publish_status = ?, publish_attempts = publish_attempts + 1, last_error = ?
		WHERE id = ?`, string(PublishStatusFailed), errorMessage, id)
	return err
}

func (s *JournalStore) queryEvents(ctx context.Context, where string, args ...any) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, batch_id, seq, aggregate_id, event_type, payload, occurred_at, publish_status, publish_attempts, last_error
		FROM events `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			e         StoredEvent
			payload   string
			occurred  int64
			lastError sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Seq, &e.AggregateID, &e.EventType, &payload,
			&occurred, &e.Status, &e.PublishAttempts, &lastError); err != nil {
			return nil, err
		}
		data, _, err := schema.UnmarshalWithSchema([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Payload = data
		e.OccurredAt = time.Unix(0, occurred).UTC()
		e.LastError = lastError.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var (
	_ ports.JournalStore = (*JournalStore)(nil)
	_ events.DomainEvent = StoredEvent{}
)
