package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"agegate/pkg/platform/events"
)

// Schema creates the event log table. Applied by EnsureSchema at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS verification_events (
	seq         BIGSERIAL PRIMARY KEY,
	run_id      TEXT        NOT NULL,
	lane_id     TEXT        NOT NULL,
	event_type  TEXT        NOT NULL,
	state       TEXT        NOT NULL,
	payload     JSONB       NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_events_run_idx ON verification_events (run_id, seq);
`

// Store implements events.Store on PostgreSQL. The full event is kept as
// JSON; the indexed columns serve lane and run queries.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create verification_events: %w", err)
	}
	return nil
}

// Append inserts one event.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO verification_events (run_id, lane_id, event_type, state, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.RunID,
		event.LaneID,
		string(event.Type),
		event.State,
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert verification event: %w", err)
	}
	return nil
}

// ListByRun returns a run's events in emission order.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM verification_events WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verification events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]events.Event, error) {
	var out []events.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		var event events.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("decode verification event: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification events: %w", err)
	}
	return out, nil
}
