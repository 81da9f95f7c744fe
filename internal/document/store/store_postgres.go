package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agegate/internal/document"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/platform/tx"
)

// Schema creates the card registry table.
const Schema = `
CREATE TABLE IF NOT EXISTS identity_cards (
	card_id       TEXT PRIMARY KEY,
	full_name     TEXT    NOT NULL,
	age           INTEGER NOT NULL CHECK (age >= 0),
	date_of_birth DATE    NOT NULL
);
`

// PostgresRegistry persists cards in PostgreSQL.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create identity_cards: %w", err)
	}
	return nil
}

// RunInTx runs fn with a transaction in its context. Put and Resolve called
// with that context join it.
func (r *PostgresRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, r.db, fn)
}

// Put upserts a card.
func (r *PostgresRegistry) Put(ctx context.Context, cardID string, record document.IdentityRecord) error {
	query := `
		INSERT INTO identity_cards (card_id, full_name, age, date_of_birth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (card_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			age = EXCLUDED.age,
			date_of_birth = EXCLUDED.date_of_birth
	`
	_, err := tx.Use(ctx, r.db).ExecContext(ctx, query, cardID, record.FullName, record.Age, record.DateOfBirth)
	if err != nil {
		return fmt.Errorf("upsert card: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Resolve(ctx context.Context, cardID string) (*document.IdentityRecord, error) {
	var record document.IdentityRecord
	err := tx.Use(ctx, r.db).QueryRowContext(ctx,
		`SELECT full_name, age, date_of_birth FROM identity_cards WHERE card_id = $1`, cardID,
	).Scan(&record.FullName, &record.Age, &record.DateOfBirth)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find card: %w", err)
	}
	record.DateOfBirth = record.DateOfBirth.UTC()
	return &record, nil
}
