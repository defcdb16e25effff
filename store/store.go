// Package store persists the arm set in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"probebandit/models"
)

// ErrArmNotFound is returned when an arm name has no row.
var ErrArmNotFound = errors.New("store: arm not found")

// Store wraps a sql.DB with arm-set operations.
type Store struct {
	db *sql.DB
}

// New creates a Store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// schema is applied at startup. success_limit is NULL for unbounded arms.
const schema = `
CREATE TABLE IF NOT EXISTS arms (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	command       TEXT NOT NULL,
	weight        DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	success_limit INTEGER,
	successes     INTEGER NOT NULL DEFAULT 0,
	failures      INTEGER NOT NULL DEFAULT 0,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	broken        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the arms table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateArm inserts a new arm and returns it with its assigned ID.
func (s *Store) CreateArm(ctx context.Context, arm models.Arm) (models.Arm, error) {
	arm.ID = uuid.New().String()
	now := time.Now()
	arm.CreatedAt = now
	arm.UpdatedAt = now

	var limit sql.NullInt64
	if arm.Limit != nil {
		limit = sql.NullInt64{Int64: int64(*arm.Limit), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arms (id, name, command, weight, success_limit, successes, failures, active, broken, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, arm.ID, arm.Name, arm.Command, arm.Weight, limit,
		arm.Successes, arm.Failures, arm.Active, arm.Broken, arm.CreatedAt, arm.UpdatedAt)
	if err != nil {
		return models.Arm{}, fmt.Errorf("insert arm %q: %w", arm.Name, err)
	}
	return arm, nil
}

// ListArms returns every arm ordered by name.
func (s *Store) ListArms(ctx context.Context) ([]models.Arm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, command, weight, success_limit, successes, failures, active, broken, created_at, updated_at
		FROM arms
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list arms: %w", err)
	}
	defer rows.Close()

	var arms []models.Arm
	for rows.Next() {
		arm, err := scanArm(rows)
		if err != nil {
			return nil, err
		}
		arms = append(arms, arm)
	}
	return arms, rows.Err()
}

// GetArm returns the arm with the given name.
func (s *Store) GetArm(ctx context.Context, name string) (models.Arm, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, command, weight, success_limit, successes, failures, active, broken, created_at, updated_at
		FROM arms
		WHERE name = $1
	`, name)

	arm, err := scanArm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Arm{}, ErrArmNotFound
	}
	return arm, err
}

// RecordOutcome applies one binary observation to an arm and deactivates
// it when the success cap is reached. Returns the updated counters.
func (s *Store) RecordOutcome(ctx context.Context, name string, interesting bool) (successes, failures int, err error) {
	var limit sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		UPDATE arms
		SET
			successes = CASE WHEN $1 THEN successes + 1 ELSE successes END,
			failures = CASE WHEN $1 THEN failures ELSE failures + 1 END,
			updated_at = NOW()
		WHERE name = $2
		RETURNING successes, failures, success_limit
	`, interesting, name).Scan(&successes, &failures, &limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrArmNotFound
		}
		return 0, 0, fmt.Errorf("record outcome for %q: %w", name, err)
	}

	if limit.Valid && int64(successes) >= limit.Int64 {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE arms SET active = FALSE, updated_at = NOW() WHERE name = $1
		`, name); err != nil {
			return successes, failures, fmt.Errorf("deactivate %q: %w", name, err)
		}
	}
	return successes, failures, nil
}

// MarkBroken flags an arm as broken and deactivates it.
func (s *Store) MarkBroken(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE arms SET broken = TRUE, active = FALSE, updated_at = NOW() WHERE name = $1
	`, name)
	if err != nil {
		return fmt.Errorf("mark broken %q: %w", name, err)
	}
	return checkFound(res, name)
}

// ResetArm zeroes an arm's counters and reactivates it. A non-empty
// command replaces the stored one.
func (s *Store) ResetArm(ctx context.Context, name, command string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE arms
		SET
			successes = 0,
			failures = 0,
			active = TRUE,
			broken = FALSE,
			command = CASE WHEN $1 <> '' THEN $1 ELSE command END,
			updated_at = NOW()
		WHERE name = $2
	`, command, name)
	if err != nil {
		return fmt.Errorf("reset arm %q: %w", name, err)
	}
	return checkFound(res, name)
}

// ResetAll zeroes every arm's counters and reactivates the whole set.
func (s *Store) ResetAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE arms
		SET successes = 0, failures = 0, active = TRUE, broken = FALSE, updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("reset all arms: %w", err)
	}
	return nil
}

// SaveRun writes back the counters and flags from a finished scheduler
// run, one transaction for the whole snapshot.
func (s *Store) SaveRun(ctx context.Context, arms []models.Arm) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	defer tx.Rollback()

	for _, arm := range arms {
		if _, err := tx.ExecContext(ctx, `
			UPDATE arms
			SET successes = $1, failures = $2, active = $3, broken = $4, updated_at = NOW()
			WHERE name = $5
		`, arm.Successes, arm.Failures, arm.Active, arm.Broken, arm.Name); err != nil {
			return fmt.Errorf("save run for %q: %w", arm.Name, err)
		}
	}
	return tx.Commit()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanArm(row scanner) (models.Arm, error) {
	var arm models.Arm
	var limit sql.NullInt64
	err := row.Scan(
		&arm.ID, &arm.Name, &arm.Command, &arm.Weight, &limit,
		&arm.Successes, &arm.Failures, &arm.Active, &arm.Broken,
		&arm.CreatedAt, &arm.UpdatedAt,
	)
	if err != nil {
		return models.Arm{}, err
	}
	if limit.Valid {
		v := int(limit.Int64)
		arm.Limit = &v
	}
	return arm, nil
}

func checkFound(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %q: %w", name, err)
	}
	if n == 0 {
		return ErrArmNotFound
	}
	return nil
}
