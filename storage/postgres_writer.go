package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"escolas-wikidata/models"
)

// PostgresLedger records every import result in PostgreSQL.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresLedger.
func NewPostgresLedger(dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pl := &PostgresLedger{db: db}
	if err := pl.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pl, nil
}

func (pl *PostgresLedger) migrate() error {
	_, err := pl.db.Exec(`
		CREATE TABLE IF NOT EXISTS school_imports (
			id           BIGSERIAL    PRIMARY KEY,
			run_id       UUID         NOT NULL,
			inep_code    VARCHAR(8)   NOT NULL DEFAULT '',
			name         TEXT         NOT NULL DEFAULT '',
			municipality TEXT         NOT NULL DEFAULT '',
			category     VARCHAR(20)  NOT NULL DEFAULT '',
			qid          VARCHAR(32)  NOT NULL DEFAULT '',
			status       VARCHAR(16)  NOT NULL,
			error        TEXT         NOT NULL DEFAULT '',
			line         INTEGER      NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_school_imports_run    ON school_imports(run_id);
		CREATE INDEX IF NOT EXISTS idx_school_imports_code   ON school_imports(inep_code);
		CREATE INDEX IF NOT EXISTS idx_school_imports_status ON school_imports(status);
	`)
	return err
}

// Record inserts one result.
func (pl *PostgresLedger) Record(ctx context.Context, r *models.ImportResult) error {
	runID, err := uuid.Parse(r.RunID)
	if err != nil {
		return fmt.Errorf("postgres: record: run id %q: %w", r.RunID, err)
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = pl.db.ExecContext(ctx, `
		INSERT INTO school_imports (run_id, inep_code, name, municipality, category, qid, status, error, line, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, runID.String(), r.INEPCode, r.Name, r.Municipality, string(r.Category), r.QID, string(r.Status), r.Error, r.Line, createdAt)
	if err != nil {
		return fmt.Errorf("postgres: record: %w", err)
	}
	return nil
}

// Known returns the item a previous run created for the INEP code, if any.
// Partial creations count: the item exists even if some statements failed.
func (pl *PostgresLedger) Known(ctx context.Context, inepCode string) (string, bool, error) {
	var qid string
	err := pl.db.QueryRowContext(ctx, `
		SELECT qid
		FROM school_imports
		WHERE inep_code = $1 AND status IN ($2, $3) AND qid <> ''
		ORDER BY created_at DESC
		LIMIT 1
	`, inepCode, string(models.StatusCreated), string(models.StatusPartial)).Scan(&qid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres: known: %w", err)
	}
	return qid, true, nil
}

// FetchRun retrieves every result of one run in file order, used by the report.
func (pl *PostgresLedger) FetchRun(ctx context.Context, runID string) ([]*models.ImportResult, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch run: run id %q: %w", runID, err)
	}

	rows, err := pl.db.QueryContext(ctx, `
		SELECT run_id, line, inep_code, name, municipality, category, qid, status, error, created_at
		FROM school_imports
		WHERE run_id = $1
		ORDER BY line, id
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch run: %w", err)
	}
	defer rows.Close()

	var results []*models.ImportResult
	for rows.Next() {
		r := &models.ImportResult{}
		var category, status string
		if err := rows.Scan(
			&r.RunID, &r.Line, &r.INEPCode, &r.Name, &r.Municipality,
			&category, &r.QID, &status, &r.Error, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.Category = models.Category(category)
		r.Status = models.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (pl *PostgresLedger) Close() error {
	return pl.db.Close()
}
