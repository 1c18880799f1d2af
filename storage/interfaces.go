package storage

import (
	"context"

	"escolas-wikidata/models"
)

// ResultWriter is the interface any result sink must satisfy.
type ResultWriter interface {
	Write(r *models.ImportResult) error
	Close() error
}

// RunLedger persists results across runs so that schools created earlier
// are not created again while the query service lags behind.
type RunLedger interface {
	Known(ctx context.Context, inepCode string) (qid string, found bool, err error)
	Record(ctx context.Context, r *models.ImportResult) error
	FetchRun(ctx context.Context, runID string) ([]*models.ImportResult, error)
	Close() error
}

var (
	_ ResultWriter = (*CSVWriter)(nil)
	_ RunLedger    = (*PostgresLedger)(nil)
)
