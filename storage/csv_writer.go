package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"escolas-wikidata/models"
)

var csvHeader = []string{
	"run_id", "line", "inep_code", "name", "municipality", "category", "status", "qid", "error", "created_at",
}

// CSVWriter writes one line per import result to a CSV report.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one result and flushes, so an interrupted run keeps every
// line decided so far.
func (c *CSVWriter) Write(r *models.ImportResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		r.RunID,
		strconv.Itoa(r.Line),
		r.INEPCode,
		r.Name,
		r.Municipality,
		string(r.Category),
		string(r.Status),
		r.QID,
		r.Error,
		r.CreatedAt.Format(time.RFC3339),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	return c.file.Close()
}
