package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escolas-wikidata/models"
)

func TestCSVWriterWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	at := time.Date(2023, 2, 8, 10, 30, 0, 0, time.UTC)
	require.NoError(t, w.Write(&models.ImportResult{
		RunID: "6f1c2f7e-3b8e-4c1a-9a53-0a4f6f0e7b11", Line: 2, INEPCode: "24012345",
		Name: "Escola de São José", Municipality: "Natal", Category: models.CategoryUrban,
		Status: models.StatusCreated, QID: "Q500", CreatedAt: at,
	}))
	require.NoError(t, w.Write(&models.ImportResult{
		Line: 3, Status: models.StatusFailed, Error: `line 3: invalid INEP code: "x;y"`, CreatedAt: at,
	}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"6f1c2f7e-3b8e-4c1a-9a53-0a4f6f0e7b11", "2", "24012345", "Escola de São José", "Natal",
		"urban", "created", "Q500", "", "2023-02-08T10:30:00Z",
	}, rows[1])
	assert.Equal(t, `line 3: invalid INEP code: "x;y"`, rows[2][8])
}

func TestCSVWriterFlushesEachRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Write(&models.ImportResult{Line: 2, Status: models.StatusSkipped}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "skipped")
}

func TestCSVWriterBadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewCSVWriter(filepath.Join(blocker, "results.csv"))
	assert.Error(t, err)
}
