package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.RowsRead.Inc()
	m.ObserveResult("created")
	m.ObserveResult("created")
	m.ObserveAPICall("wbeditentity", nil)
	m.ObserveAPICall("wbeditentity", errors.New("boom"))
	m.ObserveQuery("school-by-inep", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsRead))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Results.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APICalls.WithLabelValues("wbeditentity", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APICalls.WithLabelValues("wbeditentity", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryCalls.WithLabelValues("school-by-inep", "ok")))
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveResult("exists")

	path := filepath.Join(t.TempDir(), "escolas.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `escolas_import_results_total{status="exists"} 1`)
}
