package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escolas-wikidata/metrics"
	"escolas-wikidata/models"
	"escolas-wikidata/wikidata"
)

type fakeChecker struct {
	existing map[string]string
	err      error
	calls    int
}

func (f *fakeChecker) Lookup(_ context.Context, code string) (string, bool, error) {
	f.calls++
	if f.err != nil {
		return "", false, f.err
	}
	qid, ok := f.existing[code]
	return qid, ok, nil
}

type fakeResolver map[string]string

func (f fakeResolver) Resolve(_ context.Context, code string) (string, bool, error) {
	qid, ok := f[code]
	return qid, ok, nil
}

type fakeWriter struct {
	creates      []map[string]string
	statements   []models.Statement
	refs         []models.Reference
	createErrs   []error
	failProperty string
}

func (f *fakeWriter) CreateItem(_ context.Context, _, descriptions map[string]string) (string, error) {
	f.creates = append(f.creates, descriptions)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "Q500", nil
}

func (f *fakeWriter) AddStatement(_ context.Context, _ string, st models.Statement, ref models.Reference) error {
	f.statements = append(f.statements, st)
	f.refs = append(f.refs, ref)
	if st.Property == f.failProperty {
		return errors.New("boom")
	}
	return nil
}

type fakeLedger struct {
	known    map[string]string
	recorded []*models.ImportResult
}

func (f *fakeLedger) Known(_ context.Context, code string) (string, bool, error) {
	qid, ok := f.known[code]
	return qid, ok, nil
}

func (f *fakeLedger) Record(_ context.Context, r *models.ImportResult) error {
	f.recorded = append(f.recorded, r)
	return nil
}

type sliceSource struct {
	rows []*models.RawSchool
	err  error
}

func (s *sliceSource) Next() (*models.RawSchool, error) {
	if len(s.rows) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

func rawRow(line int, code string) *models.RawSchool {
	return &models.RawSchool{
		Line:             line,
		Name:             "ESCOLA DE SAO JOSE",
		INEPCode:         code,
		MunicipalityName: "NATAL",
		MunicipalityCode: "2408102",
		State:            "RN",
		Students:         "120",
		Location:         "1",
		Differentiated:   "0",
		OperatingStatus:  "1",
	}
}

type harness struct {
	checker *fakeChecker
	writer  *fakeWriter
	ledger  *fakeLedger
	metrics *metrics.Metrics
}

func newTestImporter(opts ImportOptions) (*Importer, *harness) {
	h := &harness{
		checker: &fakeChecker{existing: map[string]string{}},
		writer:  &fakeWriter{},
		ledger:  &fakeLedger{known: map[string]string{}},
		metrics: metrics.New(),
	}
	im := NewImporter(opts, ImporterDeps{
		Cleaner:  NewCleaner(newTestLogger()),
		Builder:  NewItemBuilder(testConfig()),
		Checker:  h.checker,
		Resolver: fakeResolver{"2408102": "Q131620"},
		Writer:   h.writer,
		Ledger:   h.ledger,
		Metrics:  h.metrics,
		Logger:   newTestLogger(),
	})
	return im, h
}

func TestProcessExistingSchoolNotCreated(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	h.checker.existing["24012345"] = "Q42"

	res := im.Process(context.Background(), sampleSchool())
	assert.Equal(t, models.StatusExists, res.Status)
	assert.Equal(t, "Q42", res.QID)
	assert.Empty(t, h.writer.creates)
	assert.Empty(t, h.writer.statements)
}

func TestProcessAbsentSchoolCreated(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})

	res := im.Process(context.Background(), sampleSchool())
	require.Equal(t, models.StatusCreated, res.Status, res.Error)
	assert.Equal(t, "Q500", res.QID)
	assert.Len(t, h.writer.creates, 1)
	assert.Equal(t, []string{"P31", "P17", "P131", "P11704", "P912", "P912", "P2196", "P625"}, properties(h.writer.statements))

	for _, ref := range h.writer.refs {
		assert.Equal(t, h.writer.refs[0], ref)
	}
}

func TestProcessLedgerShortCircuits(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	h.ledger.known["24012345"] = "Q77"

	res := im.Process(context.Background(), sampleSchool())
	assert.Equal(t, models.StatusExists, res.Status)
	assert.Equal(t, "Q77", res.QID)
	assert.Zero(t, h.checker.calls)
	assert.Empty(t, h.writer.creates)
}

func TestProcessLabelConflictRetriedOnce(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	conflict := &wikidata.APIError{
		Code: "modification-failed",
		Info: `Item Q1 already has label "Escola de São José" associated with language code pt, using the same description text.`,
	}
	h.writer.createErrs = []error{conflict, nil}

	res := im.Process(context.Background(), sampleSchool())
	require.Equal(t, models.StatusCreated, res.Status, res.Error)
	require.Len(t, h.writer.creates, 2)
	assert.Equal(t, "escola em Natal, RN, Brasil", h.writer.creates[0]["pt"])
	assert.Contains(t, h.writer.creates[1]["pt"], "24012345")
}

func TestProcessLabelConflictTwiceFails(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	conflict := &wikidata.APIError{Code: "modification-failed", Info: "already has label with the same description"}
	h.writer.createErrs = []error{conflict, conflict}

	res := im.Process(context.Background(), sampleSchool())
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Len(t, h.writer.creates, 2)
	assert.Empty(t, h.writer.statements)
}

func TestProcessFailedAttachmentIsPartial(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	h.writer.failProperty = "P2196"

	res := im.Process(context.Background(), sampleSchool())
	assert.Equal(t, models.StatusPartial, res.Status)
	assert.Equal(t, "Q500", res.QID)
	assert.Contains(t, res.Error, "boom")
	assert.Len(t, h.writer.statements, 8, "remaining statements are still attempted")
}

func TestProcessCheckErrorFails(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	h.checker.err = errors.New("wdqs down")

	res := im.Process(context.Background(), sampleSchool())
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "wdqs down")
	assert.Empty(t, h.writer.creates)
}

func TestProcessDryRunPlanned(t *testing.T) {
	im, _ := newTestImporter(ImportOptions{DryRun: true})
	res := im.Process(context.Background(), sampleSchool())
	assert.Equal(t, models.StatusPlanned, res.Status)
}

func TestRunStatuses(t *testing.T) {
	im, h := newTestImporter(ImportOptions{RunID: "run-1", SkipInactive: true})
	h.checker.existing["24000002"] = "Q2"

	inactive := rawRow(5, "24000004")
	inactive.OperatingStatus = "2"
	src := &sliceSource{rows: []*models.RawSchool{
		rawRow(2, "24000001"),
		rawRow(3, "24000002"),
		rawRow(4, "24000001"),
		inactive,
		rawRow(6, "bad"),
	}}

	results, err := im.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, results, 5)

	var statuses []models.Status
	for _, r := range results {
		statuses = append(statuses, r.Status)
		assert.Equal(t, "run-1", r.RunID)
		assert.False(t, r.CreatedAt.IsZero())
	}
	assert.Equal(t, []models.Status{
		models.StatusCreated, models.StatusExists, models.StatusSkipped, models.StatusSkipped, models.StatusFailed,
	}, statuses)

	assert.Len(t, h.ledger.recorded, 5)
	assert.Equal(t, float64(5), testutil.ToFloat64(h.metrics.RowsRead))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.Results.WithLabelValues("skipped")))
}

func TestRunStartAndLimit(t *testing.T) {
	im, _ := newTestImporter(ImportOptions{StartLine: 3, RowLimit: 2})
	src := &sliceSource{rows: []*models.RawSchool{
		rawRow(2, "24000001"),
		rawRow(3, "24000002"),
		rawRow(4, "24000003"),
		rawRow(5, "24000004"),
	}}

	results, err := im.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 3, results[0].Line)
	assert.Equal(t, 4, results[1].Line)
}

func TestRunStopsOnCancel(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := im.Run(ctx, &sliceSource{rows: []*models.RawSchool{rawRow(2, "24000001")}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Empty(t, h.writer.creates)
}

func TestRunReturnsReadError(t *testing.T) {
	im, _ := newTestImporter(ImportOptions{})
	readErr := errors.New("disk gone")

	results, err := im.Run(context.Background(), &sliceSource{rows: []*models.RawSchool{rawRow(2, "24000001")}, err: readErr})
	assert.ErrorIs(t, err, readErr)
	assert.Len(t, results, 1)
}

// stepSource yields a mix of rows and read errors in order.
type stepSource struct {
	steps []step
}

type step struct {
	row *models.RawSchool
	err error
}

func (s *stepSource) Next() (*models.RawSchool, error) {
	if len(s.steps) == 0 {
		return nil, io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.row, st.err
}

func TestRunMalformedRowsBeforeStartIgnored(t *testing.T) {
	im, h := newTestImporter(ImportOptions{StartLine: 4, RowLimit: 2})
	src := &stepSource{steps: []step{
		{err: fmt.Errorf("census: read row: %w", &csv.ParseError{StartLine: 2, Line: 2, Err: csv.ErrQuote})},
		{row: rawRow(3, "24000001")},
		{row: rawRow(4, "24000002")},
		{err: fmt.Errorf("census: read row: %w", &csv.ParseError{StartLine: 5, Line: 5, Err: csv.ErrQuote})},
		{row: rawRow(6, "24000003")},
	}}

	results, err := im.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 4, results[0].Line)
	assert.Equal(t, models.StatusCreated, results[0].Status)
	assert.Equal(t, 5, results[1].Line)
	assert.Equal(t, models.StatusFailed, results[1].Status)
	assert.Len(t, h.ledger.recorded, 2)
}

func TestProcessUncertainCreateFails(t *testing.T) {
	im, h := newTestImporter(ImportOptions{})
	h.writer.createErrs = []error{fmt.Errorf("%w: wbeditentity: http 503", wikidata.ErrUncertainWrite)}

	res := im.Process(context.Background(), sampleSchool())
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Len(t, h.writer.creates, 1)
	assert.Empty(t, h.writer.statements)
}
