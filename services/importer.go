package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"escolas-wikidata/metrics"
	"escolas-wikidata/models"
	"escolas-wikidata/utils"
	"escolas-wikidata/wikidata"
)

// RowSource yields raw census rows until io.EOF.
type RowSource interface {
	Next() (*models.RawSchool, error)
}

// SchoolChecker reports whether a school item with the INEP code exists.
type SchoolChecker interface {
	Lookup(ctx context.Context, inepCode string) (qid string, found bool, err error)
}

// MunicipalityResolver maps an IBGE municipality code to its item.
type MunicipalityResolver interface {
	Resolve(ctx context.Context, ibgeCode string) (qid string, found bool, err error)
}

// EntityWriter creates items and attaches statements to them.
type EntityWriter interface {
	CreateItem(ctx context.Context, labels, descriptions map[string]string) (string, error)
	AddStatement(ctx context.Context, qid string, st models.Statement, ref models.Reference) error
}

// Ledger remembers what earlier runs created.
type Ledger interface {
	Known(ctx context.Context, inepCode string) (qid string, found bool, err error)
	Record(ctx context.Context, r *models.ImportResult) error
}

// ResultWriter receives every result as soon as it is decided.
type ResultWriter interface {
	Write(r *models.ImportResult) error
}

// ImportOptions controls which rows are processed.
type ImportOptions struct {
	RunID        string
	SkipInactive bool
	RowLimit     int
	StartLine    int
	DryRun       bool
}

// Importer runs the sequential check-and-create pipeline.
type Importer struct {
	opts     ImportOptions
	cleaner  *Cleaner
	builder  *ItemBuilder
	checker  SchoolChecker
	resolver MunicipalityResolver
	writer   EntityWriter
	ledger   Ledger
	sinks    []ResultWriter
	metrics  *metrics.Metrics
	logger   *utils.Logger
	seen     *utils.CodeSet
}

// ImporterDeps groups the collaborators of an Importer. Resolver and
// Ledger are optional.
type ImporterDeps struct {
	Cleaner  *Cleaner
	Builder  *ItemBuilder
	Checker  SchoolChecker
	Resolver MunicipalityResolver
	Writer   EntityWriter
	Ledger   Ledger
	Sinks    []ResultWriter
	Metrics  *metrics.Metrics
	Logger   *utils.Logger
}

// NewImporter creates an Importer.
func NewImporter(opts ImportOptions, deps ImporterDeps) *Importer {
	return &Importer{
		opts:     opts,
		cleaner:  deps.Cleaner,
		builder:  deps.Builder,
		checker:  deps.Checker,
		resolver: deps.Resolver,
		writer:   deps.Writer,
		ledger:   deps.Ledger,
		sinks:    deps.Sinks,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		seen:     utils.NewCodeSet(),
	}
}

// Run reads src to the end, processing one school at a time. It returns
// the results gathered so far together with ctx.Err() when cancelled, or
// with the read error when the source cannot be read any further.
func (im *Importer) Run(ctx context.Context, src RowSource) ([]*models.ImportResult, error) {
	var results []*models.ImportResult
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			im.logger.Warn("[importer] Stopping after %d rows: %v", processed, err)
			return results, err
		}
		if im.opts.RowLimit > 0 && processed >= im.opts.RowLimit {
			im.logger.Info("[importer] Row limit %d reached", im.opts.RowLimit)
			return results, nil
		}

		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			return results, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return results, err
			}
			im.metrics.RowsRead.Inc()
			if parseErr.StartLine < im.opts.StartLine {
				continue
			}
			processed++
			results = append(results, im.finish(ctx, &models.ImportResult{
				Line:   parseErr.StartLine,
				Status: models.StatusFailed,
				Error:  err.Error(),
			}))
			continue
		}
		im.metrics.RowsRead.Inc()

		if raw.Line < im.opts.StartLine {
			continue
		}
		processed++
		results = append(results, im.finish(ctx, im.processRow(ctx, raw)))
	}
}

func (im *Importer) processRow(ctx context.Context, raw *models.RawSchool) *models.ImportResult {
	school, err := im.cleaner.Clean(raw)
	if err != nil {
		return &models.ImportResult{
			Line:     raw.Line,
			INEPCode: raw.INEPCode,
			Name:     raw.Name,
			Status:   models.StatusFailed,
			Error:    err.Error(),
		}
	}
	return im.Process(ctx, school)
}

// Process decides the outcome for one cleaned school and performs the
// writes when the school is absent.
func (im *Importer) Process(ctx context.Context, s *models.School) *models.ImportResult {
	res := &models.ImportResult{
		Line:         s.Line,
		INEPCode:     s.INEPCode,
		Name:         s.Name,
		Municipality: s.MunicipalityName,
		Category:     s.Category,
	}

	if im.opts.SkipInactive && !s.Active {
		return skip(res, "school not in operation")
	}
	if !im.seen.Add(s.INEPCode) {
		return skip(res, "duplicate INEP code in source")
	}

	if im.ledger != nil {
		qid, found, err := im.ledger.Known(ctx, s.INEPCode)
		if err != nil {
			im.logger.Warn("[importer] Ledger lookup for %s failed: %v", s.INEPCode, err)
		} else if found {
			res.QID, res.Status = qid, models.StatusExists
			return res
		}
	}

	qid, found, err := im.checker.Lookup(ctx, s.INEPCode)
	if err != nil {
		return fail(res, fmt.Errorf("existence check: %w", err))
	}
	if found {
		im.logger.Debug("[importer] %s already on Wikidata as %s", s.INEPCode, qid)
		res.QID, res.Status = qid, models.StatusExists
		return res
	}

	draft := im.builder.Build(s, im.municipality(ctx, s))

	qid, err = im.writer.CreateItem(ctx, draft.Labels, draft.Descriptions)
	var apiErr *wikidata.APIError
	if errors.As(err, &apiErr) && apiErr.IsLabelConflict() {
		im.logger.Info("[importer] Label conflict for %s, retrying with INEP code in description", s.INEPCode)
		draft = im.builder.Disambiguate(draft, s.INEPCode)
		qid, err = im.writer.CreateItem(ctx, draft.Labels, draft.Descriptions)
	}
	if err != nil {
		if errors.Is(err, wikidata.ErrUncertainWrite) {
			im.logger.Error("[importer] Creation of %s may have been applied, check Wikidata before rerunning: %v", s.INEPCode, err)
		}
		return fail(res, fmt.Errorf("create item: %w", err))
	}
	res.QID = qid

	var attachErrs []error
	for _, st := range draft.Statements {
		if err := im.writer.AddStatement(ctx, qid, st, draft.Reference); err != nil {
			attachErrs = append(attachErrs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	if len(attachErrs) > 0 {
		res.Status = models.StatusPartial
		res.Error = errors.Join(attachErrs...).Error()
		im.logger.Error("[importer] %s created as %s with %d failed statements", s.INEPCode, qid, len(attachErrs))
		return res
	}

	res.Status = models.StatusCreated
	if im.opts.DryRun {
		res.Status = models.StatusPlanned
	}
	im.logger.Info("[importer] %s %s -> %s", res.Status, s.Name, qid)
	return res
}

// municipality resolves the "located in" item; failures only drop the statement.
func (im *Importer) municipality(ctx context.Context, s *models.School) string {
	if im.resolver == nil || s.MunicipalityCode == "" {
		return ""
	}
	qid, found, err := im.resolver.Resolve(ctx, s.MunicipalityCode)
	if err != nil {
		im.logger.Warn("[importer] Municipality %s unresolved: %v", s.MunicipalityCode, err)
		return ""
	}
	if !found {
		im.logger.Debug("[importer] No item for municipality %s", s.MunicipalityCode)
		return ""
	}
	return qid
}

// finish stamps the result and hands it to the ledger, sinks and metrics.
func (im *Importer) finish(ctx context.Context, res *models.ImportResult) *models.ImportResult {
	res.RunID = im.opts.RunID
	res.CreatedAt = time.Now().UTC()
	if res.Status == models.StatusFailed {
		im.logger.Warn("[importer] Line %d failed: %s", res.Line, res.Error)
	}

	if im.ledger != nil {
		if err := im.ledger.Record(ctx, res); err != nil {
			im.logger.Error("[importer] Ledger write for line %d failed: %v", res.Line, err)
		}
	}
	for _, sink := range im.sinks {
		if err := sink.Write(res); err != nil {
			im.logger.Error("[importer] Result write for line %d failed: %v", res.Line, err)
		}
	}
	im.metrics.ObserveResult(string(res.Status))
	return res
}

func skip(res *models.ImportResult, reason string) *models.ImportResult {
	res.Status = models.StatusSkipped
	res.Error = reason
	return res
}

func fail(res *models.ImportResult, err error) *models.ImportResult {
	res.Status = models.StatusFailed
	res.Error = err.Error()
	return res
}
