package wikidata

import (
	"context"
	"fmt"

	"escolas-wikidata/models"
	"escolas-wikidata/utils"
)

// DryRunWriter logs the edits a real run would make and returns
// placeholder ids instead of calling the API.
type DryRunWriter struct {
	logger *utils.Logger
	items  int
	edits  int
}

// NewDryRunWriter creates a DryRunWriter.
func NewDryRunWriter(logger *utils.Logger) *DryRunWriter {
	return &DryRunWriter{logger: logger}
}

func (d *DryRunWriter) CreateItem(_ context.Context, labels, descriptions map[string]string) (string, error) {
	d.items++
	id := fmt.Sprintf("DRYRUN-%d", d.items)
	d.logger.Info("[dry-run] create %s label(pt)=%q description(pt)=%q", id, labels["pt"], descriptions["pt"])
	return id, nil
}

func (d *DryRunWriter) AddStatement(_ context.Context, qid string, st models.Statement, ref models.Reference) error {
	if _, err := encodeValue(st.Value); err != nil {
		return fmt.Errorf("wikidata: %s: %w", st.Property, err)
	}
	d.edits++
	d.logger.Info("[dry-run] %s %s=%v qualifiers=%d ref=%s,%s",
		qid, st.Property, st.Value, len(st.Qualifiers), ref.Source.Property, ref.AccessDate.Property)
	return nil
}

// Counts returns how many items and statements would have been written.
func (d *DryRunWriter) Counts() (items, statements int) {
	return d.items, d.edits
}
