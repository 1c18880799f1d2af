package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"escolas-wikidata/models"
	"escolas-wikidata/utils"
)

// maxListed caps the created and failed rows printed in the summary.
const maxListed = 10

type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

func (s *ReportService) Generate(results []*models.ImportResult) *models.ImportReport {
	report := &models.ImportReport{
		ByStatus:       make(map[models.Status]int),
		ByCategory:     make(map[models.Category]int),
		ByMunicipality: make(map[string]int),
	}

	report.TotalRows = len(results)
	for _, r := range results {
		report.ByStatus[r.Status]++

		switch r.Status {
		case models.StatusCreated, models.StatusPlanned, models.StatusPartial:
			report.Created = append(report.Created, r)
			if r.Category != "" {
				report.ByCategory[r.Category]++
			}
			if r.Municipality != "" {
				report.ByMunicipality[r.Municipality]++
			}
		}
		if r.Status == models.StatusFailed || r.Status == models.StatusPartial {
			report.Failures = append(report.Failures, r)
		}
	}

	s.logger.Debug("[report] %d results, %d created, %d failures",
		report.TotalRows, len(report.Created), len(report.Failures))
	return report
}

// Print writes the summary to stdout.
func (s *ReportService) Print(r *models.ImportReport) {
	s.Fprint(os.Stdout, r)
}

func (s *ReportService) Fprint(w io.Writer, r *models.ImportReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏫 CENSO ESCOLAR IMPORT SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rows processed : \033[1m%d\033[0m\n", r.TotalRows)
	for _, st := range []models.Status{
		models.StatusCreated, models.StatusPlanned, models.StatusExists,
		models.StatusPartial, models.StatusSkipped, models.StatusFailed,
	} {
		if n := r.ByStatus[st]; n > 0 {
			fmt.Fprintf(w, "  %-14s : \033[1m%d\033[0m\n", st, n)
		}
	}
	fmt.Fprintln(w)

	// By category
	fmt.Fprintf(w, "\033[1;33m  New Items by Category\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByCategory) == 0 {
		fmt.Fprintf(w, "  No items created\n")
	} else {
		cats := make([]string, 0, len(r.ByCategory))
		for c := range r.ByCategory {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(w, "  %-14s : %d\n", c, r.ByCategory[models.Category(c)])
		}
	}
	fmt.Fprintln(w)

	// Created
	if len(r.Created) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Created Items\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for i, c := range r.Created {
			if i == maxListed {
				fmt.Fprintf(w, "  ... and %d more\n", len(r.Created)-maxListed)
				break
			}
			fmt.Fprintf(w, "  %-12s %s\n", c.QID, truncate(c.Name, 40))
		}
		fmt.Fprintln(w)
	}

	// Municipalities
	fmt.Fprintf(w, "\033[1;33m  New Items by Municipality\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByMunicipality) == 0 {
		fmt.Fprintf(w, "  No municipality data\n")
	} else {
		type munCount struct {
			name  string
			count int
		}
		var muns []munCount
		for name, cnt := range r.ByMunicipality {
			muns = append(muns, munCount{name, cnt})
		}
		sort.Slice(muns, func(i, j int) bool {
			if muns[i].count != muns[j].count {
				return muns[i].count > muns[j].count
			}
			return muns[i].name < muns[j].name
		})
		if len(muns) > maxListed {
			muns = muns[:maxListed]
		}
		for _, mc := range muns {
			bar := strings.Repeat("█", min(mc.count, 30))
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(mc.name, 28), bar, mc.count)
		}
	}
	fmt.Fprintln(w)

	// Failures
	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\033[1;31m  Failures\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for i, f := range r.Failures {
			if i == maxListed {
				fmt.Fprintf(w, "  ... and %d more, see the CSV report\n", len(r.Failures)-maxListed)
				break
			}
			fmt.Fprintf(w, "  line %-7d %-8s %s\n", f.Line, f.Status, truncate(f.Error, 60))
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
