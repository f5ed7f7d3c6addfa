// Package export reads batch advisor input and writes projection results
// as spreadsheets.
package export

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/faaxis/advisor-calc/internal/engine"
	"github.com/faaxis/advisor-calc/internal/firm"
	"github.com/faaxis/advisor-calc/internal/model"
)

// Sheet names written by WriteXLSX.
const (
	SummarySheet    = "Summary"
	ComparisonSheet = "Comparison"
)

// Entry is one advisor's projection, or the error that prevented it.
type Entry struct {
	ID      string
	Advisor *model.AdvisorInfo
	Results *model.CalculatorResults
	Err     error
}

var summaryHeader = []string{
	"ID", "City", "State", "Revenue", "Best Firm", "Total Deal", "Upfront", "Backend",
	"Comp Delta", "Horizon", "Omitted Firms", "Error",
}

// WriteXLSX writes a Summary sheet with one row per entry and a Comparison
// sheet with the cumulative series of every successful entry.
func WriteXLSX(path string, entries []Entry) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addStrings(summary.AddRow(), summaryHeader...)
	for _, e := range entries {
		writeSummaryRow(summary.AddRow(), e)
	}

	comparison, err := f.AddSheet(ComparisonSheet)
	if err != nil {
		return eris.Wrap(err, "export: add comparison sheet")
	}
	keys := seriesKeys(entries)
	header := comparison.AddRow()
	addStrings(header, "ID", "Year")
	for _, k := range keys {
		addStrings(header, seriesLabel(k))
	}
	for _, e := range entries {
		if e.Results == nil {
			continue
		}
		for _, point := range e.Results.ComparisonData {
			row := comparison.AddRow()
			addStrings(row, e.ID)
			row.AddCell().SetInt(point.Year)
			for _, k := range keys {
				v, ok := point.Values[k]
				if !ok {
					row.AddCell()
					continue
				}
				row.AddCell().SetFloat(v)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func writeSummaryRow(row *xlsx.Row, e Entry) {
	addStrings(row, e.ID)
	if e.Advisor != nil {
		addStrings(row, e.Advisor.City, e.Advisor.State)
		row.AddCell().SetFloat(e.Advisor.Revenue)
	} else {
		addStrings(row, "", "")
		row.AddCell()
	}

	if e.Results == nil {
		addStrings(row, "", "", "", "", "", "", "")
		addStrings(row, errText(e.Err))
		return
	}

	res := e.Results
	if best := res.Best(); best != nil {
		addStrings(row, best.Firm)
		row.AddCell().SetFloat(best.TotalDeal)
		row.AddCell().SetFloat(best.Upfront)
		row.AddCell().SetFloat(best.Backend)
	} else {
		addStrings(row, "", "", "", "")
	}
	row.AddCell().SetFloat(res.Metrics.TotalCompDelta.Value)
	row.AddCell().SetInt(res.Horizon)
	addStrings(row, strings.Join(res.OmittedFirms, "; "), errText(e.Err))
}

// seriesKeys lists the baseline first, then every firm key in sorted order.
func seriesKeys(entries []Entry) []string {
	set := make(map[string]bool)
	for _, e := range entries {
		if e.Results == nil {
			continue
		}
		for _, point := range e.Results.ComparisonData {
			for k := range point.Values {
				if k != engine.BaselineKey {
					set[k] = true
				}
			}
		}
	}
	keys := make([]string, 0, len(set)+1)
	keys = append(keys, engine.BaselineKey)
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys[1:])
	return keys
}

func seriesLabel(key string) string {
	if key == engine.BaselineKey {
		return "Current Firm"
	}
	return firm.DisplayName(key)
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
