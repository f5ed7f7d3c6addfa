package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/faaxis/advisor-calc/internal/engine"
	"github.com/faaxis/advisor-calc/internal/model"
)

func sampleEntries(t *testing.T) []Entry {
	t.Helper()
	advisor := &model.AdvisorInfo{
		AUM:                150_000_000,
		Revenue:            1_200_000,
		FeeBasedPercentage: 90,
		City:               "Charlotte",
		State:              "NC",
	}
	deals := []model.FirmDeal{
		{Key: "ubs", Firm: "UBS", UpfrontMin: 20, UpfrontMax: 25, BackendMin: 10, BackendMax: 15},
		{Key: "rbc", Firm: "RBC", UpfrontMin: 100, UpfrontMax: 150, BackendMin: 50, BackendMax: 100},
	}
	res, err := engine.Compute(advisor, deals, nil, engine.DefaultCoefficients())
	require.NoError(t, err)
	res.OmittedFirms = []string{"Stifel"}

	return []Entry{
		{ID: "adv-1", Advisor: advisor, Results: res},
		{ID: "adv-2", Err: errors.New("invalid input: revenue must be >= 0")},
	}
}

func TestWriteXLSX(t *testing.T) {
	entries := sampleEntries(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(path, entries))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	summary, ok := f.Sheet[SummarySheet]
	require.True(t, ok)
	require.Len(t, summary.Rows, 3)
	assert.Equal(t, "ID", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "adv-1", summary.Rows[1].Cells[0].String())
	assert.Equal(t, "RBC", summary.Rows[1].Cells[4].String())
	total, err := summary.Rows[1].Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, entries[0].Results.Best().TotalDeal, total, 0.5)
	assert.Equal(t, "Stifel", summary.Rows[1].Cells[10].String())
	assert.Equal(t, "adv-2", summary.Rows[2].Cells[0].String())
	assert.Contains(t, summary.Rows[2].Cells[len(summaryHeader)-1].String(), "revenue must be >= 0")

	comparison, ok := f.Sheet[ComparisonSheet]
	require.True(t, ok)
	header := comparison.Rows[0]
	require.Len(t, header.Cells, 5)
	assert.Equal(t, "Current Firm", header.Cells[2].String())
	assert.Equal(t, "RBC Wealth Management", header.Cells[3].String())
	assert.Equal(t, "UBS", header.Cells[4].String())
	assert.Len(t, comparison.Rows, 1+entries[0].Results.Horizon)

	year, err := comparison.Rows[1].Cells[1].Int()
	require.NoError(t, err)
	assert.Equal(t, 1, year)
}

func TestWriteXLSX_BadPath(t *testing.T) {
	err := WriteXLSX(filepath.Join(t.TempDir(), "missing", "out.xlsx"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: save")
}

func TestReadAdvisorsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisors.csv")
	body := "\ufeffid, aum,revenue,feeBasedPercentage,city,state,firms\n" +
		"a1,\"150,000,000\",\"$1,200,000\",90%,Charlotte,NC,UBS;RBC\n" +
		",,,,,,\n" +
		"a2,50000000,400000,60,Austin,TX\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	rows, err := ReadAdvisors(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a1", rows[0]["id"])
	assert.Equal(t, "150,000,000", rows[0]["aum"])
	assert.Equal(t, "UBS;RBC", rows[0]["firms"])
	assert.Equal(t, "", rows[1]["firms"])
	assert.Equal(t, "Austin", rows[1]["city"])
}

func TestReadAdvisorsXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Advisors")
	require.NoError(t, err)
	for _, rec := range [][]string{
		{"id", "revenue", "city", "state"},
		{"a1", "1200000", "Charlotte", "NC"},
		{"", "", "", ""},
		{"a2", "400000", "Austin", "TX"},
	} {
		addStrings(sheet.AddRow(), rec...)
	}
	path := filepath.Join(t.TempDir(), "advisors.xlsx")
	require.NoError(t, f.Save(path))

	rows, err := ReadAdvisors(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"id": "a2", "revenue": "400000", "city": "Austin", "state": "TX"}, rows[1])
}

func TestReadAdvisors_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadAdvisors(filepath.Join(dir, "advisors.json"))
	assert.ErrorContains(t, err, "unsupported input format")

	_, err = ReadAdvisorsCSV(filepath.Join(dir, "missing.csv"))
	assert.ErrorContains(t, err, "open csv")

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadAdvisorsCSV(empty)
	assert.ErrorContains(t, err, "no header row")
}
