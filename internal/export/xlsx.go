package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/talgya/solarsim/internal/engine"
)

// SeriesSheet is the worksheet WriteXLSX writes the series to.
const SeriesSheet = "series"

// SummarySheet holds population counts by income class and dwelling.
const SummarySheet = "population"

// integerColumns is the number of leading record columns holding counts:
// step, the six adopter counts and total.
const integerColumns = 8

// WriteXLSX writes series, and the population summary when non-nil, to an
// XLSX workbook at path.
func WriteXLSX(path string, series []engine.Record, summary *engine.Summary) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SeriesSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add series sheet")
	}
	header := sheet.AddRow()
	for _, name := range engine.Columns() {
		header.AddCell().SetString(name)
	}
	for _, rec := range series {
		row := sheet.AddRow()
		for i, v := range rec.Values() {
			cell := row.AddCell()
			if i < integerColumns {
				cell.SetInt(int(v))
			} else {
				cell.SetFloat(v)
			}
		}
	}

	if summary != nil {
		pop, err := f.AddSheet(SummarySheet)
		if err != nil {
			return eris.Wrap(err, "xlsx: add population sheet")
		}
		head := pop.AddRow()
		for _, s := range []string{"income", "count", "houses", "apartments"} {
			head.AddCell().SetString(s)
		}
		for _, cls := range []struct {
			name string
			c    engine.ClassCounts
		}{
			{"low", summary.Low},
			{"mid", summary.Mid},
			{"high", summary.High},
		} {
			row := pop.AddRow()
			row.AddCell().SetString(cls.name)
			row.AddCell().SetInt(cls.c.Count)
			row.AddCell().SetInt(cls.c.Houses)
			row.AddCell().SetInt(cls.c.Apartments)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}
