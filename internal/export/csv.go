package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/talgya/solarsim/internal/engine"
)

// WriteCSV writes series as CSV with a header of record column names.
func WriteCSV(w io.Writer, series []engine.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(engine.Columns()); err != nil {
		return eris.Wrap(err, "csv header")
	}

	row := make([]string, len(engine.Columns()))
	for _, rec := range series {
		for i, v := range rec.Values() {
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "csv step %d", rec.Step)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv flush")
}

// ReadCSV parses CSV produced by WriteCSV into rows keyed by column name.
func ReadCSV(r io.Reader) ([]map[string]float64, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv read")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	out := make([]map[string]float64, 0, len(rows)-1)
	for n, row := range rows[1:] {
		m := make(map[string]float64, len(header))
		for i, name := range header {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "csv row %d column %s", n+1, name)
			}
			m[name] = v
		}
		out = append(out, m)
	}
	return out, nil
}
