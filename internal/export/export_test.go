package export

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/talgya/solarsim/internal/engine"
)

func series() []engine.Record {
	return []engine.Record{
		{Step: 0},
		{Step: 1, LowHouse: 2, MidApartment: 1, Total: 3, AdoptionRate: 0.03, Clustering: 0.25, MoransI: 0.1, Gini: 0.5},
		{Step: 2, LowHouse: 3, HighHouse: 5, Total: 8, AdoptionRate: 0.08, Clustering: 0.4, MoransI: 0.2, Gini: 0.2},
	}
}

func TestCSVRoundTripThroughCompressedFiles(t *testing.T) {
	for _, name := range []string{"series.csv", "series.csv.gz", "nested/series.csv.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			w, err := Create(path)
			require.NoError(t, err)
			require.NoError(t, WriteCSV(w, series()))
			require.NoError(t, w.Close())

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()

			rows, err := ReadCSV(r)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			for i, rec := range series() {
				assert.Equal(t, rec.Map(), rows[i])
			}
		})
	}
}

func TestWriteCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t,
		"step,low_house,low_apartment,mid_house,mid_apartment,high_house,high_apartment,total,adoption_rate,clustering,morans_i,between_class_gini\n",
		buf.String())
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.xlsx")
	summary := engine.Summary{
		Low:  engine.ClassCounts{Count: 10, Houses: 2, Apartments: 8},
		High: engine.ClassCounts{Count: 4, Houses: 3, Apartments: 1},
	}
	require.NoError(t, WriteXLSX(path, series(), &summary))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet, ok := f.Sheet[SeriesSheet]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "step", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "between_class_gini", sheet.Rows[0].Cells[11].String())

	total, err := sheet.Rows[3].Cells[7].Int()
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	rate, err := sheet.Rows[2].Cells[8].Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.03, rate, 1e-12)

	pop, ok := f.Sheet[SummarySheet]
	require.True(t, ok)
	require.Len(t, pop.Rows, 4)
	assert.Equal(t, "low", pop.Rows[1].Cells[0].String())
	count, err := pop.Rows[1].Cells[1].Int()
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestRenderChartProducesPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, series(), ChartOptions{Title: "adoption", Width: 400, Height: 300}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestRenderChartFlatSeries(t *testing.T) {
	flat := []engine.Record{{Step: 0}}
	assert.NoError(t, RenderChart(io.Discard, flat, ChartOptions{}, "total"))
}

func TestRenderChartErrors(t *testing.T) {
	err := RenderChart(io.Discard, series(), ChartOptions{}, "sunshine")
	assert.True(t, errors.Is(err, ErrUnknownColumn))

	assert.Error(t, RenderChart(io.Discard, nil, ChartOptions{}))
}
