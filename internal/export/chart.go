package export

import (
	"fmt"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/talgya/solarsim/internal/engine"
)

// ErrUnknownColumn is returned when a chart names a column records lack.
var ErrUnknownColumn = eris.New("unknown record column")

// DefaultChartColumns are the emergence metrics plotted when no columns are
// given.
var DefaultChartColumns = []string{"adoption_rate", "clustering", "morans_i", "between_class_gini"}

var palette = []drawing.Color{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

// ChartOptions sizes and labels a rendered chart.
type ChartOptions struct {
	Title  string
	Width  int // 0 = 1024
	Height int // 0 = 512
}

// RenderChart draws the given columns of series against step as a PNG line
// chart.
func RenderChart(w io.Writer, series []engine.Record, opts ChartOptions, columns ...string) error {
	if len(series) == 0 {
		return eris.New("chart: empty series")
	}
	if len(columns) == 0 {
		columns = DefaultChartColumns
	}

	index := make(map[string]int)
	for i, name := range engine.Columns() {
		index[name] = i
	}

	xs := make([]float64, len(series))
	for i, rec := range series {
		xs[i] = float64(rec.Step)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	lines := make([]chart.Series, 0, len(columns))
	for n, col := range columns {
		idx, ok := index[col]
		if !ok {
			return eris.Wrapf(ErrUnknownColumn, "%q", col)
		}
		ys := make([]float64, len(series))
		for i, rec := range series {
			ys[i] = rec.Values()[idx]
			lo = math.Min(lo, ys[i])
			hi = math.Max(hi, ys[i])
		}
		lines = append(lines, chart.ContinuousSeries{
			Name:    col,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: palette[n%len(palette)],
				StrokeWidth: 2.0,
			},
		})
	}

	// go-chart rejects zero-width ranges, which a flat or one-point series
	// would otherwise produce.
	if hi-lo < 1e-9 {
		hi = lo + 1
	}
	xMax := xs[len(xs)-1]
	if xMax <= xs[0] {
		xMax = xs[0] + 1
	}

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  orDefault(opts.Width, 1024),
		Height: orDefault(opts.Height, 512),
		XAxis: chart.XAxis{
			Name:  "step",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: xs[0], Max: xMax},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: lines,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return eris.Wrap(err, "chart: render")
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
