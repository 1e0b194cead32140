package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/batch"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/persistence"
)

func comma(n int) string {
	return humanize.Comma(int64(n))
}

// printSummary writes the final state of a run as a per-class table.
func printSummary(w io.Writer, m *engine.CityModel, elapsed time.Duration) {
	final := m.Latest()
	summary := m.Summary()
	gen := m.Generation()

	fmt.Fprintf(w, "city %dx%d, %s households (%s), seed %d\n",
		m.Params().Width, m.Params().Height, comma(summary.Total()), m.Params().Mode, m.Seed())
	fmt.Fprintf(w, "generation: %s placed from %s candidates, %s discarded\n",
		comma(gen.Placed), comma(gen.Candidates), comma(gen.Discarded))
	fmt.Fprintf(w, "%s steps in %s\n\n", comma(m.Timestep()), elapsed.Round(time.Millisecond))

	adopters := [3][2]int{
		{final.LowHouse, final.LowApartment},
		{final.MidHouse, final.MidApartment},
		{final.HighHouse, final.HighApartment},
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tHOUSEHOLDS\tHOUSES\tAPARTMENTS\tADOPTERS\tRATE")
	for i, inc := range agents.Incomes {
		c := summary.Class(inc)
		n := adopters[i][0] + adopters[i][1]
		rate := 0.0
		if c.Count > 0 {
			rate = float64(n) / float64(c.Count)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f%%\n",
			inc, comma(c.Count), comma(c.Houses), comma(c.Apartments), comma(n), rate*100)
	}
	tw.Flush() //nolint:errcheck

	fmt.Fprintf(w, "\nadoption %.1f%%  clustering %.3f  moran's I %.3f  between-class gini %.3f\n",
		final.AdoptionRate*100, final.Clustering, final.MoransI, final.Gini)
}

// printResults writes one row per batch run.
func printResults(w io.Writer, results []batch.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SAMPLE\tREP\tSEED\tSTEPS\tADOPTERS\tRATE\tCLUSTERING\tMORAN\tGINI")
	for _, r := range results {
		f := r.Final
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%.3f\t%.3f\t%.3f\t%.3f\n",
			r.Sample, r.Replicate, r.Seed, r.Steps, comma(f.Total),
			f.AdoptionRate, f.Clustering, f.MoransI, f.Gini)
	}
	tw.Flush() //nolint:errcheck
}

// formatRunsList writes stored runs newest first.
func formatRunsList(w io.Writer, runs []persistence.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tCREATED\tSTEPS\tHOUSEHOLDS\tSEED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\n",
			r.ID, r.Label, humanize.Time(r.CreatedAt), r.Steps, comma(r.Summary.Total()), r.Seed)
	}
	tw.Flush() //nolint:errcheck
}
