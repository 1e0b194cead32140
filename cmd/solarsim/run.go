package main

import (
	"maps"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/export"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one city to completion and export its time series",
	Example: `  solarsim run --steps 100 --seed 7 --csv out/series.csv.gz --chart out/adoption.png
  solarsim run --mode uniform --no-subsidy --save --label baseline
  solarsim run --fix dwelling=apartment --fix income=low --save`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := modelParams(cmd)
		if err != nil {
			return err
		}

		start := time.Now()
		m, err := engine.NewCityModel(p, nil)
		if err != nil {
			return eris.Wrap(err, "build city")
		}

		steps, err := m.Run(cmd.Context(), p.MaxSteps)
		if err != nil {
			return eris.Wrapf(err, "run stopped after %d steps", steps)
		}

		var out outputs
		out.CSV, _ = cmd.Flags().GetString("csv")
		out.XLSX, _ = cmd.Flags().GetString("xlsx")
		out.Chart, _ = cmd.Flags().GetString("chart")
		if err := out.write(m.Series(), m.Summary()); err != nil {
			return err
		}

		printSummary(os.Stdout, m, time.Since(start))

		if save, _ := cmd.Flags().GetBool("save"); save {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			label, _ := cmd.Flags().GetString("label")
			id, err := db.SaveModel(m, label)
			if err != nil {
				return eris.Wrap(err, "save run")
			}
			cmd.Printf("saved run %s\n", id)
		}
		return nil
	},
}

func init() {
	addModelFlags(runCmd)
	runCmd.Flags().String("csv", "", "write the time series as CSV (.gz/.zst compress)")
	runCmd.Flags().String("xlsx", "", "write the time series and population as an XLSX workbook")
	runCmd.Flags().String("chart", "", "render the emergence metrics as a PNG chart")
	runCmd.Flags().Bool("save", false, "store the run in the database")
	runCmd.Flags().String("label", "run", "label for the stored run")
	rootCmd.AddCommand(runCmd)
}

// addModelFlags registers the flags that override the model config section.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Int("steps", 0, "number of steps (overrides model.max_steps)")
	cmd.Flags().Uint64("seed", 0, "random seed, 0 = random (overrides model.seed)")
	cmd.Flags().Int("agents", 0, "number of households (overrides model.agents)")
	cmd.Flags().String("mode", "", "generation mode: zoned or uniform (overrides model.mode)")
	cmd.Flags().Bool("no-subsidy", false, "disable the subsidy")
	cmd.Flags().String("zoning", "", "YAML zoning file (overrides model.zoning_file)")
	cmd.Flags().StringToString("fix", nil, "pin household attributes ("+strings.Join(agents.OverrideNames, ", ")+
		"), e.g. --fix dwelling=apartment,subsidy=1 (merged over model.overrides)")
}

// modelParams builds engine parameters from the config plus any model flags
// the user set explicitly.
func modelParams(cmd *cobra.Command) (engine.Params, error) {
	c := *cfg
	flags := cmd.Flags()

	if flags.Changed("steps") {
		c.Model.MaxSteps, _ = flags.GetInt("steps")
	}
	if flags.Changed("seed") {
		c.Model.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("agents") {
		c.Model.Agents, _ = flags.GetInt("agents")
	}
	if flags.Changed("mode") {
		c.Model.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("zoning") {
		c.Model.ZoningFile, _ = flags.GetString("zoning")
	}
	if off, _ := flags.GetBool("no-subsidy"); off {
		c.Model.Subsidy = false
	}
	if flags.Changed("fix") {
		fixed, _ := flags.GetStringToString("fix")
		c.Model.Overrides = maps.Clone(c.Model.Overrides)
		if c.Model.Overrides == nil {
			c.Model.Overrides = make(map[string]string, len(fixed))
		}
		maps.Copy(c.Model.Overrides, fixed)
	}
	return c.Params()
}

// outputs names the files a finished run is exported to. Empty paths are
// skipped.
type outputs struct {
	CSV   string
	XLSX  string
	Chart string
}

func (o outputs) write(series []engine.Record, summary engine.Summary) error {
	if o.CSV != "" {
		f, err := export.Create(o.CSV)
		if err != nil {
			return err
		}
		if err := export.WriteCSV(f, series); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", o.CSV)
		}
	}

	if o.XLSX != "" {
		if err := export.WriteXLSX(o.XLSX, series, &summary); err != nil {
			return err
		}
	}

	if o.Chart != "" {
		f, err := export.Create(o.Chart)
		if err != nil {
			return err
		}
		opts := export.ChartOptions{Title: "Solar adoption"}
		if err := export.RenderChart(f, series, opts); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", o.Chart)
		}
	}
	return nil
}
