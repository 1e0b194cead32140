package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored runs",
	Long:  "Commands for listing, viewing, exporting and deleting runs saved with --save or by serve.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := db.ListRuns(limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's parameters and final record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		run, err := db.LoadRun(args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		series, err := db.LoadSeries(args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		out := map[string]any{"run": run}
		if len(series) > 0 {
			out["final"] = series[len(series)-1]
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run's time series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		run, err := db.LoadRun(args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}
		series, err := db.LoadSeries(args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}

		var out outputs
		out.CSV, _ = cmd.Flags().GetString("csv")
		out.XLSX, _ = cmd.Flags().GetString("xlsx")
		out.Chart, _ = cmd.Flags().GetString("chart")
		if out == (outputs{}) {
			return eris.New("nothing to export: pass --csv, --xlsx or --chart")
		}
		return out.write(series, run.Summary)
	},
}

// -- runs delete --

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run and its series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		if err := db.DeleteRun(args[0]); err != nil {
			return eris.Wrap(err, "runs delete")
		}
		cmd.Printf("deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum runs to list, 0 = all")
	runsExportCmd.Flags().String("csv", "", "write the time series as CSV (.gz/.zst compress)")
	runsExportCmd.Flags().String("xlsx", "", "write the time series and population as an XLSX workbook")
	runsExportCmd.Flags().String("chart", "", "render the emergence metrics as a PNG chart")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsExportCmd, runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
