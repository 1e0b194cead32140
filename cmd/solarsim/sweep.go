package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/talgya/solarsim/internal/batch"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/entropy"
	"github.com/talgya/solarsim/internal/export"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run many cities across a range of behavior weights",
	Long: "Runs one sample per value of a single weight (--weight/--values), per random draw of " +
		"all weights (--random) or per random household profile (--attributes), each replicated " +
		"with consecutive seeds, in parallel.",
	Example: `  solarsim sweep --weight social --values 0,0.25,0.5,1 --replicates 5 --steps 100
  solarsim sweep --random 50 --agents 2000 --json out/mc.json.gz
  solarsim sweep --attributes 64 --mode uniform --replicates 3`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		base, err := modelParams(cmd)
		if err != nil {
			return err
		}

		samples, err := sweepSamples(cmd, base)
		if err != nil {
			return err
		}

		runner := batch.Runner{
			Concurrency: cfg.Batch.Concurrency,
			Replicates:  cfg.Batch.Replicates,
			BaseSeed:    base.Seed,
		}
		if cmd.Flags().Changed("replicates") {
			runner.Replicates, _ = cmd.Flags().GetInt("replicates")
		}
		if cmd.Flags().Changed("concurrency") {
			runner.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}

		jsonPath, _ := cmd.Flags().GetString("json")
		runner.KeepSeries = jsonPath != ""

		results, err := runner.Run(cmd.Context(), samples)
		if err != nil {
			return err
		}

		printResults(os.Stdout, results)

		if jsonPath != "" {
			return writeResults(jsonPath, results)
		}
		return nil
	},
}

func init() {
	addModelFlags(sweepCmd)
	sweepCmd.Flags().String("weight", "", "weight to vary: one of income, consciousness, social, stubbornness, education, subsidy, dwelling")
	sweepCmd.Flags().Float64Slice("values", nil, "values for --weight")
	sweepCmd.Flags().Int("random", 0, "number of samples with every weight drawn uniformly from [0,1]")
	sweepCmd.Flags().Int("attributes", 0, "number of samples each pinning a random household profile")
	sweepCmd.Flags().Int("replicates", 1, "runs per sample (overrides batch.replicates)")
	sweepCmd.Flags().Int("concurrency", 4, "parallel runs (overrides batch.concurrency)")
	sweepCmd.Flags().String("json", "", "write every result with its time series as JSON (.gz/.zst compress)")
	rootCmd.AddCommand(sweepCmd)
}

func sweepSamples(cmd *cobra.Command, base engine.Params) ([]batch.Sample, error) {
	weight, _ := cmd.Flags().GetString("weight")
	values, _ := cmd.Flags().GetFloat64Slice("values")
	random, _ := cmd.Flags().GetInt("random")
	attributes, _ := cmd.Flags().GetInt("attributes")

	modes := 0
	for _, set := range []bool{weight != "", random > 0, attributes > 0} {
		if set {
			modes++
		}
	}

	switch {
	case modes > 1:
		return nil, eris.New("--weight, --random and --attributes are mutually exclusive")
	case weight != "":
		if len(values) == 0 {
			return nil, eris.New("--weight needs --values")
		}
		return batch.WeightSweep(base, weight, values)
	case random > 0:
		return batch.RandomWeightSamples(base, random, entropy.NewStream(base.Seed)), nil
	case attributes > 0:
		return batch.AttributeSamples(base, attributes, entropy.NewStream(base.Seed)), nil
	default:
		return []batch.Sample{{Name: "base", Params: base}}, nil
	}
}

func writeResults(path string, results []batch.Result) error {
	f, err := export.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "encode %s", path)
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}
