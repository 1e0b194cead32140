// Package batch runs many independent city models, for replicates and
// parameter sweeps. Models run concurrently; each one stays single-threaded
// on its own random stream.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/entropy"
	"github.com/talgya/solarsim/internal/world"
)

// ErrUnknownWeight is returned when a sweep names a coefficient that does
// not exist.
var ErrUnknownWeight = eris.New("unknown weight")

// Sample is one parameter set to evaluate.
type Sample struct {
	Name   string        `json:"name"`
	Params engine.Params `json:"params"`
}

// Result is the outcome of one (sample, replicate) run.
type Result struct {
	Sample    string          `json:"sample"`
	Replicate int             `json:"replicate"`
	Seed      uint64          `json:"seed"`
	Steps     int             `json:"steps"`
	Final     engine.Record   `json:"final"`
	Summary   engine.Summary  `json:"summary"`
	Params    engine.Params   `json:"params"`
	Series    []engine.Record `json:"series,omitempty"`
}

// Runner evaluates samples.
type Runner struct {
	Concurrency int    // Parallel models, 0 = 1
	Replicates  int    // Runs per sample, 0 = 1
	Steps       int    // Steps per run, 0 = each sample's MaxSteps
	BaseSeed    uint64 // Seed of run i is BaseSeed+i; 0 draws a random base
	KeepSeries  bool   // Keep every run's full time series
}

// Run evaluates every sample Replicates times. Results are ordered by sample
// then replicate. The first failing run cancels the rest.
func (r Runner) Run(ctx context.Context, samples []Sample) ([]Result, error) {
	replicates := max(r.Replicates, 1)
	concurrency := max(r.Concurrency, 1)

	base := r.BaseSeed
	if base == 0 {
		base = entropy.NewStream(0).Seed()
	}

	total := len(samples) * replicates
	results := make([]Result, total)

	slog.Info("batch started",
		"samples", len(samples),
		"replicates", replicates,
		"runs", total,
		"concurrency", concurrency,
		"base_seed", base,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var done atomic.Int64
	for i, s := range samples {
		for rep := 0; rep < replicates; rep++ {
			idx := i*replicates + rep
			seed := base + uint64(idx)
			g.Go(func() error {
				res, err := r.runOne(gctx, s, rep, seed)
				if err != nil {
					return eris.Wrapf(err, "sample %q replicate %d", s.Name, rep)
				}
				results[idx] = res
				n := done.Add(1)
				slog.Debug("run complete",
					"sample", s.Name,
					"replicate", rep,
					"adoption_rate", res.Final.AdoptionRate,
					"done", n,
				)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch run")
	}

	slog.Info("batch complete", "runs", total)
	return results, nil
}

func (r Runner) runOne(ctx context.Context, s Sample, rep int, seed uint64) (Result, error) {
	p := s.Params
	p.Seed = seed

	m, err := engine.NewCityModel(p, entropy.NewStream(seed))
	if err != nil {
		return Result{}, err
	}

	steps := r.Steps
	if steps <= 0 {
		steps = p.MaxSteps
	}
	n, err := m.Run(ctx, steps)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Sample:    s.Name,
		Replicate: rep,
		Seed:      seed,
		Steps:     n,
		Final:     m.Latest(),
		Summary:   m.Summary(),
		Params:    p,
	}
	if r.KeepSeries {
		res.Series = m.Series()
	}
	return res, nil
}

// WeightNames lists the coefficients a sweep may vary.
var WeightNames = []string{"income", "consciousness", "social", "stubbornness", "education", "subsidy", "dwelling"}

func weightField(w *agents.Weights, name string) (*float64, error) {
	switch name {
	case "income":
		return &w.Income, nil
	case "consciousness":
		return &w.Consciousness, nil
	case "social":
		return &w.Social, nil
	case "stubbornness":
		return &w.Stubbornness, nil
	case "education":
		return &w.Education, nil
	case "subsidy":
		return &w.Subsidy, nil
	case "dwelling":
		return &w.Dwelling, nil
	}
	return nil, eris.Wrapf(ErrUnknownWeight, "%q", name)
}

// WeightSweep returns one sample per value, each equal to base with the
// named coefficient set to that value.
func WeightSweep(base engine.Params, name string, values []float64) ([]Sample, error) {
	out := make([]Sample, 0, len(values))
	for _, v := range values {
		p := base
		f, err := weightField(&p.Weights, name)
		if err != nil {
			return nil, err
		}
		*f = v
		out = append(out, Sample{Name: fmt.Sprintf("%s=%g", name, v), Params: p})
	}
	return out, nil
}

// RandomWeightSamples returns n samples with every coefficient drawn
// uniformly from [0, 1], for Monte Carlo sensitivity screening.
func RandomWeightSamples(base engine.Params, n int, rng *entropy.Stream) []Sample {
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		p := base
		for _, name := range WeightNames {
			f, _ := weightField(&p.Weights, name)
			*f = rng.Float64()
		}
		out = append(out, Sample{Name: fmt.Sprintf("mc-%03d", i), Params: p})
	}
	return out
}

// AttributeSamples returns n samples that each pin one draw of the household
// profile: income, education and dwelling rounded from uniform ranges over
// their codes, attitude means uniform on [0, 1] and subsidy eligibility a
// fair coin.
func AttributeSamples(base engine.Params, n int, rng *entropy.Stream) []Sample {
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		p := base
		income := agents.Income(math.Round(1 + 2*rng.Float64()))
		consciousness := rng.Float64()
		stubbornness := rng.Float64()
		education := agents.Education(math.Round(1 + 2*rng.Float64()))
		dwelling := world.Dwelling(math.Round(1 + rng.Float64()))
		subsidy := math.Round(rng.Float64()) == 1
		p.Overrides = agents.Overrides{
			Income:        &income,
			Education:     &education,
			Dwelling:      &dwelling,
			Consciousness: &consciousness,
			Stubbornness:  &stubbornness,
			Subsidy:       &subsidy,
		}
		out = append(out, Sample{Name: fmt.Sprintf("attr-%03d", i), Params: p})
	}
	return out
}
