package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/entropy"
)

func baseParams() engine.Params {
	p := engine.DefaultParams()
	p.Width, p.Height = 20, 20
	p.Agents = 150
	p.MaxSteps = 4
	return p
}

func TestRunnerOrdersAndSeedsResults(t *testing.T) {
	samples, err := WeightSweep(baseParams(), "income", []float64{0, 3})
	require.NoError(t, err)

	r := Runner{Concurrency: 3, Replicates: 2, BaseSeed: 100, KeepSeries: true}
	results, err := r.Run(context.Background(), samples)
	require.NoError(t, err)
	require.Len(t, results, 4)

	want := []struct {
		sample string
		rep    int
		seed   uint64
	}{
		{"income=0", 0, 100},
		{"income=0", 1, 101},
		{"income=3", 0, 102},
		{"income=3", 1, 103},
	}
	for i, w := range want {
		assert.Equal(t, w.sample, results[i].Sample)
		assert.Equal(t, w.rep, results[i].Replicate)
		assert.Equal(t, w.seed, results[i].Seed)
		assert.Equal(t, 4, results[i].Steps)
		assert.Len(t, results[i].Series, 5)
		assert.Equal(t, 150, results[i].Summary.Total())
	}

	// A strong income effect must not adopt less than none at all.
	assert.GreaterOrEqual(t, results[2].Final.Total, results[0].Final.Total)
}

func TestRunnerIsReproducible(t *testing.T) {
	samples := []Sample{{Name: "base", Params: baseParams()}}
	r := Runner{Concurrency: 2, Replicates: 3, BaseSeed: 7}

	a, err := r.Run(context.Background(), samples)
	require.NoError(t, err)
	b, err := r.Run(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Nil(t, a[0].Series)
}

func TestRunnerStepsOverride(t *testing.T) {
	samples := []Sample{{Name: "base", Params: baseParams()}}
	results, err := Runner{Steps: 2, BaseSeed: 1}.Run(context.Background(), samples)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Steps)
	assert.Equal(t, 2, results[0].Final.Step)
}

func TestRunnerPropagatesFailure(t *testing.T) {
	bad := baseParams()
	bad.Width = 0
	samples := []Sample{{Name: "ok", Params: baseParams()}, {Name: "bad", Params: bad}}

	_, err := Runner{Concurrency: 2, BaseSeed: 1}.Run(context.Background(), samples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidParams))
}

func TestWeightSweepUnknownName(t *testing.T) {
	_, err := WeightSweep(baseParams(), "charisma", []float64{1})
	assert.True(t, errors.Is(err, ErrUnknownWeight))
}

func TestRandomWeightSamples(t *testing.T) {
	samples := RandomWeightSamples(baseParams(), 5, entropy.NewStream(3))
	require.Len(t, samples, 5)
	assert.Equal(t, "mc-000", samples[0].Name)
	for _, s := range samples {
		w := s.Params.Weights
		for _, v := range []float64{w.Income, w.Consciousness, w.Social, w.Stubbornness, w.Education, w.Subsidy, w.Dwelling} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0)
		}
	}
	assert.NotEqual(t, samples[0].Params.Weights, samples[1].Params.Weights)
	assert.Equal(t, agents.DefaultWeights(), baseParams().Weights)
}

func TestAttributeSamples(t *testing.T) {
	base := baseParams()
	samples := AttributeSamples(base, 60, entropy.NewStream(8))
	require.Len(t, samples, 60)
	assert.Equal(t, "attr-000", samples[0].Name)
	assert.Equal(t, "attr-059", samples[59].Name)

	incomes := map[agents.Income]int{}
	subsidized := 0
	for _, s := range samples {
		o := s.Params.Overrides
		require.NotNil(t, o.Income)
		require.NotNil(t, o.Subsidy)
		assert.True(t, o.Income.Valid())
		assert.True(t, o.Education.Valid())
		assert.True(t, o.Dwelling.Valid())
		assert.GreaterOrEqual(t, *o.Consciousness, 0.0)
		assert.LessOrEqual(t, *o.Stubbornness, 1.0)
		assert.Equal(t, base.Weights, s.Params.Weights)
		incomes[*o.Income]++
		if *o.Subsidy {
			subsidized++
		}
	}
	assert.Len(t, incomes, 3)
	assert.Positive(t, subsidized)
	assert.Less(t, subsidized, 60)
	assert.True(t, base.Overrides.IsZero())
}
