package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/world"
)

func household(t *testing.T, id int, inc agents.Income, c world.Coord, adopted bool) *agents.Household {
	t.Helper()
	h := &agents.Household{ID: agents.HouseholdID(id), Income: inc, Type: world.DwellingHouse}
	require.NoError(t, h.Place(c))
	if adopted {
		h.Adopt()
	}
	return h
}

func TestGiniBoundaries(t *testing.T) {
	assert.InDelta(t, 2.0/3, Gini([]float64{1, 0, 0}), 1e-12)
	assert.InDelta(t, 0.0, Gini([]float64{0.4, 0.4, 0.4}), 1e-12)
	assert.Zero(t, Gini([]float64{0, 0, 0}))
	assert.Zero(t, Gini(nil))
}

func TestGiniIgnoresInputOrder(t *testing.T) {
	a := Gini([]float64{0.1, 0.5, 0.2})
	b := Gini([]float64{0.5, 0.2, 0.1})
	assert.InDelta(t, a, b, 1e-12)
	assert.Greater(t, a, 0.0)
	assert.Less(t, a, 1.0)
}

func TestGlobalAdoption(t *testing.T) {
	assert.Zero(t, GlobalAdoption(nil))

	hs := []*agents.Household{
		household(t, 0, agents.IncomeLow, world.Coord{X: 0, Y: 0}, true),
		household(t, 1, agents.IncomeLow, world.Coord{X: 1, Y: 0}, false),
		household(t, 2, agents.IncomeMid, world.Coord{X: 2, Y: 0}, false),
		household(t, 3, agents.IncomeHigh, world.Coord{X: 3, Y: 0}, true),
	}
	assert.InDelta(t, 0.5, GlobalAdoption(hs), 1e-12)
}

func TestClusteringScore(t *testing.T) {
	g, err := world.NewGrid[*agents.Household](5, 5)
	require.NoError(t, err)

	hs := []*agents.Household{
		household(t, 0, agents.IncomeLow, world.Coord{X: 0, Y: 0}, true),
		household(t, 1, agents.IncomeLow, world.Coord{X: 0, Y: 1}, true),
		household(t, 2, agents.IncomeLow, world.Coord{X: 1, Y: 2}, false),
		// Isolated adopter: no neighbors, excluded from the average.
		household(t, 3, agents.IncomeLow, world.Coord{X: 4, Y: 4}, true),
	}
	for _, h := range hs {
		pos, _ := h.Position()
		require.NoError(t, g.Place(h, pos))
	}

	score, err := ClusteringScore(g, hs)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, score, 1e-12)
}

func TestClusteringScoreWithoutAdopters(t *testing.T) {
	g, err := world.NewGrid[*agents.Household](3, 3)
	require.NoError(t, err)
	h := household(t, 0, agents.IncomeLow, world.Coord{X: 1, Y: 1}, false)
	require.NoError(t, g.Place(h, world.Coord{X: 1, Y: 1}))

	score, err := ClusteringScore(g, []*agents.Household{h})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestClusteringScoreMatchesNeighborAdoption(t *testing.T) {
	g, err := world.NewGrid[*agents.Household](4, 4)
	require.NoError(t, err)

	var hs []*agents.Household
	for i, adopted := range []bool{true, true, false} {
		h := &agents.Household{ID: agents.HouseholdID(i), Income: agents.IncomeMid, Type: world.DwellingApartment}
		if adopted {
			h.Adopt()
		}
		hs = append(hs, h)
	}
	hs = append(hs, household(t, 3, agents.IncomeHigh, world.Coord{X: 2, Y: 1}, true))
	for i, h := range hs {
		c := world.Coord{X: 1, Y: 1}
		if i == 3 {
			c = world.Coord{X: 2, Y: 1}
		} else {
			require.NoError(t, h.Place(c))
		}
		require.NoError(t, g.Place(h, c))
	}

	want, n := 0.0, 0
	for _, h := range hs {
		if !h.Adopted() {
			continue
		}
		frac, err := h.NeighborAdoption(g)
		require.NoError(t, err)
		want += frac
		n++
	}
	score, err := ClusteringScore(g, hs)
	require.NoError(t, err)
	assert.InDelta(t, want/float64(n), score, 1e-12)

	unplaced := &agents.Household{ID: 9, Income: agents.IncomeLow, Type: world.DwellingHouse}
	unplaced.Adopt()
	_, err = ClusteringScore(g, append(hs, unplaced))
	assert.ErrorIs(t, err, agents.ErrNotPlaced)
}

func TestMoransICheckerboardIsNegative(t *testing.T) {
	var hs []*agents.Household
	id := 0
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			hs = append(hs, household(t, id, agents.IncomeLow, world.Coord{X: x, Y: y}, (x+y)%2 == 0))
			id++
		}
	}
	assert.InDelta(t, -1.0, MoransI(4, 4, hs), 1e-12)
}

func TestMoransIClusterIsPositive(t *testing.T) {
	var hs []*agents.Household
	id := 0
	for x := 0; x < 6; x++ {
		for y := 0; y < 6; y++ {
			hs = append(hs, household(t, id, agents.IncomeLow, world.Coord{X: x, Y: y}, x < 3))
			id++
		}
	}
	assert.Greater(t, MoransI(6, 6, hs), 0.5)
}

func TestMoransIZeroVariance(t *testing.T) {
	assert.Zero(t, MoransI(5, 5, nil))

	var hs []*agents.Household
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			hs = append(hs, household(t, x*3+y, agents.IncomeLow, world.Coord{X: x, Y: y}, true))
		}
	}
	assert.Zero(t, MoransI(3, 3, hs))
}

func TestAdoptionLatticeMarksAnyAdopter(t *testing.T) {
	a := &agents.Household{ID: 0, Type: world.DwellingApartment}
	b := &agents.Household{ID: 1, Type: world.DwellingApartment}
	require.NoError(t, a.Place(world.Coord{X: 1, Y: 0}))
	require.NoError(t, b.Place(world.Coord{X: 1, Y: 0}))
	b.Adopt()

	lattice := AdoptionLattice(2, 2, []*agents.Household{a, b})
	assert.Equal(t, []float64{0, 0, 1, 0}, lattice)
}

func TestClassAdoptionAndBetweenClassGini(t *testing.T) {
	hs := []*agents.Household{
		household(t, 0, agents.IncomeLow, world.Coord{X: 0, Y: 0}, false),
		household(t, 1, agents.IncomeLow, world.Coord{X: 0, Y: 1}, false),
		household(t, 2, agents.IncomeHigh, world.Coord{X: 0, Y: 2}, true),
		household(t, 3, agents.IncomeHigh, world.Coord{X: 0, Y: 3}, true),
	}
	rates := ClassAdoption(hs)
	assert.Equal(t, [3]float64{0, 0, 1}, rates)
	assert.InDelta(t, 2.0/3, BetweenClassGini(hs), 1e-12)

	for _, h := range hs {
		h.Adopt()
	}
	// The empty mid class reports 0, so inequality remains.
	assert.Equal(t, [3]float64{1, 0, 1}, ClassAdoption(hs))
	assert.InDelta(t, 1.0/3, BetweenClassGini(hs), 1e-12)
}
