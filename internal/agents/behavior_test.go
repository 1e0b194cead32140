package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/talgya/solarsim/internal/entropy"
	"github.com/talgya/solarsim/internal/world"
)

func newGrid(t *testing.T, w, h int) *world.Grid[*Household] {
	t.Helper()
	g, err := world.NewGrid[*Household](w, h)
	require.NoError(t, err)
	return g
}

func put(t *testing.T, g *world.Grid[*Household], h *Household, c world.Coord) *Household {
	t.Helper()
	require.NoError(t, h.Place(c))
	require.NoError(t, g.Place(h, c))
	return h
}

func TestSocialScenarioThreeByThree(t *testing.T) {
	g := newGrid(t, 3, 3)
	a := put(t, g, &Household{ID: 0, Type: world.DwellingHouse, Income: IncomeLow, Education: EducationLow}, world.Coord{X: 0, Y: 0})
	b := put(t, g, &Household{ID: 1, Type: world.DwellingHouse, Income: IncomeLow, Education: EducationLow}, world.Coord{X: 0, Y: 1})
	a.Adopt()
	b.Adopt()
	c := put(t, g, &Household{ID: 2, Type: world.DwellingHouse, Income: IncomeHigh, Education: EducationTertiary, Consciousness: 0.9}, world.Coord{X: 1, Y: 1})

	f, err := c.NeighborAdoption(g)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f, 1e-12)

	ctx := &Context{Grid: g, Weights: Weights{Social: 1}}
	p, err := c.InstallProbability(ctx)
	require.NoError(t, err)
	assert.InDelta(t, distuv.UnitNormal.CDF(1.0), p, 1e-12)

	// Φ(1) ≈ 0.84 does not clear the threshold.
	adopted, err := c.Step(ctx)
	require.NoError(t, err)
	assert.False(t, adopted)
	assert.False(t, c.Adopted())
}

func TestNeighborAdoptionPartial(t *testing.T) {
	g := newGrid(t, 3, 3)
	a := put(t, g, &Household{ID: 0, Type: world.DwellingHouse}, world.Coord{X: 0, Y: 0})
	put(t, g, &Household{ID: 1, Type: world.DwellingHouse}, world.Coord{X: 2, Y: 2})
	a.Adopt()
	center := put(t, g, &Household{ID: 2, Type: world.DwellingHouse}, world.Coord{X: 1, Y: 1})

	f, err := center.NeighborAdoption(g)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-12)
}

func TestApartmentCountsCellmates(t *testing.T) {
	g := newGrid(t, 3, 3)
	mate := put(t, g, &Household{ID: 0, Type: world.DwellingApartment}, world.Coord{X: 1, Y: 1})
	mate.Adopt()
	self := put(t, g, &Household{ID: 1, Type: world.DwellingApartment}, world.Coord{X: 1, Y: 1})

	ns, err := self.Neighbors(g)
	require.NoError(t, err)
	assert.Len(t, ns, 2)

	f, err := self.NeighborAdoption(g)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-12)
}

func TestIsolatedHouseHasZeroSocialSignal(t *testing.T) {
	g := newGrid(t, 5, 5)
	h := put(t, g, &Household{ID: 0, Type: world.DwellingHouse}, world.Coord{X: 2, Y: 2})
	f, err := h.NeighborAdoption(g)
	require.NoError(t, err)
	assert.Zero(t, f)
}

func TestUnplacedHouseholdFailsFast(t *testing.T) {
	g := newGrid(t, 3, 3)
	h := &Household{ID: 9, Type: world.DwellingHouse}

	_, err := h.NeighborAdoption(g)
	assert.True(t, errors.Is(err, ErrNotPlaced))

	_, err = h.Utility(&Context{Grid: g})
	assert.True(t, errors.Is(err, ErrNotPlaced))

	_, err = h.Step(&Context{Grid: g})
	assert.True(t, errors.Is(err, ErrNotPlaced))
}

func TestPlaceTwiceRejected(t *testing.T) {
	h := &Household{ID: 1}
	require.NoError(t, h.Place(world.Coord{X: 1, Y: 1}))
	assert.Error(t, h.Place(world.Coord{X: 2, Y: 2}))
	pos, ok := h.Position()
	assert.True(t, ok)
	assert.Equal(t, world.Coord{X: 1, Y: 1}, pos)
}

func TestUtilityTerms(t *testing.T) {
	g := newGrid(t, 3, 3)
	h := put(t, g, &Household{
		ID:            0,
		Income:        IncomeMid,
		Education:     EducationTertiary,
		Type:          world.DwellingApartment,
		Consciousness: 0.5,
		Stubbornness:  0.25,
	}, world.Coord{X: 1, Y: 1})
	h.subsidized = true

	w := Weights{Income: 0.3, Consciousness: 0.2, Social: 0.7, Stubbornness: 0.4, Education: 0.6, Subsidy: 0.5, Dwelling: 0.1}

	u, err := h.Utility(&Context{Grid: g, Weights: w, SubsidyEnabled: true})
	require.NoError(t, err)
	// Only self in the cell and not adopted, so F = 0.
	want := 0.3*2.0/3 + 0.2*0.5 - 0.4*0.25 + 0.6*1 + 0.5 + 0.1*(1-2)
	assert.InDelta(t, want, u, 1e-12)

	u, err = h.Utility(&Context{Grid: g, Weights: w, SubsidyEnabled: false})
	require.NoError(t, err)
	assert.InDelta(t, want-0.5, u, 1e-12)

	u, err = h.Utility(&Context{Grid: g, Weights: w, SubsidyEnabled: true, Shock: func() float64 { return 0.25 }})
	require.NoError(t, err)
	assert.InDelta(t, want+0.25, u, 1e-12)
}

func TestDwellingTermSign(t *testing.T) {
	g := newGrid(t, 3, 3)
	house := put(t, g, &Household{ID: 0, Type: world.DwellingHouse}, world.Coord{X: 0, Y: 0})
	apt := put(t, g, &Household{ID: 1, Type: world.DwellingApartment}, world.Coord{X: 2, Y: 2})
	ctx := &Context{Grid: g, Weights: Weights{Dwelling: 0.6}}

	uh, err := house.Utility(ctx)
	require.NoError(t, err)
	ua, err := apt.Utility(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, uh, 1e-12)
	assert.InDelta(t, -0.6, ua, 1e-12)
}

func TestStepAdoptsAboveThresholdAndIsIrreversible(t *testing.T) {
	g := newGrid(t, 3, 3)
	h := put(t, g, &Household{ID: 0, Type: world.DwellingHouse}, world.Coord{X: 1, Y: 1})

	high := &Context{Grid: g, Shock: func() float64 { return 3 }}
	adopted, err := h.Step(high)
	require.NoError(t, err)
	assert.True(t, adopted)
	assert.True(t, h.Adopted())

	low := &Context{Grid: g, Shock: func() float64 { return -10 }}
	for i := 0; i < 5; i++ {
		adopted, err = h.Step(low)
		require.NoError(t, err)
		assert.False(t, adopted)
		assert.True(t, h.Adopted())
	}
}

func TestStepSkipsAdoptersWithoutDrawing(t *testing.T) {
	g := newGrid(t, 3, 3)
	h := put(t, g, &Household{ID: 0, Type: world.DwellingHouse}, world.Coord{X: 1, Y: 1})
	h.Adopt()

	draws := 0
	_, err := h.Step(&Context{Grid: g, Shock: func() float64 { draws++; return 0 }})
	require.NoError(t, err)
	assert.Zero(t, draws)
}

func TestGrantSubsidiesByIncome(t *testing.T) {
	rng := entropy.NewStream(5)
	var hs []*Household
	for i := 0; i < 3000; i++ {
		hs = append(hs, &Household{ID: HouseholdID(i), Income: Incomes[i%3]})
	}
	granted := GrantSubsidies(hs, rng)

	mid, midGranted := 0, 0
	for _, h := range hs {
		switch h.Income {
		case IncomeLow:
			assert.True(t, h.Subsidized())
		case IncomeHigh:
			assert.False(t, h.Subsidized())
		case IncomeMid:
			mid++
			if h.Subsidized() {
				midGranted++
			}
		}
	}
	assert.Equal(t, 1000+midGranted, granted)
	assert.InDelta(t, MidIncomeSubsidyRate, float64(midGranted)/float64(mid), 0.05)
}

func TestSetSubsidiesIgnoresIncome(t *testing.T) {
	var hs []*Household
	for i := 0; i < 9; i++ {
		hs = append(hs, &Household{ID: HouseholdID(i), Income: Incomes[i%3]})
	}
	assert.Equal(t, 9, SetSubsidies(hs, true))
	for _, h := range hs {
		assert.True(t, h.Subsidized())
	}
	assert.Zero(t, SetSubsidies(hs, false))
	for _, h := range hs {
		assert.False(t, h.Subsidized())
	}
}
