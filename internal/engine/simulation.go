// CityModel ties the grid, the population and the metrics together and
// advances them one step at a time.
package engine

import (
	"context"
	"log/slog"

	"github.com/rotisserie/eris"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/entropy"
	"github.com/talgya/solarsim/internal/world"
)

// ClassCounts holds population counts for one income class.
type ClassCounts struct {
	Count      int `json:"count"`
	Houses     int `json:"houses"`
	Apartments int `json:"apartments"`
}

// Summary holds population counts by income class and dwelling type. It is
// filled in while the population is generated and never recomputed.
type Summary struct {
	Low  ClassCounts `json:"low"`
	Mid  ClassCounts `json:"mid"`
	High ClassCounts `json:"high"`
}

// Class returns the counts for one income class.
func (s Summary) Class(inc agents.Income) ClassCounts {
	if c := s.class(inc); c != nil {
		return *c
	}
	return ClassCounts{}
}

// Total returns the population size.
func (s Summary) Total() int {
	return s.Low.Count + s.Mid.Count + s.High.Count
}

func (s *Summary) class(inc agents.Income) *ClassCounts {
	switch inc {
	case agents.IncomeLow:
		return &s.Low
	case agents.IncomeMid:
		return &s.Mid
	case agents.IncomeHigh:
		return &s.High
	}
	return nil
}

// CityModel holds the complete city state. It is single-owner: callers that
// share it across goroutines must serialize access, as Engine does.
type CityModel struct {
	params Params
	rng    *entropy.Stream

	grid       *world.Grid[*agents.Household]
	households []*agents.Household // ID order
	order      []*agents.Household // Activation order, reshuffled every step
	index      map[agents.HouseholdID]*agents.Household

	timestep       int
	running        bool
	subsidyGranted bool

	summary    Summary
	generation agents.GenerationStats
	series     []Record
	hooks      []func(Record)
}

// NewCityModel generates the population described by p and records the
// initial snapshot as Step 0. A nil rng draws from a stream seeded with
// p.Seed.
func NewCityModel(p Params, rng *entropy.Stream) (*CityModel, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = entropy.NewStream(p.Seed)
	}

	grid, err := world.NewGrid[*agents.Household](p.Width, p.Height)
	if err != nil {
		return nil, eris.Wrap(ErrInvalidParams, err.Error())
	}

	m := &CityModel{
		params:     p,
		rng:        rng,
		grid:       grid,
		households: make([]*agents.Household, 0, p.Agents),
		index:      make(map[agents.HouseholdID]*agents.Household, p.Agents),
		running:    true,
	}

	sc := p.spawnConfig()
	if sc.TraitNoise > 0 && sc.NoiseSeed == 0 {
		sc.NoiseSeed = int64(rng.Seed())
	}
	spawner, err := agents.NewSpawner(sc, rng, p.Width, p.Height)
	if err != nil {
		return nil, err
	}
	stats, err := spawner.SpawnPopulation(p.Agents, grid, registrar{m})
	m.generation = stats
	if err != nil {
		return nil, eris.Wrap(err, "generate population")
	}

	m.order = make([]*agents.Household, len(m.households))
	copy(m.order, m.households)

	rec, err := m.collect(0)
	if err != nil {
		return nil, err
	}
	m.series = append(m.series, rec)

	slog.Info("city generated",
		"width", p.Width,
		"height", p.Height,
		"households", len(m.households),
		"mode", p.Mode.String(),
		"seed", rng.Seed(),
		"discarded", stats.Discarded,
	)
	return m, nil
}

// registrar is the model's generation-time registry. Grid placement,
// registration and counter updates happen together.
type registrar struct{ m *CityModel }

func (r registrar) Register(h *agents.Household) error {
	pos, ok := h.Position()
	if !ok {
		return eris.Wrapf(agents.ErrNotPlaced, "household %d", h.ID)
	}
	c := r.m.summary.class(h.Income)
	if c == nil {
		return eris.Errorf("household %d has unknown income %d", h.ID, h.Income)
	}
	if err := r.m.grid.Place(h, pos); err != nil {
		return err
	}
	r.m.households = append(r.m.households, h)
	r.m.index[h.ID] = h

	c.Count++
	if h.Type == world.DwellingHouse {
		c.Houses++
	} else {
		c.Apartments++
	}
	return nil
}

// Step advances the model by one step. It returns false, and does nothing,
// once MaxSteps steps have run.
func (m *CityModel) Step() (bool, error) {
	if m.timestep >= m.params.MaxSteps {
		if m.running {
			m.running = false
			slog.Info("model stopped", "step", m.timestep, "adoption_rate", m.last().AdoptionRate)
		}
		return false, nil
	}

	if m.params.Subsidy && !m.subsidyGranted && m.timestep == m.params.SubsidyStep {
		var granted int
		if o := m.params.Overrides.Subsidy; o != nil {
			granted = agents.SetSubsidies(m.households, *o)
		} else {
			granted = agents.GrantSubsidies(m.households, m.rng)
		}
		m.subsidyGranted = true
		slog.Info("subsidy granted", "step", m.timestep, "eligible", granted)
	}

	m.rng.Shuffle(len(m.order), func(i, j int) {
		m.order[i], m.order[j] = m.order[j], m.order[i]
	})

	ctx := &agents.Context{
		Grid:           m.grid,
		Weights:        m.params.Weights,
		SubsidyEnabled: m.params.Subsidy,
		Shock:          m.shock,
	}
	for _, h := range m.order {
		if _, err := h.Step(ctx); err != nil {
			return false, eris.Wrapf(err, "step %d", m.timestep)
		}
	}

	rec, err := m.collect(m.timestep + 1)
	if err != nil {
		return false, eris.Wrapf(err, "collect step %d", m.timestep)
	}
	m.series = append(m.series, rec)
	m.timestep++

	for _, fn := range m.hooks {
		fn(rec)
	}
	return true, nil
}

// Run calls Step until steps calls have executed, the model stops or ctx is
// done. It returns the number of steps that ran.
func (m *CityModel) Run(ctx context.Context, steps int) (int, error) {
	n := 0
	for n < steps {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := m.Step()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		n++
	}
	return n, nil
}

func (m *CityModel) shock() float64 {
	return m.rng.Normal(0, agents.ShockSD)
}

func (m *CityModel) last() Record {
	return m.series[len(m.series)-1]
}

// OnStep registers fn to receive every record collected after a step.
func (m *CityModel) OnStep(fn func(Record)) {
	m.hooks = append(m.hooks, fn)
}

// Series returns a copy of the time series, starting with Step 0.
func (m *CityModel) Series() []Record {
	out := make([]Record, len(m.series))
	copy(out, m.series)
	return out
}

// Latest returns the most recent record.
func (m *CityModel) Latest() Record {
	return m.last()
}

// Summary returns the population counters.
func (m *CityModel) Summary() Summary {
	return m.summary
}

// Generation returns placement statistics from population generation.
func (m *CityModel) Generation() agents.GenerationStats {
	return m.generation
}

// Timestep returns the number of completed steps.
func (m *CityModel) Timestep() int {
	return m.timestep
}

// Running reports whether the model has not yet entered the stopped state.
func (m *CityModel) Running() bool {
	return m.running
}

// SubsidyGranted reports whether the one-shot subsidy assignment has run.
func (m *CityModel) SubsidyGranted() bool {
	return m.subsidyGranted
}

// Params returns the parameters the model was built with.
func (m *CityModel) Params() Params {
	return m.params
}

// Seed returns the seed of the model's random stream.
func (m *CityModel) Seed() uint64 {
	return m.rng.Seed()
}

// Grid returns the model's grid. Callers must not place on it.
func (m *CityModel) Grid() *world.Grid[*agents.Household] {
	return m.grid
}

// Households returns the population in ID order.
func (m *CityModel) Households() []*agents.Household {
	out := make([]*agents.Household, len(m.households))
	copy(out, m.households)
	return out
}

// Household looks up a household by ID.
func (m *CityModel) Household(id agents.HouseholdID) (*agents.Household, bool) {
	h, ok := m.index[id]
	return h, ok
}

// AdoptionMatrix returns a Width×Height matrix, indexed [x][y], counting
// adopters per cell.
func (m *CityModel) AdoptionMatrix() [][]int {
	out := make([][]int, m.params.Width)
	for x := range out {
		out[x] = make([]int, m.params.Height)
	}
	for _, h := range m.households {
		if !h.Adopted() {
			continue
		}
		pos, _ := h.Position()
		out[pos.X][pos.Y]++
	}
	return out
}
