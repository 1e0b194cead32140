// Household spawning: builds the initial population with demographics,
// attitudes and a valid home cell.
package agents

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/talgya/solarsim/internal/entropy"
	"github.com/talgya/solarsim/internal/world"
)

// DefaultPlacementTries bounds the cell draws spent on one candidate.
const DefaultPlacementTries = 100

var (
	// ErrCapacityExceeded is returned when the generator gives up because
	// the grid or zoning cannot hold the requested population.
	ErrCapacityExceeded = eris.New("population exceeds placement capacity")
	// ErrInvalidSpawnConfig is returned for unusable generator settings.
	ErrInvalidSpawnConfig = eris.New("invalid spawn config")
)

// Mode selects how households are generated.
type Mode uint8

const (
	ModeZoned   Mode = iota // Zone-by-area, income by zone, traits by income
	ModeUniform             // Everything uniform over the whole grid
)

// ParseMode converts "zoned" or "uniform" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "zoned", "":
		return ModeZoned, nil
	case "uniform", "random":
		return ModeUniform, nil
	default:
		return ModeZoned, eris.Wrapf(ErrInvalidSpawnConfig, "unknown generation mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeUniform {
		return "uniform"
	}
	return "zoned"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts any name ParseMode does.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Overrides pin household attributes to fixed values at generation time,
// for experiments that hold part of the population profile constant.
// Nil fields are sampled normally. Attitude overrides are means: each
// household draws N(mean, 0.1) clipped to [0, 1]. Subsidy replaces the
// income-based eligibility draw when the model grants subsidies.
type Overrides struct {
	Income        *Income         `json:"income,omitempty"`
	Education     *Education      `json:"education,omitempty"`
	Dwelling      *world.Dwelling `json:"dwelling,omitempty"`
	Consciousness *float64        `json:"consciousness,omitempty"`
	Stubbornness  *float64        `json:"stubbornness,omitempty"`
	Subsidy       *bool           `json:"subsidy,omitempty"`
}

// OverrideNames lists the keys Overrides.Set accepts.
var OverrideNames = []string{"income", "education", "dwelling", "consciousness", "stubbornness", "subsidy"}

// Set pins one attribute by name. Categorical attributes take either their
// name ("mid", "tertiary", "apartment") or their numeric code. Attitudes
// take a mean in [0, 1]; subsidy takes a boolean or 0/1.
func (o *Overrides) Set(name, value string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.ToLower(strings.TrimSpace(value))
	switch name {
	case "income":
		code, err := parseCode(name, value, 3, func(i int) string { return Income(i).String() })
		if err != nil {
			return err
		}
		v := Income(code)
		o.Income = &v
	case "education":
		code, err := parseCode(name, value, 3, func(i int) string { return Education(i).String() })
		if err != nil {
			return err
		}
		v := Education(code)
		o.Education = &v
	case "dwelling", "household_type":
		code, err := parseCode(name, value, 2, func(i int) string { return world.Dwelling(i).String() })
		if err != nil {
			return err
		}
		v := world.Dwelling(code)
		o.Dwelling = &v
	case "consciousness", "stubbornness":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 || v > 1 {
			return eris.Wrapf(ErrInvalidSpawnConfig, "%s override %q: want a mean in [0, 1]", name, value)
		}
		if name == "consciousness" {
			o.Consciousness = &v
		} else {
			o.Stubbornness = &v
		}
	case "subsidy", "subsidy_eligibility":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return eris.Wrapf(ErrInvalidSpawnConfig, "subsidy override %q", value)
		}
		o.Subsidy = &v
	default:
		return eris.Wrapf(ErrInvalidSpawnConfig, "unknown override %q", name)
	}
	return nil
}

// SetAll applies every name=value pair in kv.
func (o *Overrides) SetAll(kv map[string]string) error {
	for name, value := range kv {
		if err := o.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// IsZero reports whether no attribute is pinned.
func (o Overrides) IsZero() bool {
	return o == Overrides{}
}

// parseCode resolves a categorical value given by name or by its 1-based code.
func parseCode(name, value string, n int, label func(int) string) (int, error) {
	for i := 1; i <= n; i++ {
		if value == label(i) || value == strconv.Itoa(i) {
			return i, nil
		}
	}
	return 0, eris.Wrapf(ErrInvalidSpawnConfig, "%s override %q", name, value)
}

// overrideJitter is the spread around an overridden attitude mean.
const overrideJitter = 0.1

// SpawnConfig controls population generation.
type SpawnConfig struct {
	Mode   Mode
	Layout world.Layout // Required in zoned mode

	MaxPlacementTries int // Cell draws per candidate, 0 = DefaultPlacementTries
	MaxCandidates     int // Total candidates before giving up, 0 = 50×count+1000

	// TraitNoise blends a spatial noise field into environmental
	// consciousness after placement. 0 disables it.
	TraitNoise float64
	NoiseSeed  int64

	Overrides Overrides
}

// Registry receives every successfully placed household. It must put the
// household on the grid and update any population counters in one go.
type Registry interface {
	Register(h *Household) error
}

// GenerationStats summarizes one population build.
type GenerationStats struct {
	Placed     int `json:"placed"`
	Candidates int `json:"candidates"`
	Discarded  int `json:"discarded"`
}

// Spawner creates households for a city.
type Spawner struct {
	rng    *entropy.Stream
	cfg    SpawnConfig
	nextID HouseholdID

	width, height int
	areaWeights   []float64
	field         *world.NoiseField
}

// NewSpawner validates cfg against a width×height grid and returns a spawner
// drawing from rng.
func NewSpawner(cfg SpawnConfig, rng *entropy.Stream, width, height int) (*Spawner, error) {
	if rng == nil {
		return nil, eris.Wrap(ErrInvalidSpawnConfig, "nil random stream")
	}
	if cfg.MaxPlacementTries <= 0 {
		cfg.MaxPlacementTries = DefaultPlacementTries
	}
	if cfg.TraitNoise < 0 || cfg.TraitNoise > 1 {
		return nil, eris.Wrapf(ErrInvalidSpawnConfig, "trait noise %v outside [0,1]", cfg.TraitNoise)
	}
	if err := cfg.Overrides.validate(); err != nil {
		return nil, err
	}

	s := &Spawner{
		rng:    rng,
		cfg:    cfg,
		width:  width,
		height: height,
	}

	if cfg.Mode == ModeZoned {
		if err := cfg.Layout.Validate(width, height); err != nil {
			return nil, err
		}
		for i, z := range cfg.Layout.Zones {
			for _, v := range z.Incomes {
				if !Income(v).Valid() {
					return nil, eris.Wrapf(world.ErrInvalidLayout, "zone %d (%s): unknown income %d", i, z.Name, v)
				}
			}
		}
		s.areaWeights = cfg.Layout.AreaWeights()
	}

	if cfg.TraitNoise > 0 {
		s.field = world.NewNoiseField(world.DefaultFieldConfig(cfg.NoiseSeed))
	}
	return s, nil
}

// SetNextID sets the next household ID to be issued.
func (s *Spawner) SetNextID(id HouseholdID) {
	s.nextID = id
}

// SpawnPopulation generates count households, placing each on grid and
// handing it to reg. A candidate that finds no valid cell within the try
// bound is discarded without consuming an ID.
func (s *Spawner) SpawnPopulation(count int, grid *world.Grid[*Household], reg Registry) (GenerationStats, error) {
	var stats GenerationStats
	if count < 0 {
		return stats, eris.Wrapf(ErrInvalidSpawnConfig, "negative population %d", count)
	}

	maxCandidates := s.cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 50*count + 1000
	}

	for stats.Placed < count {
		if stats.Candidates >= maxCandidates {
			return stats, eris.Wrapf(ErrCapacityExceeded, "placed %d of %d after %d candidates",
				stats.Placed, count, stats.Candidates)
		}
		stats.Candidates++

		h, zone := s.candidate()
		cell, ok := s.findCell(grid, zone, h.Type)
		if !ok {
			stats.Discarded++
			continue
		}

		h.ID = s.nextID
		if err := h.Place(cell); err != nil {
			return stats, err
		}
		if s.field != nil {
			a := s.cfg.TraitNoise
			h.Consciousness = clamp01((1-a)*h.Consciousness + a*s.field.At(cell))
		}
		if err := reg.Register(h); err != nil {
			return stats, eris.Wrapf(err, "register household %d", h.ID)
		}
		s.nextID++
		stats.Placed++
	}

	slog.Debug("population generated",
		"mode", s.cfg.Mode.String(),
		"placed", stats.Placed,
		"candidates", stats.Candidates,
		"discarded", stats.Discarded,
	)
	return stats, nil
}

// candidate draws one unplaced household and the rectangle it must live in.
func (s *Spawner) candidate() (*Household, world.Zone) {
	if s.cfg.Mode == ModeUniform {
		return s.uniformCandidate()
	}
	return s.zonedCandidate()
}

func (s *Spawner) zonedCandidate() (*Household, world.Zone) {
	zone := s.cfg.Layout.Zones[s.rng.Weighted(s.areaWeights)]

	h := &Household{}
	h.Income = Income(zone.Incomes[s.rng.Weighted(zone.Weights)])
	if o := s.cfg.Overrides.Income; o != nil {
		h.Income = *o
	}
	h.Consciousness = s.rng.Float64()
	h.Stubbornness = s.rng.Float64()
	h.Education = s.educationForIncome(h.Income)
	h.Type = s.dwellingForIncome(h.Income)
	s.applyOverrides(h)
	return h, zone
}

func (s *Spawner) uniformCandidate() (*Household, world.Zone) {
	h := &Household{}
	h.Income = Incomes[s.rng.IntN(len(Incomes))]
	if o := s.cfg.Overrides.Income; o != nil {
		h.Income = *o
	}
	h.Consciousness = s.rng.Float64()
	h.Stubbornness = s.rng.Float64()
	h.Education = Education(1 + s.rng.IntN(3))
	h.Type = world.Dwelling(1 + s.rng.IntN(2))
	s.applyOverrides(h)
	return h, world.Zone{Name: "city", XMax: s.width, YMax: s.height}
}

// Education and dwelling tables per income class, indexed by Income-1.
var (
	educationWeights = [3][]float64{
		{0.1, 0.6, 0.3},
		{0.05, 0.2, 0.75},
		{0.01, 0.1, 0.89},
	}
	dwellingWeights = [3][]float64{
		{0.2, 0.8},
		{0.5, 0.5},
		{0.8, 0.2},
	}
)

func (s *Spawner) educationForIncome(inc Income) Education {
	return Education(1 + s.rng.Weighted(educationWeights[inc-1]))
}

func (s *Spawner) dwellingForIncome(inc Income) world.Dwelling {
	return world.Dwelling(1 + s.rng.Weighted(dwellingWeights[inc-1]))
}

func (s *Spawner) applyOverrides(h *Household) {
	o := s.cfg.Overrides
	if o.Education != nil {
		h.Education = *o.Education
	}
	if o.Dwelling != nil {
		h.Type = *o.Dwelling
	}
	if o.Consciousness != nil {
		h.Consciousness = clamp01(s.rng.Normal(*o.Consciousness, overrideJitter))
	}
	if o.Stubbornness != nil {
		h.Stubbornness = clamp01(s.rng.Normal(*o.Stubbornness, overrideJitter))
	}
}

// findCell samples up to MaxPlacementTries cells in zone that can host d.
func (s *Spawner) findCell(grid *world.Grid[*Household], zone world.Zone, d world.Dwelling) (world.Coord, bool) {
	for try := 0; try < s.cfg.MaxPlacementTries; try++ {
		c := world.Coord{
			X: s.rng.IntRange(zone.XMin, zone.XMax),
			Y: s.rng.IntRange(zone.YMin, zone.YMax),
		}
		if grid.CanHost(c, d) {
			return c, true
		}
	}
	return world.Coord{}, false
}

func (o Overrides) validate() error {
	if o.Income != nil && !o.Income.Valid() {
		return eris.Wrapf(ErrInvalidSpawnConfig, "income override %d", *o.Income)
	}
	if o.Education != nil && !o.Education.Valid() {
		return eris.Wrapf(ErrInvalidSpawnConfig, "education override %d", *o.Education)
	}
	if o.Dwelling != nil && !o.Dwelling.Valid() {
		return eris.Wrapf(ErrInvalidSpawnConfig, "dwelling override %d", *o.Dwelling)
	}
	for _, v := range []*float64{o.Consciousness, o.Stubbornness} {
		if v != nil && (*v < 0 || *v > 1) {
			return eris.Wrapf(ErrInvalidSpawnConfig, "attitude override %g outside [0, 1]", *v)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
