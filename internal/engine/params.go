package engine

import (
	"github.com/rotisserie/eris"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/world"
)

// ErrInvalidParams is returned when model parameters cannot describe a city.
var ErrInvalidParams = eris.New("invalid model parameters")

// Params configures one city model. All fields are fixed at construction.
type Params struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Agents int `json:"agents"`

	Subsidy     bool `json:"subsidy"`      // Model-wide subsidy switch
	SubsidyStep int  `json:"subsidy_step"` // Timestep at which eligibility is granted
	MaxSteps    int  `json:"max_steps"`

	Weights agents.Weights `json:"weights"`
	Mode    agents.Mode    `json:"mode"`
	Seed    uint64         `json:"seed"` // 0 = random, see entropy.NewStream

	// Layout is the zoning used in zoned mode. Nil means the reference
	// layout scaled to Width×Height.
	Layout *world.Layout `json:"layout,omitempty"`

	TraitNoise    float64          `json:"trait_noise,omitempty"`
	NoiseSeed     int64            `json:"noise_seed,omitempty"`
	Overrides     agents.Overrides `json:"overrides"`
	MaxCandidates int              `json:"max_candidates,omitempty"`
}

// DefaultParams returns the reference city: a 120×120 grid of 10000
// households, subsidy enabled from the first step, 200 steps.
func DefaultParams() Params {
	return Params{
		Width:       120,
		Height:      120,
		Agents:      10000,
		Subsidy:     true,
		SubsidyStep: 0,
		MaxSteps:    200,
		Weights:     agents.DefaultWeights(),
		Mode:        agents.ModeZoned,
	}
}

// Validate checks the parameters that do not depend on generation.
func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return eris.Wrapf(ErrInvalidParams, "grid %dx%d", p.Width, p.Height)
	}
	if p.Agents < 0 {
		return eris.Wrapf(ErrInvalidParams, "negative population %d", p.Agents)
	}
	if p.MaxSteps < 0 {
		return eris.Wrapf(ErrInvalidParams, "negative max steps %d", p.MaxSteps)
	}
	if p.SubsidyStep < 0 {
		return eris.Wrapf(ErrInvalidParams, "negative subsidy step %d", p.SubsidyStep)
	}
	if p.Mode != agents.ModeZoned && p.Mode != agents.ModeUniform {
		return eris.Wrapf(ErrInvalidParams, "unknown mode %d", p.Mode)
	}
	if p.Layout != nil && p.Mode == agents.ModeZoned {
		if err := p.Layout.Validate(p.Width, p.Height); err != nil {
			return err
		}
	}
	return nil
}

// layout returns the zoning for zoned generation.
func (p Params) layout() world.Layout {
	if p.Layout != nil {
		return *p.Layout
	}
	return world.DefaultLayout(p.Width, p.Height)
}

func (p Params) spawnConfig() agents.SpawnConfig {
	cfg := agents.SpawnConfig{
		Mode:          p.Mode,
		MaxCandidates: p.MaxCandidates,
		TraitNoise:    p.TraitNoise,
		NoiseSeed:     p.NoiseSeed,
		Overrides:     p.Overrides,
	}
	if p.Mode == agents.ModeZoned {
		cfg.Layout = p.layout()
	}
	return cfg
}
