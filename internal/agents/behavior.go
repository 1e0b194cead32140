// Household adoption behavior: a probit decision over a linear utility.
// Every step, each household that has not yet adopted evaluates its utility,
// maps it through the standard normal CDF and installs when the resulting
// probability clears the threshold.
package agents

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/talgya/solarsim/internal/world"
)

const (
	// ShockSD is the standard deviation of the idiosyncratic utility shock ε.
	ShockSD = 0.5
	// InstallThreshold is the probability a household must exceed to install.
	InstallThreshold = 0.98
)

// Weights are the behavioral coefficients β1..β7 of the utility function,
// in the order income, consciousness, social, stubbornness, education,
// subsidy, dwelling.
type Weights struct {
	Income        float64 `json:"income" yaml:"income" mapstructure:"income"`
	Consciousness float64 `json:"consciousness" yaml:"consciousness" mapstructure:"consciousness"`
	Social        float64 `json:"social" yaml:"social" mapstructure:"social"`
	Stubbornness  float64 `json:"stubbornness" yaml:"stubbornness" mapstructure:"stubbornness"`
	Education     float64 `json:"education" yaml:"education" mapstructure:"education"`
	Subsidy       float64 `json:"subsidy" yaml:"subsidy" mapstructure:"subsidy"`
	Dwelling      float64 `json:"dwelling" yaml:"dwelling" mapstructure:"dwelling"`
}

// DefaultWeights returns the calibrated reference coefficients.
func DefaultWeights() Weights {
	return Weights{
		Income:        0.35,
		Consciousness: 0.05,
		Social:        0.5,
		Stubbornness:  0.2,
		Education:     0.3,
		Subsidy:       0.3,
		Dwelling:      0.6,
	}
}

// Context carries the model state a household reads when deciding.
type Context struct {
	Grid           *world.Grid[*Household]
	Weights        Weights
	SubsidyEnabled bool

	// Shock draws ε. A nil Shock means ε = 0.
	Shock func() float64
}

// Neighbors returns the households around h. Apartments count every occupant
// of their own cell, themselves included; houses only count the eight
// surrounding cells.
func (h *Household) Neighbors(g *world.Grid[*Household]) ([]*Household, error) {
	if !h.placed {
		return nil, eris.Wrapf(ErrNotPlaced, "household %d", h.ID)
	}
	ns, err := g.Neighbors(h.pos, h.Type.IncludesCenter())
	if err != nil {
		return nil, eris.Wrapf(err, "household %d", h.ID)
	}
	return ns, nil
}

// NeighborAdoption returns F, the fraction of neighbors that have adopted,
// or 0 when the household has no neighbors.
func (h *Household) NeighborAdoption(g *world.Grid[*Household]) (float64, error) {
	ns, err := h.Neighbors(g)
	if err != nil {
		return 0, err
	}
	if len(ns) == 0 {
		return 0, nil
	}
	adopters := 0
	for _, n := range ns {
		if n.adopted {
			adopters++
		}
	}
	return float64(adopters) / float64(len(ns)), nil
}

// Utility evaluates the household's adoption utility with a fresh shock.
func (h *Household) Utility(ctx *Context) (float64, error) {
	f, err := h.NeighborAdoption(ctx.Grid)
	if err != nil {
		return 0, err
	}
	w := ctx.Weights

	subsidy := 0.0
	if h.subsidized && ctx.SubsidyEnabled {
		subsidy = 1
	}

	u := w.Income*float64(h.Income)/3 +
		w.Consciousness*h.Consciousness +
		w.Social*f -
		w.Stubbornness*h.Stubbornness +
		w.Education*float64(h.Education)/3 +
		w.Subsidy*subsidy +
		w.Dwelling*float64(1-h.Type.Code())

	if ctx.Shock != nil {
		u += ctx.Shock()
	}
	return u, nil
}

// InstallProbability maps a fresh utility draw through Φ.
func (h *Household) InstallProbability(ctx *Context) (float64, error) {
	u, err := h.Utility(ctx)
	if err != nil {
		return 0, err
	}
	return distuv.UnitNormal.CDF(u), nil
}

// Step runs one decision. Adopters are skipped. Returns true if the household
// adopted during this call.
func (h *Household) Step(ctx *Context) (bool, error) {
	if h.adopted {
		return false, nil
	}
	p, err := h.InstallProbability(ctx)
	if err != nil {
		return false, err
	}
	if p > InstallThreshold {
		h.adopted = true
		return true, nil
	}
	return false, nil
}
