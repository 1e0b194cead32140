// Package metrics computes emergence statistics over a city snapshot:
// global adoption, local clustering, spatial autocorrelation and
// between-income-class inequality. Every function is read-only.
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/world"
)

// GlobalAdoption returns the share of households that have adopted.
func GlobalAdoption(households []*agents.Household) float64 {
	if len(households) == 0 {
		return 0
	}
	adopters := 0
	for _, h := range households {
		if h.Adopted() {
			adopters++
		}
	}
	return float64(adopters) / float64(len(households))
}

// ClusteringScore averages, over adopters with at least one neighbor, the
// fraction of their neighbors that have also adopted. Neighborhoods follow
// the same dwelling rule as the adoption decision. Returns 0 with no such adopter.
func ClusteringScore(g *world.Grid[*agents.Household], households []*agents.Household) (float64, error) {
	total := 0.0
	counted := 0
	for _, h := range households {
		if !h.Adopted() {
			continue
		}
		ns, err := h.Neighbors(g)
		if err != nil {
			return 0, err
		}
		if len(ns) == 0 {
			continue
		}
		adopters := 0
		for _, n := range ns {
			if n.Adopted() {
				adopters++
			}
		}
		total += float64(adopters) / float64(len(ns))
		counted++
	}
	if counted == 0 {
		return 0, nil
	}
	return total / float64(counted), nil
}

// AdoptionLattice returns a width*height indicator, indexed x*height+y, that
// is 1 where any household in the cell has adopted.
func AdoptionLattice(width, height int, households []*agents.Household) []float64 {
	lattice := make([]float64, width*height)
	for _, h := range households {
		if !h.Adopted() {
			continue
		}
		pos, ok := h.Position()
		if !ok || pos.X < 0 || pos.X >= width || pos.Y < 0 || pos.Y >= height {
			continue
		}
		lattice[pos.X*height+pos.Y] = 1
	}
	return lattice
}

// MoransI returns global Moran's I of the adoption lattice under rook
// contiguity with row-standardized weights. Returns 0 when the lattice has
// no variance.
func MoransI(width, height int, households []*agents.Household) float64 {
	return moransI(width, height, AdoptionLattice(width, height, households))
}

func moransI(width, height int, values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	mean := floats.Sum(values) / float64(n)

	dev := make([]float64, n)
	copy(dev, values)
	floats.AddConst(-mean, dev)
	variance := floats.Dot(dev, dev)
	if variance == 0 {
		return 0
	}

	var cross, s0 float64
	var nbrs [4]int
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			k := 0
			if x > 0 {
				nbrs[k] = (x-1)*height + y
				k++
			}
			if x < width-1 {
				nbrs[k] = (x+1)*height + y
				k++
			}
			if y > 0 {
				nbrs[k] = x*height + y - 1
				k++
			}
			if y < height-1 {
				nbrs[k] = x*height + y + 1
				k++
			}
			if k == 0 {
				continue
			}
			i := x*height + y
			w := 1 / float64(k)
			for _, j := range nbrs[:k] {
				cross += w * dev[i] * dev[j]
			}
			s0++
		}
	}
	if s0 == 0 {
		return 0
	}
	return float64(n) / s0 * cross / variance
}

// Gini returns the Gini coefficient of values. Returns 0 for empty input or
// an all-zero total.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	cum := make([]float64, n)
	floats.CumSum(cum, sorted)
	total := cum[n-1]
	if total == 0 {
		return 0
	}
	return (float64(n) + 1 - 2*floats.Sum(cum)/total) / float64(n)
}

// ClassAdoption returns the adoption share of each income class, low to
// high. An empty class reports 0.
func ClassAdoption(households []*agents.Household) [3]float64 {
	var totals, adopters [3]int
	for _, h := range households {
		if !h.Income.Valid() {
			continue
		}
		i := int(h.Income) - 1
		totals[i]++
		if h.Adopted() {
			adopters[i]++
		}
	}
	var out [3]float64
	for i := range out {
		if totals[i] > 0 {
			out[i] = float64(adopters[i]) / float64(totals[i])
		}
	}
	return out
}

// BetweenClassGini measures inequality of adoption rates across the three
// income classes.
func BetweenClassGini(households []*agents.Household) float64 {
	rates := ClassAdoption(households)
	return Gini(rates[:])
}
