// Neighborhood zoning: rectangular regions with their own income mix.
// Zoning is only consulted while the population is generated.
package world

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrInvalidLayout is returned when a zoning layout fails validation.
var ErrInvalidLayout = eris.New("invalid zoning layout")

// weightTolerance bounds how far a zone's weights may sum away from 1.
const weightTolerance = 1e-6

// referenceSize is the edge length the reference layout was drawn for.
const referenceSize = 120

// Zone is an axis-aligned rectangle [XMin,XMax) × [YMin,YMax) with a weighted
// income distribution. Incomes and Weights are parallel; a zero weight means
// the category is never drawn in this zone.
type Zone struct {
	Name    string    `yaml:"name" json:"name"`
	XMin    int       `yaml:"x_min" json:"x_min"`
	XMax    int       `yaml:"x_max" json:"x_max"`
	YMin    int       `yaml:"y_min" json:"y_min"`
	YMax    int       `yaml:"y_max" json:"y_max"`
	Incomes []int     `yaml:"incomes" json:"incomes"`
	Weights []float64 `yaml:"weights" json:"weights"`
}

// Area returns the number of cells in the zone.
func (z Zone) Area() int {
	w := z.XMax - z.XMin
	h := z.YMax - z.YMin
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Contains reports whether c lies inside the zone.
func (z Zone) Contains(c Coord) bool {
	return c.X >= z.XMin && c.X < z.XMax && c.Y >= z.YMin && c.Y < z.YMax
}

// Layout is the full zoning plan of a city.
type Layout struct {
	Zones []Zone `yaml:"zones" json:"zones"`
}

// Validate checks every zone against a width×height grid.
func (l Layout) Validate(width, height int) error {
	if len(l.Zones) == 0 {
		return eris.Wrap(ErrInvalidLayout, "no zones")
	}
	for i, z := range l.Zones {
		if z.Area() == 0 {
			return eris.Wrapf(ErrInvalidLayout, "zone %d (%s): empty rectangle", i, z.Name)
		}
		if z.XMin < 0 || z.YMin < 0 || z.XMax > width || z.YMax > height {
			return eris.Wrapf(ErrInvalidLayout, "zone %d (%s): rectangle [%d,%d)x[%d,%d) outside %dx%d grid",
				i, z.Name, z.XMin, z.XMax, z.YMin, z.YMax, width, height)
		}
		if len(z.Incomes) == 0 {
			return eris.Wrapf(ErrInvalidLayout, "zone %d (%s): no income categories", i, z.Name)
		}
		if len(z.Incomes) != len(z.Weights) {
			return eris.Wrapf(ErrInvalidLayout, "zone %d (%s): %d incomes but %d weights",
				i, z.Name, len(z.Incomes), len(z.Weights))
		}
		seen := make(map[int]bool, len(z.Incomes))
		sum := 0.0
		for j, w := range z.Weights {
			if w < 0 || math.IsNaN(w) {
				return eris.Wrapf(ErrInvalidLayout, "zone %d (%s): negative weight %v", i, z.Name, w)
			}
			if seen[z.Incomes[j]] {
				return eris.Wrapf(ErrInvalidLayout, "zone %d (%s): duplicate income %d", i, z.Name, z.Incomes[j])
			}
			seen[z.Incomes[j]] = true
			sum += w
		}
		if math.Abs(sum-1) > weightTolerance {
			return eris.Wrapf(ErrInvalidLayout, "zone %d (%s): weights sum to %.6f", i, z.Name, sum)
		}
	}
	return nil
}

// AreaWeights returns each zone's share of the total zoned area.
func (l Layout) AreaWeights() []float64 {
	total := 0
	for _, z := range l.Zones {
		total += z.Area()
	}
	weights := make([]float64, len(l.Zones))
	if total == 0 {
		return weights
	}
	for i, z := range l.Zones {
		weights[i] = float64(z.Area()) / float64(total)
	}
	return weights
}

// referenceZones is the 11-neighborhood city drawn on a 120×120 grid.
// Rectangles overlap in places; generation samples each zone independently.
var referenceZones = []Zone{
	{Name: "southwest-flats", XMin: 0, XMax: 84, YMin: 0, YMax: 64, Incomes: []int{1, 2, 3}, Weights: []float64{0.85, 0.15, 0.0}},
	{Name: "east-riverside", XMin: 84, XMax: 120, YMin: 66, YMax: 120, Incomes: []int{1, 2, 3}, Weights: []float64{0.6, 0.39, 0.01}},
	{Name: "west-terraces", XMin: 0, XMax: 39, YMin: 38, YMax: 64, Incomes: []int{1, 2, 3}, Weights: []float64{0.75, 0.25, 0.0}},
	{Name: "market-north", XMin: 39, XMax: 51, YMin: 46, YMax: 64, Incomes: []int{2, 3, 1}, Weights: []float64{0.7, 0.2, 0.1}},
	{Name: "market-south", XMin: 39, XMax: 51, YMin: 38, YMax: 46, Incomes: []int{2, 1, 3}, Weights: []float64{0.7, 0.2, 0.1}},
	{Name: "old-square", XMin: 51, XMax: 57, YMin: 38, YMax: 42, Incomes: []int{2, 3, 1}, Weights: []float64{0.7, 0.2, 0.1}},
	{Name: "park-heights", XMin: 51, XMax: 94, YMin: 42, YMax: 64, Incomes: []int{3, 2, 1}, Weights: []float64{0.7, 0.3, 0.0}},
	{Name: "east-midtown", XMin: 94, XMax: 120, YMin: 42, YMax: 66, Incomes: []int{2, 1, 3}, Weights: []float64{0.7, 0.1, 0.2}},
	{Name: "hillside", XMin: 57, XMax: 120, YMin: 0, YMax: 42, Incomes: []int{3, 2, 1}, Weights: []float64{0.7, 0.3, 0.0}},
	{Name: "boulevard", XMin: 0, XMax: 84, YMin: 64, YMax: 66, Incomes: []int{3, 2, 1}, Weights: []float64{0.7, 0.3, 0.0}},
	{Name: "north-suburbs", XMin: 0, XMax: 84, YMin: 64, YMax: 120, Incomes: []int{2, 3, 1}, Weights: []float64{0.7, 0.2, 0.1}},
}

// DefaultLayout returns the reference city scaled to a width×height grid.
// Zones that shrink to nothing on small grids are dropped.
func DefaultLayout(width, height int) Layout {
	zones := make([]Zone, 0, len(referenceZones))
	for _, ref := range referenceZones {
		z := ref
		z.XMin = scaleEdge(ref.XMin, width)
		z.XMax = scaleEdge(ref.XMax, width)
		z.YMin = scaleEdge(ref.YMin, height)
		z.YMax = scaleEdge(ref.YMax, height)
		z.Incomes = append([]int(nil), ref.Incomes...)
		z.Weights = append([]float64(nil), ref.Weights...)
		if z.Area() == 0 {
			continue
		}
		zones = append(zones, z)
	}
	return Layout{Zones: zones}
}

func scaleEdge(v, size int) int {
	if size == referenceSize {
		return v
	}
	return int(math.Round(float64(v) * float64(size) / referenceSize))
}

// ParseLayout decodes a YAML zoning document.
func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, eris.Wrap(err, "parse zoning layout")
	}
	return l, nil
}

// LoadLayout reads and validates a YAML zoning file for a width×height grid.
func LoadLayout(path string, width, height int) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, eris.Wrapf(err, "read zoning file %s", path)
	}
	l, err := ParseLayout(data)
	if err != nil {
		return Layout{}, err
	}
	if err := l.Validate(width, height); err != nil {
		return Layout{}, eris.Wrapf(err, "zoning file %s", path)
	}
	return l, nil
}
