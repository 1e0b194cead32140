package world

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Resident is anything that can occupy a grid cell.
type Resident interface {
	Dwelling() Dwelling
}

// Grid is a bounded W×H lattice without wraparound. Each cell holds an
// ordered occupant list. A house cell holds exactly one occupant; apartment
// cells hold any number of apartments and never a house.
type Grid[T Resident] struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	cells [][]T // indexed x*Height + y
}

// NewGrid creates an empty grid. Dimensions must be positive.
func NewGrid[T Resident](width, height int) (*Grid[T], error) {
	if width <= 0 || height <= 0 {
		return nil, eris.Errorf("grid dimensions must be positive, got %dx%d", width, height)
	}
	return &Grid[T]{
		Width:  width,
		Height: height,
		cells:  make([][]T, width*height),
	}, nil
}

// InBounds returns true if the coordinate lies on the grid.
func (g *Grid[T]) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

func (g *Grid[T]) index(c Coord) int {
	return c.X*g.Height + c.Y
}

// CanHost reports whether a dwelling of type d may be placed at c.
// Houses need an empty cell; apartments need a cell empty or holding only apartments.
func (g *Grid[T]) CanHost(c Coord, d Dwelling) bool {
	if !g.InBounds(c) {
		return false
	}
	contents := g.cells[g.index(c)]
	if len(contents) == 0 {
		return true
	}
	if d.Exclusive() {
		return false
	}
	for _, r := range contents {
		if r.Dwelling().Exclusive() {
			return false
		}
	}
	return true
}

// Place appends r to the occupant list of c.
func (g *Grid[T]) Place(r T, c Coord) error {
	if !g.InBounds(c) {
		return eris.Wrapf(ErrOutOfBounds, "place at %s", c)
	}
	if !g.CanHost(c, r.Dwelling()) {
		return eris.Wrapf(ErrOccupied, "place %s at %s", r.Dwelling(), c)
	}
	i := g.index(c)
	g.cells[i] = append(g.cells[i], r)
	return nil
}

// IsEmpty returns true if no one lives at c. Off-grid cells are empty.
func (g *Grid[T]) IsEmpty(c Coord) bool {
	if !g.InBounds(c) {
		return true
	}
	return len(g.cells[g.index(c)]) == 0
}

// Occupants returns a copy of the occupant list at c.
func (g *Grid[T]) Occupants(c Coord) []T {
	if !g.InBounds(c) {
		return nil
	}
	contents := g.cells[g.index(c)]
	out := make([]T, len(contents))
	copy(out, contents)
	return out
}

// Neighbors returns the occupants of the eight Moore cells around c, plus
// the occupants of c itself when includeCenter is set. Off-grid cells are skipped.
func (g *Grid[T]) Neighbors(c Coord, includeCenter bool) ([]T, error) {
	if !g.InBounds(c) {
		return nil, eris.Wrapf(ErrOutOfBounds, "neighbors of %s", c)
	}
	result := make([]T, 0, 8)
	for _, n := range c.Moore() {
		if !g.InBounds(n) {
			continue
		}
		result = append(result, g.cells[g.index(n)]...)
	}
	if includeCenter {
		result = append(result, g.cells[g.index(c)]...)
	}
	return result, nil
}

// Cells calls fn for every non-empty cell in column-major order.
func (g *Grid[T]) Cells(fn func(c Coord, occupants []T)) {
	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Height; y++ {
			contents := g.cells[x*g.Height+y]
			if len(contents) > 0 {
				fn(Coord{X: x, Y: y}, contents)
			}
		}
	}
}

// OccupiedCells returns the number of non-empty cells.
func (g *Grid[T]) OccupiedCells() int {
	n := 0
	for _, contents := range g.cells {
		if len(contents) > 0 {
			n++
		}
	}
	return n
}

// String returns a summary of the grid.
func (g *Grid[T]) String() string {
	return fmt.Sprintf("Grid(%dx%d, occupied=%d)", g.Width, g.Height, g.OccupiedCells())
}
