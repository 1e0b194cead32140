// Package world provides the bounded city lattice, dwelling occupancy rules,
// neighborhood zoning and spatial trait fields.
package world

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrOutOfBounds is returned for coordinates outside the grid.
	ErrOutOfBounds = eris.New("coordinate out of bounds")
	// ErrOccupied is returned when a placement would break the occupancy rules.
	ErrOccupied = eris.New("cell cannot host dwelling")
)

// Coord is a cell position. X runs over the width, Y over the height.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// MooreDirections are the eight neighbor offsets at Chebyshev distance 1.
var MooreDirections = [8]Coord{
	{X: -1, Y: -1},
	{X: -1, Y: 0},
	{X: -1, Y: 1},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
	{X: 1, Y: -1},
	{X: 1, Y: 0},
	{X: 1, Y: 1},
}

// Moore returns the eight surrounding coordinates, which may lie off-grid.
func (c Coord) Moore() [8]Coord {
	var result [8]Coord
	for i, d := range MooreDirections {
		result[i] = Coord{X: c.X + d.X, Y: c.Y + d.Y}
	}
	return result
}

// Dwelling is the household's building type.
type Dwelling uint8

const (
	DwellingHouse     Dwelling = 1 // Freestanding, exclusive occupancy
	DwellingApartment Dwelling = 2 // Shared building, any number per cell
)

// Code is the numeric dwelling code used in the utility function.
func (d Dwelling) Code() int {
	return int(d)
}

// Exclusive reports whether the dwelling must be alone in its cell.
func (d Dwelling) Exclusive() bool {
	return d == DwellingHouse
}

// IncludesCenter reports whether the household's own cell counts toward its
// neighborhood. Apartments share a building with their cellmates; houses do not.
func (d Dwelling) IncludesCenter() bool {
	return d == DwellingApartment
}

// Valid reports whether d is a known dwelling type.
func (d Dwelling) Valid() bool {
	return d == DwellingHouse || d == DwellingApartment
}

func (d Dwelling) String() string {
	switch d {
	case DwellingHouse:
		return "house"
	case DwellingApartment:
		return "apartment"
	default:
		return fmt.Sprintf("dwelling(%d)", uint8(d))
	}
}
