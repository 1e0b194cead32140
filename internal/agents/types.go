// Package agents provides the household data model, the adoption decision
// and the population spawner.
package agents

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/talgya/solarsim/internal/world"
)

// ErrNotPlaced is returned when a spatial query is made for a household that
// has not been placed on the grid yet.
var ErrNotPlaced = eris.New("household not placed on grid")

// HouseholdID is a unique identifier for a household.
type HouseholdID int

// Income is the household's income class. The numeric value feeds the
// utility function directly.
type Income uint8

const (
	IncomeLow  Income = 1
	IncomeMid  Income = 2
	IncomeHigh Income = 3
)

// Incomes lists every income class in ascending order.
var Incomes = [3]Income{IncomeLow, IncomeMid, IncomeHigh}

// Valid reports whether i is a known income class.
func (i Income) Valid() bool {
	return i >= IncomeLow && i <= IncomeHigh
}

func (i Income) String() string {
	switch i {
	case IncomeLow:
		return "low"
	case IncomeMid:
		return "mid"
	case IncomeHigh:
		return "high"
	default:
		return fmt.Sprintf("income(%d)", uint8(i))
	}
}

// Education is the household's highest education level.
type Education uint8

const (
	EducationLow       Education = 1
	EducationSecondary Education = 2
	EducationTertiary  Education = 3
)

// Valid reports whether e is a known education level.
func (e Education) Valid() bool {
	return e >= EducationLow && e <= EducationTertiary
}

func (e Education) String() string {
	switch e {
	case EducationLow:
		return "low"
	case EducationSecondary:
		return "secondary"
	case EducationTertiary:
		return "tertiary"
	default:
		return fmt.Sprintf("education(%d)", uint8(e))
	}
}

// Household is one agent of the city. Demographic attributes are fixed at
// creation. Subsidy eligibility is granted at most once by the model, and
// adoption only ever moves from false to true.
type Household struct {
	ID HouseholdID `json:"id"`

	// Demographics
	Income    Income         `json:"income"`
	Education Education      `json:"education"`
	Type      world.Dwelling `json:"type"`

	// Attitudes, both in [0, 1]
	Consciousness float64 `json:"environmental_consciousness"`
	Stubbornness  float64 `json:"stubbornness"`

	pos        world.Coord
	placed     bool
	subsidized bool
	adopted    bool
}

// Dwelling returns the household's building type. It satisfies world.Resident.
func (h *Household) Dwelling() world.Dwelling {
	return h.Type
}

// Position returns the household's cell and whether it has been placed.
func (h *Household) Position() (world.Coord, bool) {
	return h.pos, h.placed
}

// Place records the household's cell. Households never move, so a second
// call is rejected.
func (h *Household) Place(c world.Coord) error {
	if h.placed {
		return eris.Errorf("household %d already placed at %s", h.ID, h.pos)
	}
	h.pos = c
	h.placed = true
	return nil
}

// Subsidized reports subsidy eligibility.
func (h *Household) Subsidized() bool {
	return h.subsidized
}

// Adopted reports whether the household has installed solar panels.
func (h *Household) Adopted() bool {
	return h.adopted
}

// Adopt marks the household as an adopter. Adoption is irreversible.
func (h *Household) Adopt() {
	h.adopted = true
}

// String returns a short description.
func (h *Household) String() string {
	return fmt.Sprintf("Household(%d, %s income, %s, adopted=%t)", h.ID, h.Income, h.Type, h.adopted)
}
