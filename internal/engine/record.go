package engine

import (
	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/metrics"
	"github.com/talgya/solarsim/internal/world"
)

// Record is one row of the model's time series. Step counts completed
// steps, so the snapshot taken at construction is Step 0.
type Record struct {
	Step int `json:"step" db:"step"`

	// Adopters by income class and dwelling type.
	LowHouse      int `json:"low_house" db:"low_house"`
	LowApartment  int `json:"low_apartment" db:"low_apartment"`
	MidHouse      int `json:"mid_house" db:"mid_house"`
	MidApartment  int `json:"mid_apartment" db:"mid_apartment"`
	HighHouse     int `json:"high_house" db:"high_house"`
	HighApartment int `json:"high_apartment" db:"high_apartment"`
	Total         int `json:"total" db:"total"`

	AdoptionRate float64 `json:"adoption_rate" db:"adoption_rate"`
	Clustering   float64 `json:"clustering" db:"clustering"`
	MoransI      float64 `json:"morans_i" db:"morans_i"`
	Gini         float64 `json:"between_class_gini" db:"between_class_gini"`
}

var recordColumns = []string{
	"step",
	"low_house", "low_apartment",
	"mid_house", "mid_apartment",
	"high_house", "high_apartment",
	"total",
	"adoption_rate", "clustering", "morans_i", "between_class_gini",
}

// Columns returns the record's column names in Values order.
func Columns() []string {
	out := make([]string, len(recordColumns))
	copy(out, recordColumns)
	return out
}

// Values returns the record's fields in Columns order.
func (r Record) Values() []float64 {
	return []float64{
		float64(r.Step),
		float64(r.LowHouse), float64(r.LowApartment),
		float64(r.MidHouse), float64(r.MidApartment),
		float64(r.HighHouse), float64(r.HighApartment),
		float64(r.Total),
		r.AdoptionRate, r.Clustering, r.MoransI, r.Gini,
	}
}

// Map returns the record as a column name to value mapping.
func (r Record) Map() map[string]float64 {
	vals := r.Values()
	out := make(map[string]float64, len(vals))
	for i, name := range recordColumns {
		out[name] = vals[i]
	}
	return out
}

// counter returns the adopter counter for an income class and dwelling.
func (r *Record) counter(inc agents.Income, d world.Dwelling) *int {
	house := d == world.DwellingHouse
	switch inc {
	case agents.IncomeLow:
		if house {
			return &r.LowHouse
		}
		return &r.LowApartment
	case agents.IncomeMid:
		if house {
			return &r.MidHouse
		}
		return &r.MidApartment
	case agents.IncomeHigh:
		if house {
			return &r.HighHouse
		}
		return &r.HighApartment
	}
	return nil
}

// collect builds the snapshot record for the model's current state.
func (m *CityModel) collect(step int) (Record, error) {
	rec := Record{Step: step}
	for _, h := range m.households {
		if !h.Adopted() {
			continue
		}
		rec.Total++
		if c := rec.counter(h.Income, h.Type); c != nil {
			*c++
		}
	}

	clustering, err := metrics.ClusteringScore(m.grid, m.households)
	if err != nil {
		return rec, err
	}
	rec.AdoptionRate = metrics.GlobalAdoption(m.households)
	rec.Clustering = clustering
	rec.MoransI = metrics.MoransI(m.params.Width, m.params.Height, m.households)
	rec.Gini = metrics.BetweenClassGini(m.households)
	return rec, nil
}
