package agents

import "github.com/talgya/solarsim/internal/entropy"

// MidIncomeSubsidyRate is the chance a mid-income household qualifies.
const MidIncomeSubsidyRate = 0.4

// GrantSubsidies sets subsidy eligibility for every household by income
// class: low income always qualifies, mid income qualifies with probability
// MidIncomeSubsidyRate, high income never does. The model calls it at most
// once per run. Returns the number of eligible households.
func GrantSubsidies(households []*Household, rng *entropy.Stream) int {
	granted := 0
	for _, h := range households {
		switch h.Income {
		case IncomeLow:
			h.subsidized = true
		case IncomeMid:
			h.subsidized = rng.Bernoulli(MidIncomeSubsidyRate)
		default:
			h.subsidized = false
		}
		if h.subsidized {
			granted++
		}
	}
	return granted
}

// SetSubsidies gives every household the same eligibility. Returns the
// number of eligible households.
func SetSubsidies(households []*Household, eligible bool) int {
	for _, h := range households {
		h.subsidized = eligible
	}
	if eligible {
		return len(households)
	}
	return 0
}
