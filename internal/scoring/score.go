// Package scoring computes the member-aware composite score of each plan.
package scoring

import (
	"github.com/gyeh/plan-advisor/internal/ailment"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/policy"
)

// Options configures ScorePlans.
type Options struct {
	Support  ailment.SupportScores
	Weights  Weights
	AdultAge float64
}

// DefaultOptions returns the stock scoring configuration.
func DefaultOptions() Options {
	return Options{
		Support:  ailment.DefaultSupportScores(),
		Weights:  DefaultWeights(),
		AdultAge: plan.DefaultAdultAge,
	}
}

// ScorePlans enriches every plan with category, family fit, per-member
// ailment scores and the composite Score_MemberAware. Input order is kept.
func ScorePlans(plans []plan.Plan, members []plan.Member, opts Options) []plan.ScoredPlan {
	if opts.AdultAge <= 0 {
		opts.AdultAge = plan.DefaultAdultAge
	}
	adults, children := plan.CountAdultsChildren(members, opts.AdultAge)

	labels := make([]string, len(members))
	for i, m := range members {
		labels[i] = m.Label()
	}
	rows := make(map[int][]Column, len(opts.Weights.RowColumns))
	for _, r := range opts.Weights.rows() {
		rows[r] = resolveColumns(opts.Weights.RowColumns[r], labels)
	}

	out := make([]plan.ScoredPlan, 0, len(plans))
	for _, p := range plans {
		sp := plan.ScoredPlan{
			Plan:         p,
			Category:     policy.Categorize(p.PolicyCode),
			MemberScores: make(map[string]float64, len(members)),
		}
		sp.PlanAdults, sp.PlanChildren = policy.ParseCapacity(p.PolicyCode)
		sp.FamilyFit = sp.PlanAdults >= adults && sp.PlanChildren >= children

		perMember := make([]float64, 0, len(members))
		for _, m := range members {
			s := ailment.MemberScore(p.DiseaseCode, m.DiseaseCodes, opts.Support)
			sp.MemberScores[m.Label()] = s
			perMember = append(perMember, s)
		}
		sp.AilmentScore = ailment.AilmentScore(perMember)
		sp.ScoreMemberAware = Composite(&sp, rows, opts.Weights)
		out = append(out, sp)
	}
	return out
}

// Composite sums row_weight * row_score over rows with at least one column.
func Composite(sp *plan.ScoredPlan, rows map[int][]Column, w Weights) float64 {
	var total float64
	for _, r := range w.rows() {
		cols := rows[r]
		if len(cols) == 0 {
			continue
		}
		total += w.RowWeights[r] * RowScore(sp, cols, w)
	}
	return total
}

// RowScore is the weighted sum of a row's normalized columns.
func RowScore(sp *plan.ScoredPlan, cols []Column, w Weights) float64 {
	weights := w.WithinRowWeights(len(cols))
	var s float64
	for i, c := range cols {
		s += weights[i] * c.Normalize(sp)
	}
	return s
}
