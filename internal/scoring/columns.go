package scoring

import (
	"math"
	"strings"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// Role selects the normalizer applied to a column.
type Role int

const (
	RoleNeutral Role = iota
	RoleCoPayment
	RoleFlag
	RoleMinAge
	RoleMaxAge
	RoleScore
)

func (r Role) String() string {
	switch r {
	case RoleCoPayment:
		return "co_payment"
	case RoleFlag:
		return "flag"
	case RoleMinAge:
		return "min_age"
	case RoleMaxAge:
		return "max_age"
	case RoleScore:
		return "score"
	}
	return "neutral"
}

// Column is one scored attribute of a plan.
type Column struct {
	Name  string
	Role  Role
	value func(sp *plan.ScoredPlan) (float64, bool)
}

// MemberScoresColumn expands to one column per household member.
const MemberScoresColumn = "member_scores"

func optional(f func(p *plan.Plan) *float64) func(sp *plan.ScoredPlan) (float64, bool) {
	return func(sp *plan.ScoredPlan) (float64, bool) {
		v := f(&sp.Plan)
		if v == nil {
			return 0, false
		}
		return *v, true
	}
}

func flag(f func(p *plan.Plan) plan.Flag) func(sp *plan.ScoredPlan) (float64, bool) {
	return func(sp *plan.ScoredPlan) (float64, bool) {
		return f(&sp.Plan).Float(), true
	}
}

// columns maps configured column names to typed columns.
var columns = map[string]Column{
	"adult_min_entry_age": {Role: RoleMinAge, value: optional(func(p *plan.Plan) *float64 { return p.AdultMinEntryAge })},
	"adult_max_entry_age": {Role: RoleMaxAge, value: optional(func(p *plan.Plan) *float64 { return p.AdultMaxEntryAge })},
	// Child minimum entry age is declared in days.
	"child_min_entry_age": {Role: RoleMinAge, value: func(sp *plan.ScoredPlan) (float64, bool) {
		if sp.ChildMinEntryAge == nil {
			return 0, false
		}
		return *sp.ChildMinEntryAge / 365, true
	}},
	"child_max_entry_age": {Role: RoleMaxAge, value: optional(func(p *plan.Plan) *float64 { return p.ChildMaxEntryAge })},
	"co_payment":          {Role: RoleCoPayment, value: optional(func(p *plan.Plan) *float64 { return p.CoPayment })},
	"top_up":              {Role: RoleFlag, value: flag(func(p *plan.Plan) plan.Flag { return p.TopUp })},
	"in_patient":          {Role: RoleFlag, value: flag(func(p *plan.Plan) plan.Flag { return p.InPatient })},
	"day_care":            {Role: RoleFlag, value: flag(func(p *plan.Plan) plan.Flag { return p.DayCare })},
	"ayush":               {Role: RoleFlag, value: flag(func(p *plan.Plan) plan.Flag { return p.AYUSH })},
	"modern_treatment":    {Role: RoleFlag, value: flag(func(p *plan.Plan) plan.Flag { return p.ModernTreatment })},
	"maternity":           {Role: RoleFlag, value: flag(func(p *plan.Plan) plan.Flag { return p.Maternity })},
	"opd":                 {Role: RoleFlag, value: flag(func(p *plan.Plan) plan.Flag { return p.OPD })},
	"ailment_score": {Role: RoleScore, value: func(sp *plan.ScoredPlan) (float64, bool) {
		return sp.AilmentScore, true
	}},
}

// resolveColumns turns configured names into columns, expanding
// member_scores in member order. Unknown names become neutral columns.
func resolveColumns(names []string, members []string) []Column {
	var out []Column
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == MemberScoresColumn {
			for _, m := range members {
				member := m
				out = append(out, Column{
					Name: plan.ScoreColumn(member),
					Role: RoleScore,
					value: func(sp *plan.ScoredPlan) (float64, bool) {
						v, ok := sp.MemberScores[member]
						return v, ok
					},
				})
			}
			continue
		}
		c, ok := columns[key]
		if !ok {
			out = append(out, Column{Name: name, Role: RoleNeutral})
			continue
		}
		c.Name = key
		out = append(out, c)
	}
	return out
}

// KnownColumn reports whether name has a typed normalizer.
func KnownColumn(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	_, ok := columns[key]
	return ok || key == MemberScoresColumn
}

// Normalize maps the column's raw value for sp into [0, 1].
func (c Column) Normalize(sp *plan.ScoredPlan) float64 {
	if c.value == nil {
		return 0.5
	}
	v, ok := c.value(sp)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		if c.Role == RoleFlag {
			return 0
		}
		return 0.5
	}
	switch c.Role {
	case RoleCoPayment:
		return normalizeCoPayment(v)
	case RoleFlag:
		if v == 1 {
			return 1
		}
		return 0
	case RoleMinAge:
		return clamp01(1 - v/100)
	case RoleMaxAge:
		return clamp01(v / 100)
	case RoleScore:
		return clamp01(v)
	}
	return 0.5
}

func normalizeCoPayment(pct float64) float64 {
	switch {
	case pct <= 0:
		return 1.0
	case pct <= 10:
		return 0.7
	case pct <= 20:
		return 0.4
	}
	return 0.1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
