package catalog

import (
	"sort"

	"github.com/gyeh/plan-advisor/internal/ailment"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/policy"
)

// Report summarizes a loaded catalog for operators.
type Report struct {
	Total          int                     `json:"total"`
	ByCategory     map[policy.Category]int `json:"by_category"`
	ByStatus       map[string]int          `json:"by_status"`
	ByDisease      map[string]int          `json:"by_disease"`
	NoAgeBand      []string                `json:"no_age_band,omitempty"`
	PolicyWarnings []string                `json:"policy_warnings,omitempty"`
}

// Inspect counts plans by category, status and disease code and lists plans
// whose policy code cannot be interpreted or that declare no age band.
func Inspect(plans []plan.Plan) Report {
	r := Report{
		Total:      len(plans),
		ByCategory: map[policy.Category]int{},
		ByStatus:   map[string]int{},
		ByDisease:  map[string]int{},
	}
	for _, p := range plans {
		r.ByCategory[policy.Categorize(p.PolicyCode)]++
		r.ByStatus[p.Status]++
		code := ailment.NormalizeCode(p.DiseaseCode)
		if p.IsGeneral() {
			code = ailment.General
		}
		r.ByDisease[code]++

		if p.AdultMinEntryAge == nil && p.AdultMaxEntryAge == nil &&
			p.ChildMinEntryAge == nil && p.ChildMaxEntryAge == nil {
			r.NoAgeBand = append(r.NoAgeBand, p.Name)
		}
		// Bare disease tokens are individual plans, not malformed codes.
		if policy.Kind(p.PolicyCode) == policy.KindDisease {
			continue
		}
		if v := policy.Check(p.PolicyCode, 1, 1); v.Warning != nil {
			r.PolicyWarnings = append(r.PolicyWarnings, p.Name+": "+v.Warning.Error())
		}
	}
	sort.Strings(r.NoAgeBand)
	sort.Strings(r.PolicyWarnings)
	return r
}
