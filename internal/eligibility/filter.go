package eligibility

import (
	"fmt"
	"strings"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// FilterKind selects how a member attribute is matched against the catalog.
type FilterKind string

const (
	// KindRange matches when MinField <= value <= MaxField. Missing bounds are open.
	KindRange FilterKind = "range"
	// KindChildAge matches a child's age in years against the child entry band,
	// whose minimum is declared in days.
	KindChildAge FilterKind = "child_age"
	// KindGender matches Female members to Female or All plans, others to All.
	KindGender FilterKind = "gender"
	// KindEquals matches Field against the declared value.
	KindEquals FilterKind = "equals"
)

// ValueFilter is one configured score-increment query.
type ValueFilter struct {
	Feature  string     `yaml:"feature" json:"feature"`
	Kind     FilterKind `yaml:"kind" json:"kind"`
	Field    string     `yaml:"field,omitempty" json:"field,omitempty"`
	MinField string     `yaml:"min_field,omitempty" json:"min_field,omitempty"`
	MaxField string     `yaml:"max_field,omitempty" json:"max_field,omitempty"`
	Weight   float64    `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// DefaultValueFilters returns the stock queries for age, child age and gender.
// Other declared attributes fall back to equality on the same-named column.
func DefaultValueFilters() []ValueFilter {
	return []ValueFilter{
		{Feature: "age", Kind: KindRange, MinField: "adult_min_entry_age", MaxField: "adult_max_entry_age"},
		{Feature: "child_age", Kind: KindChildAge, MinField: "child_min_entry_age", MaxField: "child_max_entry_age"},
		{Feature: "gender", Kind: KindGender, Field: "gender"},
	}
}

// Validate checks that the filter references known catalog columns.
func (f ValueFilter) Validate() error {
	if strings.TrimSpace(f.Feature) == "" {
		return fmt.Errorf("value filter without feature")
	}
	if f.Weight < 0 {
		return fmt.Errorf("value filter %q: negative weight", f.Feature)
	}
	check := func(name string) error {
		if name != "" && !KnownField(name) {
			return fmt.Errorf("value filter %q: unknown field %q", f.Feature, name)
		}
		return nil
	}
	switch f.Kind {
	case KindRange, KindChildAge:
		if f.MinField == "" && f.MaxField == "" {
			return fmt.Errorf("value filter %q: range needs min_field or max_field", f.Feature)
		}
		if err := check(f.MinField); err != nil {
			return err
		}
		return check(f.MaxField)
	case KindGender, KindEquals:
		return check(f.field())
	}
	return fmt.Errorf("value filter %q: unknown kind %q", f.Feature, f.Kind)
}

func (f ValueFilter) field() string {
	if f.Field != "" {
		return f.Field
	}
	return f.Feature
}

// Match reports whether plan p satisfies the filter for the member value.
func (f ValueFilter) Match(p *plan.Plan, value string) bool {
	switch f.Kind {
	case KindRange:
		v, ok, err := plan.ParseFloat(value)
		if err != nil || !ok {
			return false
		}
		return within(v, numberOf(p, f.MinField), numberOf(p, f.MaxField))
	case KindChildAge:
		v, ok, err := plan.ParseFloat(value)
		if err != nil || !ok {
			return false
		}
		return childBandAdmits(numberOf(p, f.MinField), numberOf(p, f.MaxField), v)
	case KindGender:
		acc, ok := lookupField(f.field())
		if !ok {
			return false
		}
		return GenderAllows(acc.get(p).text, value)
	case KindEquals:
		acc, ok := lookupField(f.field())
		if !ok {
			return false
		}
		return acc.get(p).equals(value)
	}
	return false
}

func numberOf(p *plan.Plan, field string) *float64 {
	if field == "" {
		return nil
	}
	acc, ok := lookupField(field)
	if !ok || acc.kind != fieldNumber {
		return nil
	}
	return acc.get(p).num
}

func within(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

// childBandAdmits checks a child's age in years against a band whose
// minimum is in days and maximum in years.
func childBandAdmits(minDays, maxYears *float64, years float64) bool {
	if minDays != nil && *minDays > years*365 {
		return false
	}
	if maxYears != nil && *maxYears < years {
		return false
	}
	return true
}

// GenderAllows reports whether a plan's gender restriction admits a member.
func GenderAllows(planGender, memberGender string) bool {
	pg := strings.ToLower(strings.TrimSpace(planGender))
	if pg == "all" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(memberGender), "female") && pg == "female"
}
