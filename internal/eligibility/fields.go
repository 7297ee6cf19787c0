package eligibility

import (
	"strings"

	"github.com/gyeh/plan-advisor/internal/plan"
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldNumber
	fieldFlag
)

// fieldValue is one catalog attribute read through the field table.
type fieldValue struct {
	kind fieldKind
	text string
	num  *float64
	flag plan.Flag
}

type fieldAccessor struct {
	kind fieldKind
	get  func(p *plan.Plan) fieldValue
}

func textField(f func(p *plan.Plan) string) fieldAccessor {
	return fieldAccessor{kind: fieldText, get: func(p *plan.Plan) fieldValue {
		return fieldValue{kind: fieldText, text: f(p)}
	}}
}

func numberField(f func(p *plan.Plan) *float64) fieldAccessor {
	return fieldAccessor{kind: fieldNumber, get: func(p *plan.Plan) fieldValue {
		return fieldValue{kind: fieldNumber, num: f(p)}
	}}
}

func flagField(f func(p *plan.Plan) plan.Flag) fieldAccessor {
	return fieldAccessor{kind: fieldFlag, get: func(p *plan.Plan) fieldValue {
		return fieldValue{kind: fieldFlag, flag: f(p)}
	}}
}

// planFields maps catalog column names to typed accessors.
var planFields = map[string]fieldAccessor{
	"plan_name":           textField(func(p *plan.Plan) string { return p.Name }),
	"insurer":             textField(func(p *plan.Plan) string { return p.Insurer }),
	"policy_code":         textField(func(p *plan.Plan) string { return p.PolicyCode }),
	"disease_code":        textField(func(p *plan.Plan) string { return p.DiseaseCode }),
	"status":              textField(func(p *plan.Plan) string { return p.Status }),
	"gender":              textField(func(p *plan.Plan) string { return p.Gender }),
	"adult_min_entry_age": numberField(func(p *plan.Plan) *float64 { return p.AdultMinEntryAge }),
	"adult_max_entry_age": numberField(func(p *plan.Plan) *float64 { return p.AdultMaxEntryAge }),
	"child_min_entry_age": numberField(func(p *plan.Plan) *float64 { return p.ChildMinEntryAge }),
	"child_max_entry_age": numberField(func(p *plan.Plan) *float64 { return p.ChildMaxEntryAge }),
	"co_payment":          numberField(func(p *plan.Plan) *float64 { return p.CoPayment }),
	"sum_insured":         numberField(func(p *plan.Plan) *float64 { return p.SumInsured }),
	"in_patient":          flagField(func(p *plan.Plan) plan.Flag { return p.InPatient }),
	"day_care":            flagField(func(p *plan.Plan) plan.Flag { return p.DayCare }),
	"ayush":               flagField(func(p *plan.Plan) plan.Flag { return p.AYUSH }),
	"modern_treatment":    flagField(func(p *plan.Plan) plan.Flag { return p.ModernTreatment }),
	"maternity":           flagField(func(p *plan.Plan) plan.Flag { return p.Maternity }),
	"opd":                 flagField(func(p *plan.Plan) plan.Flag { return p.OPD }),
	"top_up":              flagField(func(p *plan.Plan) plan.Flag { return p.TopUp }),
}

// lookupField resolves a column name case-insensitively.
func lookupField(name string) (fieldAccessor, bool) {
	f, ok := planFields[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// KnownField reports whether name is a catalog column usable in filters.
func KnownField(name string) bool {
	_, ok := lookupField(name)
	return ok
}

// equals compares a member's declared value with a plan attribute.
func (v fieldValue) equals(member string) bool {
	switch v.kind {
	case fieldNumber:
		if v.num == nil {
			return false
		}
		n, ok, err := plan.ParseFloat(member)
		return err == nil && ok && n == *v.num
	case fieldFlag:
		return plan.ParseFlag(member) == v.flag
	}
	return strings.EqualFold(strings.TrimSpace(v.text), strings.TrimSpace(member))
}
