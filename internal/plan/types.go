// Package plan holds the catalog and household records shared by the
// filtering, scoring and bundling stages.
package plan

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/gyeh/plan-advisor/internal/ailment"
)

// Plan is one row of the plan catalog.
type Plan struct {
	Name        string `json:"plan_name"`
	Insurer     string `json:"insurer,omitempty"`
	PolicyCode  string `json:"policy_code"`
	DiseaseCode string `json:"disease_code"`
	Status      string `json:"status"`
	Gender      string `json:"gender"`

	AdultMinEntryAge *float64 `json:"adult_min_entry_age"` // years
	AdultMaxEntryAge *float64 `json:"adult_max_entry_age"` // years
	ChildMinEntryAge *float64 `json:"child_min_entry_age"` // days
	ChildMaxEntryAge *float64 `json:"child_max_entry_age"` // years

	InPatient       Flag `json:"in_patient"`
	DayCare         Flag `json:"day_care"`
	AYUSH           Flag `json:"ayush"`
	ModernTreatment Flag `json:"modern_treatment"`
	Maternity       Flag `json:"maternity"`
	OPD             Flag `json:"opd"`
	TopUp           Flag `json:"top_up"`

	CoPayment  *float64 `json:"co_payment"` // percent
	SumInsured *float64 `json:"sum_insured,omitempty"`
}

// planWire accepts the loosely typed values found in exported catalogs.
type planWire struct {
	Name        string `json:"plan_name"`
	Insurer     string `json:"insurer"`
	PolicyCode  string `json:"policy_code"`
	DiseaseCode string `json:"disease_code"`
	Status      string `json:"status"`
	Gender      string `json:"gender"`

	AdultMinEntryAge FlexibleFloat `json:"adult_min_entry_age"`
	AdultMaxEntryAge FlexibleFloat `json:"adult_max_entry_age"`
	ChildMinEntryAge FlexibleFloat `json:"child_min_entry_age"`
	ChildMaxEntryAge FlexibleFloat `json:"child_max_entry_age"`

	InPatient       Flag `json:"in_patient"`
	DayCare         Flag `json:"day_care"`
	AYUSH           Flag `json:"ayush"`
	ModernTreatment Flag `json:"modern_treatment"`
	Maternity       Flag `json:"maternity"`
	OPD             Flag `json:"opd"`
	TopUp           Flag `json:"top_up"`

	CoPayment  FlexibleFloat `json:"co_payment"`
	SumInsured FlexibleFloat `json:"sum_insured"`
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var w planWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Plan{
		Name:             strings.TrimSpace(w.Name),
		Insurer:          w.Insurer,
		PolicyCode:       w.PolicyCode,
		DiseaseCode:      w.DiseaseCode,
		Status:           w.Status,
		Gender:           w.Gender,
		AdultMinEntryAge: w.AdultMinEntryAge.Value,
		AdultMaxEntryAge: w.AdultMaxEntryAge.Value,
		ChildMinEntryAge: w.ChildMinEntryAge.Value,
		ChildMaxEntryAge: w.ChildMaxEntryAge.Value,
		InPatient:        w.InPatient,
		DayCare:          w.DayCare,
		AYUSH:            w.AYUSH,
		ModernTreatment:  w.ModernTreatment,
		Maternity:        w.Maternity,
		OPD:              w.OPD,
		TopUp:            w.TopUp,
		CoPayment:        w.CoPayment.Value,
		SumInsured:       w.SumInsured.Value,
	}
	p.Sanitize()
	return nil
}

// Sanitize drops NaN and infinite values from optional numeric fields.
func (p *Plan) Sanitize() {
	for _, f := range []**float64{
		&p.AdultMinEntryAge, &p.AdultMaxEntryAge,
		&p.ChildMinEntryAge, &p.ChildMaxEntryAge,
		&p.CoPayment, &p.SumInsured,
	} {
		if *f != nil && (math.IsNaN(**f) || math.IsInf(**f, 0)) {
			*f = nil
		}
	}
}

// IsGeneral reports whether the plan has no specific disease focus.
func (p *Plan) IsGeneral() bool {
	return ailment.IsGeneral(p.DiseaseCode)
}

// FlexibleFloat handles both string and number JSON values.
type FlexibleFloat struct {
	Value *float64
}

func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		f.Value = nil
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.Value = &num
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		v, ok, err := ParseFloat(str)
		if err != nil {
			return err
		}
		if ok {
			f.Value = &v
		} else {
			f.Value = nil
		}
		return nil
	}
	f.Value = nil
	return nil
}

// ParseFloat parses catalog numbers such as "10%", "5,00,000" or "NaN".
// Blank, NA and NaN values report ok=false.
func ParseFloat(s string) (v float64, ok bool, err error) {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	switch strings.ToUpper(cleaned) {
	case "", "NA", "N/A", "NAN", "NULL", "NONE", "-":
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

// Flag is a coverage flag. Catalogs encode it as 0/1, booleans or yes/no.
// Only an exact 1 counts as set; any other number is unset.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n == 1
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = ParseFlag(s)
		return nil
	}
	*f = false
	return nil
}

// ParseFlag interprets a textual coverage flag.
func ParseFlag(s string) Flag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "t", "yes", "y", "covered":
		return true
	}
	return false
}

// Float returns 1 for a set flag and 0 otherwise.
func (f Flag) Float() float64 {
	if f {
		return 1
	}
	return 0
}
