// Package policy decodes compact plan policy codes such as FLO_2_1, MIX_1_1,
// IND_1_0 or ADN_NA_0 and decides whether a plan fits a household.
package policy

import (
	"regexp"
	"strconv"
	"strings"
)

// Category is the product family a policy code belongs to.
type Category string

const (
	CategoryFloater    Category = "Family Floater"
	CategoryIndividual Category = "Individual"
	CategoryAddOn      Category = "Add-on"
	CategoryUnknown    Category = "Unknown"
)

// Plan type prefixes.
const (
	TypeFloater    = "FLO"
	TypeMixed      = "MIX"
	TypeIndividual = "IND"
	TypeAddOn      = "ADN"
)

var capacityPattern = regexp.MustCompile(`^(FLO|MIX)_(\d+)_(\d+)$`)

// Normalize trims and upper-cases a policy code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ParseCapacity returns the adult and child capacity encoded in a FLO or MIX
// code. Anything else, including an empty code, is treated as an individual
// plan and yields (1, 0).
func ParseCapacity(code string) (adults, children int) {
	m := capacityPattern.FindStringSubmatch(Normalize(code))
	if m == nil {
		return 1, 0
	}
	a, err := strconv.Atoi(m[2])
	if err != nil {
		return 1, 0
	}
	c, err := strconv.Atoi(m[3])
	if err != nil {
		return 1, 0
	}
	return a, c
}

// Categorize maps a policy code to its product category from the prefix.
// A bare alphabetic token such as CANCER is a disease-specific individual plan.
func Categorize(code string) Category {
	c := Normalize(code)
	switch {
	case c == "":
		return CategoryUnknown
	case strings.HasPrefix(c, TypeFloater+"_"), strings.HasPrefix(c, TypeMixed+"_"):
		return CategoryFloater
	case strings.HasPrefix(c, TypeIndividual+"_"):
		return CategoryIndividual
	case strings.HasPrefix(c, TypeAddOn+"_"):
		return CategoryAddOn
	case !strings.Contains(c, "_") && isAlpha(c):
		return CategoryIndividual
	}
	return CategoryUnknown
}

// KindDisease is reported by Kind for bare disease tokens such as CANCER.
const KindDisease = "DISEASE"

// Kind returns the type prefix of a code (FLO, MIX, IND, ADN), KindDisease
// for a bare alphabetic token, or "" when the code has neither.
func Kind(code string) string {
	c := Normalize(code)
	prefix, _, found := strings.Cut(c, "_")
	if found {
		switch prefix {
		case TypeFloater, TypeMixed, TypeIndividual, TypeAddOn:
			return prefix
		}
		return ""
	}
	if isAlpha(c) {
		return KindDisease
	}
	return ""
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}
