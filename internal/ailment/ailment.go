// Package ailment scores how well a plan's declared disease focus covers a
// member's ailments.
package ailment

import (
	"sort"
	"strings"
)

// Disease code markers with special meaning.
const (
	General = "GENERAL"
	Multi   = "MULTI"
)

// SupportScores are the configurable outcomes of SupportForAilment.
type SupportScores struct {
	DirectMatch  float64 `yaml:"direct_match_score" json:"direct_match_score"`
	MultiDisease float64 `yaml:"multi_disease_score" json:"multi_disease_score"`
	GeneralPlan  float64 `yaml:"general_plan_score" json:"general_plan_score"`
	Mismatched   float64 `yaml:"mismatched_disease_score" json:"mismatched_disease_score"`
}

// DefaultSupportScores returns the stock support table.
func DefaultSupportScores() SupportScores {
	return SupportScores{
		DirectMatch:  1.0,
		MultiDisease: 0.8,
		GeneralPlan:  0.6,
		Mismatched:   0.0,
	}
}

// Values lists every score SupportForAilment can return.
func (s SupportScores) Values() []float64 {
	return []float64{s.DirectMatch, s.MultiDisease, s.GeneralPlan, s.Mismatched}
}

// NormalizeCode trims and upper-cases a disease code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsGeneral reports whether a disease code carries no disease focus.
func IsGeneral(code string) bool {
	switch NormalizeCode(code) {
	case "", General, "NAN", "NONE", "NULL":
		return true
	}
	return false
}

// SplitCodes splits a comma-joined code list, normalizing each entry and
// dropping blanks and duplicates. Order is preserved.
func SplitCodes(joined string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(joined, ",") {
		c := NormalizeCode(part)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SupportForAilment scores one member ailment against a plan disease code.
// A healthy member (GENERAL) never counts as a direct match, so general
// plans score the same for healthy members whatever their declared code.
func SupportForAilment(planCode, memberCode string, s SupportScores) float64 {
	plan := NormalizeCode(planCode)
	member := NormalizeCode(memberCode)
	switch {
	case !IsGeneral(member) && member == plan:
		return s.DirectMatch
	case plan == Multi:
		return s.MultiDisease
	case IsGeneral(plan):
		return s.GeneralPlan
	}
	return s.Mismatched
}

// MemberScore is the mean support over a member's ailment codes. A member
// with no ailments is scored once as GENERAL.
func MemberScore(planCode string, codes []string, s SupportScores) float64 {
	if len(codes) == 0 {
		return SupportForAilment(planCode, General, s)
	}
	var sum float64
	for _, c := range codes {
		sum += SupportForAilment(planCode, c, s)
	}
	return sum / float64(len(codes))
}

// AilmentScore averages per-member scores. An empty household scores 1.0.
func AilmentScore(memberScores []float64) float64 {
	if len(memberScores) == 0 {
		return 1.0
	}
	var sum float64
	for _, v := range memberScores {
		sum += v
	}
	return sum / float64(len(memberScores))
}

// DefaultKeywords maps canonical disease codes to the free-text fragments
// that identify them.
func DefaultKeywords() map[string][]string {
	return map[string][]string{
		"CARDIAC":  {"cardiac", "heart", "cardio"},
		"CANCER":   {"cancer", "onco", "tumor", "tumour"},
		"DIABETES": {"diabetes", "diabetic"},
		"RENAL":    {"renal", "kidney"},
		"LIVER":    {"liver", "hepati"},
		"NEURO":    {"neuro", "stroke", "brain"},
	}
}

// Normalize maps a free-text ailment ("Heart disease", "kidney stones") to a
// canonical code using keywords. Unrecognized text is returned upper-cased.
func Normalize(text string, keywords map[string][]string) string {
	code := NormalizeCode(text)
	if code == "" {
		return ""
	}
	if _, ok := keywords[code]; ok {
		return code
	}
	lower := strings.ToLower(text)
	keys := make([]string, 0, len(keywords))
	for k := range keywords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, kw := range keywords[k] {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return NormalizeCode(k)
			}
		}
	}
	return code
}
