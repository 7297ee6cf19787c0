package policy

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// MaxGT0Children is the child capacity assumed for the GT0 ("at least one
// child") marker.
const MaxGT0Children = 6

// WarningKind distinguishes the two fail-open outcomes of Check.
type WarningKind int

const (
	// WarnSegments means the code did not split into type, adult and child parts.
	WarnSegments WarningKind = iota + 1
	// WarnParse means an adult or child part could not be interpreted.
	WarnParse
)

// ParseWarning records why a code was accepted without being understood.
type ParseWarning struct {
	Kind   WarningKind
	Code   string
	Reason string
}

func (w *ParseWarning) Error() string {
	return fmt.Sprintf("policy code %q: %s", w.Code, w.Reason)
}

// Verdict is the outcome of Check. When Warning is set the code was not
// understood and Valid is true.
type Verdict struct {
	Valid   bool
	Warning *ParseWarning
}

// Check evaluates whether a plan with the given policy code can cover a
// household of adults and children. Rules are applied in order and the first
// one that decides wins.
func Check(code string, adults, children int) Verdict {
	c := Normalize(code)
	if c == "" {
		return Verdict{Valid: true}
	}
	if c == "ADN_NA_0" {
		return Verdict{Valid: true}
	}
	total := adults + children
	if total == 0 {
		return Verdict{Valid: false}
	}
	if strings.Contains(c, TypeFloater) && total <= 1 {
		return Verdict{Valid: false}
	}
	if c == "MIX_1_1" {
		return Verdict{Valid: (adults == 1 && children == 0) || (adults == 0 && children == 1)}
	}

	parts := strings.Split(c, "_")
	if len(parts) != 3 {
		return Verdict{Valid: true, Warning: &ParseWarning{
			Kind:   WarnSegments,
			Code:   code,
			Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts)),
		}}
	}
	typ, adultPart, childPart := parts[0], parts[1], parts[2]

	maxAdults, err := parseAdults(typ, adultPart)
	if err != nil {
		return Verdict{Valid: true, Warning: &ParseWarning{Kind: WarnParse, Code: code, Reason: err.Error()}}
	}
	maxChildren, minChildren, err := parseChildren(childPart)
	if err != nil {
		return Verdict{Valid: true, Warning: &ParseWarning{Kind: WarnParse, Code: code, Reason: err.Error()}}
	}

	valid := adults <= maxAdults && children <= maxChildren && children >= minChildren
	if typ == TypeIndividual && total != 1 {
		valid = false
	}
	return Verdict{Valid: valid}
}

func parseAdults(typ, part string) (int, error) {
	if isDigits(part) {
		return strconv.Atoi(part)
	}
	if part == "SR" && typ == TypeFloater {
		return 2, nil
	}
	return 0, fmt.Errorf("unrecognized adult part %q", part)
}

func parseChildren(part string) (maxChildren, minChildren int, err error) {
	if isDigits(part) {
		n, err := strconv.Atoi(part)
		return n, 0, err
	}
	if part == "GT0" {
		return MaxGT0Children, 1, nil
	}
	return 0, 0, fmt.Errorf("unrecognized child part %q", part)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsValidForFamily reports whether a plan can cover the household. Codes that
// cannot be understood are accepted and logged on log (which may be nil).
func IsValidForFamily(code string, adults, children int, log *zap.Logger) bool {
	v := Check(code, adults, children)
	if v.Warning != nil && log != nil {
		fields := []zap.Field{
			zap.String("policy_code", v.Warning.Code),
			zap.String("reason", v.Warning.Reason),
		}
		if v.Warning.Kind == WarnSegments {
			log.Warn("unexpected policy code format, accepting plan", fields...)
		} else {
			log.Error("could not parse policy code, accepting plan", fields...)
		}
	}
	return v.Valid
}
