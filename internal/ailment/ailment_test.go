package ailment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportForAilment(t *testing.T) {
	s := DefaultSupportScores()

	assert.Equal(t, 1.0, SupportForAilment("CANCER", "CANCER", s))
	assert.Equal(t, 1.0, SupportForAilment(" cancer", "CANCER ", s))
	assert.Equal(t, 0.0, SupportForAilment("CARDIAC", "CANCER", s))
	assert.Equal(t, 0.8, SupportForAilment("MULTI", "CANCER", s))
	assert.Equal(t, 0.6, SupportForAilment("GENERAL", "CANCER", s))
	assert.Equal(t, 0.6, SupportForAilment("", "CANCER", s))
	assert.Equal(t, 0.6, SupportForAilment("nan", "DIABETES", s))
}

func TestSupportForAilment_HealthyMember(t *testing.T) {
	s := DefaultSupportScores()

	assert.Equal(t, 0.6, SupportForAilment("GENERAL", "GENERAL", s))
	assert.Equal(t, 0.8, SupportForAilment("MULTI", "GENERAL", s))
	assert.Equal(t, 0.0, SupportForAilment("CANCER", "GENERAL", s))
}

// Every outcome comes from the configured table.
func TestSupportForAilment_Bounded(t *testing.T) {
	s := SupportScores{DirectMatch: 0.9, MultiDisease: 0.7, GeneralPlan: 0.3, Mismatched: 0.1}
	codes := []string{"CANCER", "CARDIAC", "MULTI", "GENERAL", "", "nan", "renal"}
	for _, p := range codes {
		for _, m := range codes {
			assert.Contains(t, s.Values(), SupportForAilment(p, m, s), "plan=%q member=%q", p, m)
		}
	}
}

func TestMemberScore(t *testing.T) {
	s := DefaultSupportScores()

	assert.Equal(t, 0.6, MemberScore("GENERAL", nil, s))
	assert.Equal(t, 0.5, MemberScore("CANCER", []string{"CANCER", "CARDIAC"}, s))
	assert.InDelta(t, 0.8, MemberScore("MULTI", []string{"CANCER", "CARDIAC"}, s), 1e-9)
}

func TestAilmentScore(t *testing.T) {
	assert.Equal(t, 1.0, AilmentScore(nil))
	assert.InDelta(t, 0.6, AilmentScore([]float64{0.6, 0.6, 0.6}), 1e-9)
	assert.InDelta(t, 0.5, AilmentScore([]float64{1, 0}), 1e-9)
}

func TestSplitCodes(t *testing.T) {
	assert.Equal(t, []string{"CANCER", "MULTI", "RENAL"}, SplitCodes(" cancer, MULTI,,renal ,CANCER"))
	assert.Nil(t, SplitCodes(""))
}

func TestNormalize(t *testing.T) {
	kw := DefaultKeywords()

	tests := map[string]string{
		"Heart disease":    "CARDIAC",
		"kidney stones":    "RENAL",
		"Hepatitis B":      "LIVER",
		"brain tumour":     "CANCER",
		"cancer":           "CANCER",
		"DIABETES":         "DIABETES",
		"asthma":           "ASTHMA",
		"  ":               "",
		"Type 2 diabetic":  "DIABETES",
		"post stroke care": "NEURO",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in, kw), in)
	}
}
