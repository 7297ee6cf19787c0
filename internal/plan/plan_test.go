package plan

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/plan-advisor/internal/policy"
)

func TestPlanUnmarshal_LooseValues(t *testing.T) {
	data := `{
		"Plan_Name": " Care Supreme ",
		"Policy_Code": "FLO_2_1",
		"Disease_Code": null,
		"Status": "active",
		"Gender": "All",
		"Adult_Min_Entry_Age": "18",
		"Adult_Max_Entry_Age": 65,
		"Child_Min_Entry_Age": 91,
		"Child_Max_Entry_Age": "NA",
		"In_Patient": 1,
		"Day_Care": "Yes",
		"AYUSH": true,
		"Modern_Treatment": "0",
		"Maternity": null,
		"Co_Payment": "10%",
		"Sum_Insured": "5,00,000"
	}`

	var p Plan
	require.NoError(t, json.Unmarshal([]byte(data), &p))

	assert.Equal(t, "Care Supreme", p.Name)
	assert.Equal(t, "FLO_2_1", p.PolicyCode)
	assert.True(t, p.IsGeneral())
	require.NotNil(t, p.AdultMinEntryAge)
	assert.Equal(t, 18.0, *p.AdultMinEntryAge)
	assert.Equal(t, 65.0, *p.AdultMaxEntryAge)
	assert.Equal(t, 91.0, *p.ChildMinEntryAge)
	assert.Nil(t, p.ChildMaxEntryAge)
	assert.True(t, bool(p.InPatient))
	assert.True(t, bool(p.DayCare))
	assert.True(t, bool(p.AYUSH))
	assert.False(t, bool(p.ModernTreatment))
	assert.False(t, bool(p.Maternity))
	require.NotNil(t, p.CoPayment)
	assert.Equal(t, 10.0, *p.CoPayment)
	assert.Equal(t, 500000.0, *p.SumInsured)
}

func TestPlanUnmarshal_BadNumber(t *testing.T) {
	var p Plan
	err := json.Unmarshal([]byte(`{"plan_name":"x","co_payment":"ten"}`), &p)
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	nan, inf, ok := math.NaN(), math.Inf(1), 20.0
	p := Plan{CoPayment: &nan, AdultMaxEntryAge: &inf, AdultMinEntryAge: &ok}
	p.Sanitize()

	assert.Nil(t, p.CoPayment)
	assert.Nil(t, p.AdultMaxEntryAge)
	assert.Equal(t, &ok, p.AdultMinEntryAge)
}

func TestParseFloat(t *testing.T) {
	v, ok, err := ParseFloat(" 12.5 % ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	for _, s := range []string{"", "NaN", "n/a", "-"} {
		_, ok, err := ParseFloat(s)
		assert.NoError(t, err, s)
		assert.False(t, ok, s)
	}
}

func TestFlagUnmarshal(t *testing.T) {
	tests := map[string]bool{
		`1`:       true,
		`1.0`:     true,
		`true`:    true,
		`"yes"`:   true,
		`"1"`:     true,
		`0`:       false,
		`2`:       false,
		`-1`:      false,
		`0.5`:     false,
		`"2"`:     false,
		`null`:    false,
		`"maybe"`: false,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			var f Flag
			require.NoError(t, json.Unmarshal([]byte(in), &f))
			assert.Equal(t, want, bool(f))
		})
	}
}

func TestFamilyStructure(t *testing.T) {
	members := []Member{
		{Key: "self", Name: "Ravi", Age: 40},
		{Key: "spouse", Name: "Asha", Age: 25},
		{Key: "child1", Name: "Kiran", Age: 24, DiseaseCodes: []string{"CANCER"}},
	}
	fs := NewFamilyStructure(members, DefaultAdultAge)

	assert.Equal(t, 2, fs.Adults)
	assert.Equal(t, 1, fs.Children)
	assert.Equal(t, len(members), fs.Adults+fs.Children)
	assert.Equal(t, []string{"CANCER"}, fs.MemberAilments["Kiran"])
	assert.Empty(t, fs.MemberAilments["Ravi"])
	assert.Equal(t, 25.0, fs.MemberAges["Asha"])
}

func TestMemberDeclared(t *testing.T) {
	m := Member{
		Key:          "self",
		Name:         "Meera",
		Age:          34.5,
		Gender:       "Female",
		Status:       "active",
		DiseaseCodes: []string{"CANCER", "RENAL"},
		Attributes:   map[string]string{"top_up": "1"},
	}
	assert.Equal(t, map[string]string{
		"age":          "34.5",
		"gender":       "Female",
		"disease_code": "CANCER,RENAL",
		"top_up":       "1",
	}, m.Declared())

	assert.Equal(t, "GENERAL", Member{}.DiseaseCode())
	assert.Equal(t, "active", Member{}.RequiredStatus("active"))
	assert.Equal(t, "self", Member{Key: "self"}.Label())
}

func TestScoredPlanMarshal_FlattensMemberScores(t *testing.T) {
	sp := ScoredPlan{
		Plan:             Plan{Name: "Plan_A", PolicyCode: "FLO_2_1"},
		Category:         policy.CategoryFloater,
		AilmentScore:     0.6,
		MemberScores:     map[string]float64{"Ravi": 0.6, "Kiran": 0.6},
		ScoreMemberAware: 42.5,
	}
	data, err := json.Marshal(sp)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Plan_A", m["plan_name"])
	assert.Equal(t, "Family Floater", m["category"])
	assert.Equal(t, 0.6, m["Score_Ravi"])
	assert.Equal(t, 0.6, m["Score_Kiran"])
	assert.Equal(t, 42.5, m["score_member_aware"])
	assert.NotContains(t, m, "rank")
}
