package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/policy"
)

func f64(v float64) *float64 { return &v }

func fullPlan(name, code, disease string) plan.Plan {
	return plan.Plan{
		Name:             name,
		PolicyCode:       code,
		DiseaseCode:      disease,
		Status:           "active",
		Gender:           "All",
		AdultMinEntryAge: f64(18),
		AdultMaxEntryAge: f64(65),
		ChildMinEntryAge: f64(91),
		ChildMaxEntryAge: f64(25),
		InPatient:        true,
		DayCare:          true,
		AYUSH:            true,
		ModernTreatment:  true,
		Maternity:        true,
		OPD:              true,
		TopUp:            true,
		CoPayment:        f64(0),
	}
}

var family = []plan.Member{
	{Key: "self", Name: "Ravi", Age: 40},
	{Key: "spouse", Name: "Asha", Age: 38},
	{Key: "kid", Name: "Kiran", Age: 9, DiseaseCodes: []string{"CANCER"}},
}

func TestWithinRowWeights(t *testing.T) {
	w := DefaultWeights()

	assert.InDeltaSlice(t, []float64{1}, w.WithinRowWeights(1), 1e-9)
	assert.InDeltaSlice(t, []float64{0.55 / 0.8, 0.25 / 0.8}, w.WithinRowWeights(2), 1e-9)
	assert.InDeltaSlice(t, []float64{0.55, 0.25, 0.15, 0.05}, w.WithinRowWeights(4), 1e-9)
	assert.InDeltaSlice(t, []float64{0.2, 0.2, 0.2, 0.2, 0.2}, w.WithinRowWeights(5), 1e-9)
	assert.Nil(t, w.WithinRowWeights(0))

	for n := 1; n <= 8; n++ {
		var sum float64
		for _, v := range w.WithinRowWeights(n) {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "n=%d", n)
	}
}

func TestNormalize(t *testing.T) {
	sp := &plan.ScoredPlan{Plan: plan.Plan{}}
	col := func(name string) Column { return resolveColumns([]string{name}, nil)[0] }

	copay := col("co_payment")
	for pct, want := range map[float64]float64{0: 1, 5: 0.7, 10: 0.7, 15: 0.4, 20: 0.4, 35: 0.1} {
		sp.CoPayment = f64(pct)
		assert.Equal(t, want, copay.Normalize(sp), "copay %v", pct)
	}
	sp.CoPayment = nil
	assert.Equal(t, 0.5, copay.Normalize(sp))

	minAge := col("adult_min_entry_age")
	sp.AdultMinEntryAge = f64(18)
	assert.InDelta(t, 0.82, minAge.Normalize(sp), 1e-9)
	sp.AdultMinEntryAge = f64(140)
	assert.Equal(t, 0.0, minAge.Normalize(sp))
	sp.AdultMinEntryAge = nil
	assert.Equal(t, 0.5, minAge.Normalize(sp))

	maxAge := col("adult_max_entry_age")
	sp.AdultMaxEntryAge = f64(65)
	assert.InDelta(t, 0.65, maxAge.Normalize(sp), 1e-9)
	sp.AdultMaxEntryAge = f64(120)
	assert.Equal(t, 1.0, maxAge.Normalize(sp))

	childMin := col("child_min_entry_age")
	sp.ChildMinEntryAge = f64(365)
	assert.InDelta(t, 0.99, childMin.Normalize(sp), 1e-9)

	assert.Equal(t, 0.0, col("opd").Normalize(sp))
	sp.OPD = true
	assert.Equal(t, 1.0, col("opd").Normalize(sp))

	sp.AilmentScore = math.NaN()
	assert.Equal(t, 0.5, col("ailment_score").Normalize(sp))

	unknown := col("network_hospitals")
	assert.Equal(t, RoleNeutral, unknown.Role)
	assert.Equal(t, 0.5, unknown.Normalize(sp))
}

func TestResolveColumns_ExpandsMembers(t *testing.T) {
	cols := resolveColumns([]string{"ailment_score", "member_scores"}, []string{"Ravi", "Asha", "Kiran"})
	require.Len(t, cols, 4)
	assert.Equal(t, "ailment_score", cols[0].Name)
	assert.Equal(t, "Score_Ravi", cols[1].Name)
	assert.Equal(t, "Score_Kiran", cols[3].Name)
	for _, c := range cols {
		assert.Equal(t, RoleScore, c.Role)
	}
}

func TestScorePlans_Enrichment(t *testing.T) {
	plans := []plan.Plan{
		fullPlan("Plan_A", "FLO_2_1", "GENERAL"),
		fullPlan("Plan_B", "IND_1_0", "CANCER"),
	}
	scored := ScorePlans(plans, family, DefaultOptions())
	require.Len(t, scored, 2)

	a, b := scored[0], scored[1]
	assert.Equal(t, policy.CategoryFloater, a.Category)
	assert.True(t, a.FamilyFit)
	assert.Equal(t, 2, a.PlanAdults)
	assert.Equal(t, 1, a.PlanChildren)
	assert.InDelta(t, 0.6, a.AilmentScore, 1e-9)
	assert.InDelta(t, 0.6, a.MemberScore("Kiran"), 1e-9)

	assert.Equal(t, policy.CategoryIndividual, b.Category)
	assert.False(t, b.FamilyFit)
	assert.Equal(t, 1.0, b.MemberScore("Kiran"))
	assert.Equal(t, 0.0, b.MemberScore("Ravi"))
	assert.InDelta(t, 1.0/3, b.AilmentScore, 1e-9)
}

// A fully populated plan never scores above 100 or below 0.
func TestScorePlans_WeightConservation(t *testing.T) {
	best := fullPlan("Best", "FLO_2_1", "CANCER")
	worst := plan.Plan{
		Name:             "Worst",
		PolicyCode:       "IND_1_0",
		DiseaseCode:      "CARDIAC",
		AdultMinEntryAge: f64(100),
		AdultMaxEntryAge: f64(0),
		ChildMinEntryAge: f64(36500),
		ChildMaxEntryAge: f64(0),
		CoPayment:        f64(50),
	}

	scored := ScorePlans([]plan.Plan{best, worst}, family, DefaultOptions())
	for _, sp := range scored {
		assert.GreaterOrEqual(t, sp.ScoreMemberAware, 0.0, sp.Name)
		assert.LessOrEqual(t, sp.ScoreMemberAware, 100.0, sp.Name)
	}
	// Only rows 2, 3, 4, 5 and 9 carry columns: 10+18+12+12+4.
	assert.LessOrEqual(t, scored[0].ScoreMemberAware, 56.0)
	assert.Greater(t, scored[0].ScoreMemberAware, scored[1].ScoreMemberAware)
	// Worst keeps only the 50% co-payment floor of 0.1 in row 5.
	assert.InDelta(t, 12*0.1*0.55/0.8, scored[1].ScoreMemberAware, 1e-9)
}

func TestScorePlans_HandComputed(t *testing.T) {
	p := plan.Plan{Name: "Bare", PolicyCode: "IND_1_0", DiseaseCode: "GENERAL", CoPayment: f64(10)}
	member := []plan.Member{{Key: "self", Name: "Ravi", Age: 40}}

	opts := DefaultOptions()
	opts.Weights.RowColumns = map[int][]string{
		3: {"ailment_score", "member_scores"},
		5: {"co_payment", "top_up"},
	}
	sp := ScorePlans([]plan.Plan{p}, member, opts)[0]

	// Row 3: ailment 0.6 and Score_Ravi 0.6 weighted 0.6875/0.3125 -> 0.6.
	// Row 5: co-payment 0.7 * 0.6875 + top_up 0 -> 0.48125.
	want := 18*0.6 + 12*(0.7*0.55/0.8)
	assert.InDelta(t, want, sp.ScoreMemberAware, 1e-9)
}

func TestScorePlans_NoMembers(t *testing.T) {
	sp := ScorePlans([]plan.Plan{fullPlan("P", "FLO_2_2", "GENERAL")}, nil, DefaultOptions())[0]
	assert.Equal(t, 1.0, sp.AilmentScore)
	assert.Empty(t, sp.MemberScores)
	assert.True(t, sp.FamilyFit)
	assert.False(t, math.IsNaN(sp.ScoreMemberAware))
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.RowWeights[1] = 30
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.RowWeights[2] = -1
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.RowColumns[11] = []string{"opd"}
	assert.Error(t, w.Validate())
}
