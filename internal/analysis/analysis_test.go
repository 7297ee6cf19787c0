package analysis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gyeh/plan-advisor/internal/ailment"
	"github.com/gyeh/plan-advisor/internal/config"
	"github.com/gyeh/plan-advisor/internal/features"
	"github.com/gyeh/plan-advisor/internal/plan"
)

func f64(v float64) *float64 { return &v }

func catalogPlan(name, code, disease, gender string) plan.Plan {
	return plan.Plan{
		Name:             name,
		PolicyCode:       code,
		DiseaseCode:      disease,
		Status:           "active",
		Gender:           gender,
		AdultMinEntryAge: f64(0),
		AdultMaxEntryAge: f64(65),
	}
}

const family = `{
  "self":   {"name": "Ravi", "age": 40, "gender": "Male", "status": "active", "disease_code": "GENERAL"},
  "spouse": {"name": "Asha", "age": 38, "gender": "Female", "status": "active", "disease_code": "GENERAL"},
  "child1": {"name": "Kiran", "age": 10, "gender": "Male", "status": "active", "disease_code": "CANCER"},
  "num_adults": 2,
  "num_children": 1
}`

func newAnalyzer(log *zap.Logger) *Analyzer {
	a := New(features.StaticDeriver{Keywords: ailment.DefaultKeywords()}, DefaultOptions(), log)
	a.newID = func() string { return "run-test" }
	return a
}

func names(plans []plan.ScoredPlan) []string {
	out := make([]string, len(plans))
	for i, p := range plans {
		out[i] = p.Name
	}
	return out
}

// Two healthy adults and a child with cancer against one floater and one
// cancer plan.
func TestAnalyze_FamilyWithSickChild(t *testing.T) {
	catalog := []plan.Plan{
		catalogPlan("Plan_A", "FLO_2_1", "GENERAL", "All"),
		catalogPlan("Plan_B", "IND_1_0", "CANCER", "All"),
	}

	res, err := newAnalyzer(nil).Analyze(context.Background(), []byte(family), catalog, nil)
	require.NoError(t, err)

	assert.Equal(t, "run-test", res.RunID)
	assert.Equal(t, 2, res.Family.Adults)
	assert.Equal(t, 1, res.Family.Children)

	require.Len(t, res.CandidatePlans, 3)
	assert.Equal(t, []string{"Plan_A"}, res.CandidatePlans[0].Plans)
	assert.Equal(t, []string{"Plan_A"}, res.CandidatePlans[1].Plans)
	assert.Equal(t, []string{"Plan_B"}, res.CandidatePlans[2].Plans)

	require.Len(t, res.FullFamily.Plans, 1)
	assert.Equal(t, "Plan_A", res.FullFamily.Plans[0].PlanName)

	require.Len(t, res.Combination.RankedPackages, 1)
	pkg := res.Combination.RankedPackages[0]
	assert.InDelta(t, 1.0+0.6, pkg.TotalScore, 1e-9)
	assert.Equal(t, "Plan_B", pkg.Assignments[0].PlanName)
	assert.Equal(t, "Plan_A", pkg.Assignments[1].PlanName)

	// Ravi's column decides first: the floater scores 0.6 for him, the
	// cancer plan 0.
	assert.Equal(t, []string{"Plan_A", "Plan_B"}, names(res.AllRankedPlans))
	assert.Equal(t, 1, res.AllRankedPlans[0].Rank)
	assert.Equal(t, 2, res.AllRankedPlans[1].Rank)
	assert.Equal(t, []string{"Score_Ravi", "Score_Asha", "Score_Kiran"}, res.MemberScoreColumns)

	assert.Equal(t, []string{"Plan_A"}, res.PlanIntersections.ComboPlans["Ravi & Asha"])
	assert.Empty(t, res.PlanIntersections.ComboPlans["Ravi & Asha & Kiran"])
}

func TestAnalyze_ResultJSON(t *testing.T) {
	catalog := []plan.Plan{
		catalogPlan("Plan_A", "FLO_2_1", "GENERAL", "All"),
		catalogPlan("Plan_B", "IND_1_0", "CANCER", "All"),
	}
	res, err := newAnalyzer(nil).Analyze(context.Background(), []byte(family), catalog, nil)
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{
		"run_id", "family", "candidate_plans", "option_1_full_family_plans",
		"option_2_combination_plans", "all_ranked_plans", "member_score_columns", "plan_intersections",
	} {
		assert.Contains(t, doc, key)
	}

	var ranked []map[string]any
	require.NoError(t, json.Unmarshal(doc["all_ranked_plans"], &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, 0.6, ranked[0]["Score_Ravi"])
	assert.Equal(t, "Family Floater", ranked[0]["category"])
}

func TestAnalyze_EmptyCatalog(t *testing.T) {
	res, err := newAnalyzer(nil).Analyze(context.Background(), []byte(family), nil, nil)
	require.NoError(t, err)

	assert.Empty(t, res.AllRankedPlans)
	assert.Empty(t, res.FullFamily.Plans)
	assert.Empty(t, res.Combination.RankedPackages)
	assert.Empty(t, res.Combination.HybridCombos)
	assert.Nil(t, res.Combination.BestIndividualCombo)
	assert.Empty(t, res.PlanIntersections.ComboPlans)
	assert.Len(t, res.CandidatePlans, 3)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `[]`, string(doc["all_ranked_plans"]))
	assert.JSONEq(t, `[]`, string(doc["member_score_columns"]))
}

func TestAnalyze_DerivationFailure(t *testing.T) {
	a := newAnalyzer(nil)

	_, err := a.Analyze(context.Background(), []byte(`the model said no`), nil, nil)
	assert.ErrorIs(t, err, ErrFeatureDerivation)
	assert.ErrorIs(t, err, features.ErrMalformedFeatures)

	_, err = a.Analyze(context.Background(), []byte(`{"num_adults": 1}`), nil, nil)
	assert.ErrorIs(t, err, ErrFeatureDerivation)
}

func TestRun_ExcludesWomenOnlyPlansForMalePrimary(t *testing.T) {
	catalog := []plan.Plan{
		catalogPlan("Her_Floater", "FLO_2_1", "GENERAL", "Female"),
		catalogPlan("Plan_A", "FLO_2_1", "GENERAL", "All"),
	}
	f, err := features.StaticDeriver{}.Derive(context.Background(), []byte(family))
	require.NoError(t, err)

	res := newAnalyzer(nil).Run(f, catalog, nil)
	assert.Equal(t, []string{"Plan_A"}, names(res.AllRankedPlans))

	// Asha first: the primary applicant is female.
	f.Members[0], f.Members[1] = f.Members[1], f.Members[0]
	res = newAnalyzer(nil).Run(f, catalog, nil)
	assert.ElementsMatch(t, []string{"Her_Floater", "Plan_A"}, names(res.AllRankedPlans))
}

func TestRun_WarnsOnHintMismatch(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f, err := features.StaticDeriver{}.Derive(context.Background(),
		[]byte(`{"m1": {"name": "Lee", "age": 30}, "num_adults": 2, "num_children": 0}`))
	require.NoError(t, err)

	newAnalyzer(zap.New(core)).Run(f, nil, nil)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "derived adult count differs from member ages", entry.Message)
	assert.Equal(t, int64(2), entry.ContextMap()["hint"])
}

func TestRank(t *testing.T) {
	members := []plan.Member{{Name: "A"}, {Name: "B"}}
	scored := []plan.ScoredPlan{
		{Plan: plan.Plan{Name: "low"}, MemberScores: map[string]float64{"A": 0.6, "B": 0.0}, AilmentScore: 0.3},
		{Plan: plan.Plan{Name: "tie1"}, MemberScores: map[string]float64{"A": 1.0, "B": 0.6}, AilmentScore: 0.8, ScoreMemberAware: 40},
		{Plan: plan.Plan{Name: "tie2"}, MemberScores: map[string]float64{"A": 1.0, "B": 0.6}, AilmentScore: 0.8, ScoreMemberAware: 55},
		{Plan: plan.Plan{Name: "b-first"}, MemberScores: map[string]float64{"A": 1.0, "B": 1.0}, AilmentScore: 1.0},
	}
	ranked := Rank(scored, members)
	assert.Equal(t, []string{"b-first", "tie2", "tie1", "low"}, names(ranked))
	assert.Equal(t, 4, ranked[3].Rank)
	assert.Equal(t, "low", scored[0].Name)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scoring.TopN = 2
	cfg.Eligibility.ExcludeFemaleOnlyForMalePrimary = false
	opts := OptionsFromConfig(cfg, nil)
	assert.Equal(t, 2, opts.Eligibility.TopN)
	assert.False(t, opts.ExcludeFemaleOnly)
	assert.Equal(t, cfg.Bundling.MaxHybridMembers, opts.Bundle.MaxHybridMembers)
}
