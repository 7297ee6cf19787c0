package plan

import (
	"encoding/json"

	"github.com/gyeh/plan-advisor/internal/policy"
)

// ScoreColumnPrefix prefixes the per-member score columns.
const ScoreColumnPrefix = "Score_"

// ScoreColumn is the output column holding a member's ailment score.
func ScoreColumn(member string) string {
	return ScoreColumnPrefix + member
}

// ScoredPlan is a catalog plan enriched for one household.
type ScoredPlan struct {
	Plan

	Category         policy.Category    `json:"category"`
	FamilyFit        bool               `json:"family_fit"`
	PlanAdults       int                `json:"plan_adults"`
	PlanChildren     int                `json:"plan_children"`
	AilmentScore     float64            `json:"ailment_score"`
	MemberScores     map[string]float64 `json:"-"`
	ScoreMemberAware float64            `json:"score_member_aware"`
	Rank             int                `json:"rank,omitempty"`
}

// MemberScore returns the member's score, zero when absent.
func (s *ScoredPlan) MemberScore(member string) float64 {
	return s.MemberScores[member]
}

type scoredFields ScoredPlan

// MarshalJSON writes member scores as flat Score_<name> columns.
func (s ScoredPlan) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(scoredFields(s))
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for name, v := range s.MemberScores {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		m[ScoreColumn(name)] = raw
	}
	return json.Marshal(m)
}
