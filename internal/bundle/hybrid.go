package bundle

import (
	"sort"
	"strings"

	"github.com/gyeh/plan-advisor/internal/eligibility"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/policy"
)

// HybridCombo covers a subgroup with one shared floater and every other
// member with their own best plan, drawn from the candidate sets.
type HybridCombo struct {
	Floater        Assignment   `json:"floater"`
	Individuals    []Assignment `json:"individuals"`
	CoveredMembers []string     `json:"covered_members"`
	TotalScore     float64      `json:"total_score"`
}

// HybridCombos enumerates every subgroup of two or more members (but not the
// whole household), picks the best floater common to all their candidate sets
// and the best non-floater candidate for each remaining member. Combos that
// cannot cover everyone are skipped. Ranked by Score_MemberAware totals.
func HybridCombos(candidates []eligibility.CandidateSet, scored []plan.ScoredPlan, members []plan.Member, opts Options) []HybridCombo {
	out := []HybridCombo{}
	n := len(members)
	if n < 3 || len(candidates) != n {
		return out
	}
	if !enumerable(n, opts.MaxHybridMembers) {
		return out
	}
	if opts.AdultAge <= 0 {
		opts.AdultAge = plan.DefaultAdultAge
	}

	byName := make(map[string]*plan.ScoredPlan, len(scored))
	for i := range scored {
		byName[scored[i].Name] = &scored[i]
	}
	sets := make([]map[string]struct{}, n)
	for i, c := range candidates {
		sets[i] = make(map[string]struct{}, len(c.Plans))
		for _, p := range c.Plans {
			sets[i][p] = struct{}{}
		}
	}

	for mask := 1; mask < 1<<n-1; mask++ {
		var group, rest []int
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				group = append(group, i)
			} else {
				rest = append(rest, i)
			}
		}
		if len(group) < 2 {
			continue
		}

		groupMembers := make([]plan.Member, len(group))
		for k, i := range group {
			groupMembers[k] = members[i]
		}
		a, c := plan.CountAdultsChildren(groupMembers, opts.AdultAge)
		floater := bestShared(candidates[group[0]].Plans, group, sets, byName, a, c)
		if floater == nil {
			continue
		}

		combo := HybridCombo{
			Floater: Assignment{
				PlanName:   floater.Name,
				PolicyCode: floater.PolicyCode,
				Category:   floater.Category,
				Members:    labels(groupMembers),
				Score:      floater.ScoreMemberAware,
			},
			TotalScore: floater.ScoreMemberAware,
		}
		complete := true
		for _, i := range rest {
			best := bestOwn(candidates[i].Plans, byName)
			if best == nil {
				complete = false
				break
			}
			combo.Individuals = append(combo.Individuals, Assignment{
				PlanName:   best.Name,
				PolicyCode: best.PolicyCode,
				Category:   best.Category,
				Members:    []string{members[i].Label()},
				Score:      best.ScoreMemberAware,
			})
			combo.TotalScore += best.ScoreMemberAware
		}
		if !complete {
			continue
		}
		combo.CoveredMembers = labels(members)
		out = append(out, combo)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalScore > out[j].TotalScore })
	return out
}

// bestShared returns the highest scoring floater present in every group
// member's candidate set whose capacity covers the group.
func bestShared(first []string, group []int, sets []map[string]struct{}, byName map[string]*plan.ScoredPlan, adults, children int) *plan.ScoredPlan {
	var best *plan.ScoredPlan
	for _, name := range first {
		shared := true
		for _, i := range group[1:] {
			if _, ok := sets[i][name]; !ok {
				shared = false
				break
			}
		}
		if !shared {
			continue
		}
		sp, ok := byName[name]
		if !ok || sp.Category != policy.CategoryFloater {
			continue
		}
		if sp.PlanAdults < adults || sp.PlanChildren < children {
			continue
		}
		if best == nil || sp.ScoreMemberAware > best.ScoreMemberAware {
			best = sp
		}
	}
	return best
}

func bestOwn(names []string, byName map[string]*plan.ScoredPlan) *plan.ScoredPlan {
	var best *plan.ScoredPlan
	for _, name := range names {
		sp, ok := byName[name]
		if !ok || sp.Category == policy.CategoryFloater {
			continue
		}
		if best == nil || sp.ScoreMemberAware > best.ScoreMemberAware {
			best = sp
		}
	}
	return best
}

// Commonality counts how many members' candidate sets contain a plan.
type Commonality struct {
	PlanName         string   `json:"plan_name"`
	Count            int      `json:"count"`
	CoveredMembers   []string `json:"covered_members"`
	ScoreMemberAware float64  `json:"score_member_aware"`
}

// Intersections summarizes overlap between member candidate sets.
type Intersections struct {
	RankedByCommonality []Commonality       `json:"ranked_by_commonality"`
	ComboPlans          map[string][]string `json:"combo_plans"`
}

// ComboKeySeparator joins member names in ComboPlans keys.
const ComboKeySeparator = " & "

// Intersect ranks plans by how many members share them and lists the plans
// common to every group of two or more members. Groups are only enumerated
// for households within maxMembers (see Options.MaxHybridMembers).
func Intersect(candidates []eligibility.CandidateSet, scored []plan.ScoredPlan, maxMembers int) Intersections {
	res := Intersections{RankedByCommonality: []Commonality{}, ComboPlans: map[string][]string{}}

	score := make(map[string]float64, len(scored))
	for _, sp := range scored {
		score[sp.Name] = sp.ScoreMemberAware
	}

	index := map[string]int{}
	for _, c := range candidates {
		for _, p := range c.Plans {
			i, ok := index[p]
			if !ok {
				i = len(res.RankedByCommonality)
				index[p] = i
				res.RankedByCommonality = append(res.RankedByCommonality, Commonality{PlanName: p, ScoreMemberAware: score[p]})
			}
			res.RankedByCommonality[i].Count++
			res.RankedByCommonality[i].CoveredMembers = append(res.RankedByCommonality[i].CoveredMembers, c.Name)
		}
	}
	sort.SliceStable(res.RankedByCommonality, func(i, j int) bool {
		a, b := res.RankedByCommonality[i], res.RankedByCommonality[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.ScoreMemberAware > b.ScoreMemberAware
	})

	n := len(candidates)
	if n < 2 || !enumerable(n, maxMembers) {
		return res
	}
	for mask := 1; mask < 1<<n; mask++ {
		var names []string
		var common []string
		first := true
		for i := 0; i < n; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			names = append(names, candidates[i].Name)
			if first {
				common = append([]string(nil), candidates[i].Plans...)
				first = false
				continue
			}
			common = keep(common, candidates[i].Plans)
		}
		if len(names) < 2 {
			continue
		}
		if common == nil {
			common = []string{}
		}
		res.ComboPlans[strings.Join(names, ComboKeySeparator)] = common
	}
	return res
}

// keep returns the entries of a that also appear in b, in a's order.
func keep(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := in[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
