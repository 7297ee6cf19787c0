// Package bundle assembles scored plans into whole-family recommendations:
// floaters that cover everyone, and packages that pair disease-specific
// individual plans with one floater for the healthy members.
package bundle

import (
	"sort"

	"github.com/gyeh/plan-advisor/internal/eligibility"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/policy"
)

// Options bounds the combinatorial search.
type Options struct {
	AdultAge float64
	// MaxPlansPerMember caps each high-need member's plan list before the
	// Cartesian product is taken. Zero means no cap.
	MaxPlansPerMember int
	// MaxPackages truncates the ranked package list. Zero means no cap.
	MaxPackages int
	// MaxHybridMembers skips subgroup enumeration for larger households.
	// Zero means DefaultHybridMembers. Values above MaxSubgroupMembers are
	// clamped.
	MaxHybridMembers int
}

const (
	// DefaultHybridMembers is the household size above which subgroups are
	// not enumerated.
	DefaultHybridMembers = 12
	// MaxSubgroupMembers is the hard ceiling on subgroup enumeration.
	MaxSubgroupMembers = 20
)

// DefaultOptions returns the stock bounds.
func DefaultOptions() Options {
	return Options{
		AdultAge:          plan.DefaultAdultAge,
		MaxPlansPerMember: eligibility.DefaultTopN,
		MaxHybridMembers:  DefaultHybridMembers,
	}
}

// enumerable reports whether a household of n members is small enough for
// subgroup enumeration under limit.
func enumerable(n, limit int) bool {
	if limit <= 0 {
		limit = DefaultHybridMembers
	}
	return n <= min(limit, MaxSubgroupMembers)
}

// FloaterChoice is a floater plan with its spare capacity for a group.
type FloaterChoice struct {
	PlanName         string          `json:"plan_name"`
	PolicyCode       string          `json:"policy_code"`
	Category         policy.Category `json:"category"`
	AilmentScore     float64         `json:"ailment_score"`
	ScoreMemberAware float64         `json:"score_member_aware"`
	PlanAdults       int             `json:"plan_adults"`
	PlanChildren     int             `json:"plan_children"`
	AdultSurplus     int             `json:"adult_surplus"`
	ChildSurplus     int             `json:"child_surplus"`
}

// PlanRef is a plan scored for one member.
type PlanRef struct {
	PlanName   string          `json:"plan_name"`
	PolicyCode string          `json:"policy_code"`
	Category   policy.Category `json:"category"`
	Score      float64         `json:"score"`
}

// Assignment puts one plan on one or more members.
type Assignment struct {
	PlanName   string          `json:"plan_name"`
	PolicyCode string          `json:"policy_code"`
	Category   policy.Category `json:"category"`
	Members    []string        `json:"members"`
	Score      float64         `json:"score"`
}

// Package is one complete way to cover the household.
type Package struct {
	Rank        int          `json:"package_rank"`
	Assignments []Assignment `json:"assignments"`
	TotalScore  float64      `json:"total_score"`
}

// FullFamilyOption lists floaters that cover every member.
type FullFamilyOption struct {
	CoveredMembers []string        `json:"covered_members"`
	Plans          []FloaterChoice `json:"plans"`
}

// CombinationOption lists individual-plus-floater packages.
type CombinationOption struct {
	BestIndividualCombo      *Package             `json:"best_individual_combo"`
	IndividualPlansPerMember map[string][]PlanRef `json:"individual_plans_per_member"`
	HighNeedMembers          []string             `json:"high_need_members"`
	GeneralMembers           []string             `json:"general_members"`
	GeneralFloater           *FloaterChoice       `json:"general_floater"`
	RankedPackages           []Package            `json:"ranked_packages"`
	HybridCombos             []HybridCombo        `json:"hybrid_combos"`
}

// Result holds both recommendation options.
type Result struct {
	FullFamily  FullFamilyOption  `json:"option_1_full_family_plans"`
	Combination CombinationOption `json:"option_2_combination_plans"`
}

// Empty returns a result with every section present and empty.
func Empty(members []plan.Member) Result {
	return Result{
		FullFamily: FullFamilyOption{CoveredMembers: labels(members), Plans: []FloaterChoice{}},
		Combination: CombinationOption{
			IndividualPlansPerMember: map[string][]PlanRef{},
			HighNeedMembers:          []string{},
			GeneralMembers:           []string{},
			RankedPackages:           []Package{},
			HybridCombos:             []HybridCombo{},
		},
	}
}

// BundlePlans builds both options from the scored plan table.
func BundlePlans(candidates []eligibility.CandidateSet, scored []plan.ScoredPlan, members []plan.Member, family plan.FamilyStructure, opts Options) Result {
	if opts.AdultAge <= 0 {
		opts.AdultAge = plan.DefaultAdultAge
	}
	res := Empty(members)
	res.FullFamily.Plans = FullFamilyFloaters(scored, family.Adults, family.Children)
	res.Combination = combinations(scored, members, opts)
	res.Combination.HybridCombos = HybridCombos(candidates, scored, members, opts)
	return res
}

// FullFamilyFloaters returns floaters whose capacity covers the household,
// best disease fit first and then tightest fit.
func FullFamilyFloaters(scored []plan.ScoredPlan, adults, children int) []FloaterChoice {
	out := floatersCovering(scored, adults, children)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AilmentScore != b.AilmentScore {
			return a.AilmentScore > b.AilmentScore
		}
		if a.AdultSurplus != b.AdultSurplus {
			return a.AdultSurplus < b.AdultSurplus
		}
		return a.ChildSurplus < b.ChildSurplus
	})
	return out
}

// BestGroupFloater picks the tightest floater for a subgroup, breaking ties
// by disease fit.
func BestGroupFloater(scored []plan.ScoredPlan, adults, children int) *FloaterChoice {
	out := floatersCovering(scored, adults, children)
	if len(out) == 0 {
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AdultSurplus != b.AdultSurplus {
			return a.AdultSurplus < b.AdultSurplus
		}
		if a.ChildSurplus != b.ChildSurplus {
			return a.ChildSurplus < b.ChildSurplus
		}
		return a.AilmentScore > b.AilmentScore
	})
	return &out[0]
}

func floatersCovering(scored []plan.ScoredPlan, adults, children int) []FloaterChoice {
	out := []FloaterChoice{}
	for i := range scored {
		sp := &scored[i]
		if sp.Category != policy.CategoryFloater {
			continue
		}
		if sp.PlanAdults < adults || sp.PlanChildren < children {
			continue
		}
		out = append(out, FloaterChoice{
			PlanName:         sp.Name,
			PolicyCode:       sp.PolicyCode,
			Category:         sp.Category,
			AilmentScore:     sp.AilmentScore,
			ScoreMemberAware: sp.ScoreMemberAware,
			PlanAdults:       sp.PlanAdults,
			PlanChildren:     sp.PlanChildren,
			AdultSurplus:     sp.PlanAdults - adults,
			ChildSurplus:     sp.PlanChildren - children,
		})
	}
	return out
}

// IndividualPlansFor returns individual plans with a positive score for the
// member, highest first.
func IndividualPlansFor(scored []plan.ScoredPlan, member string, limit int) []PlanRef {
	out := []PlanRef{}
	for i := range scored {
		sp := &scored[i]
		if sp.Category != policy.CategoryIndividual {
			continue
		}
		s := sp.MemberScore(member)
		if s <= 0 {
			continue
		}
		out = append(out, PlanRef{PlanName: sp.Name, PolicyCode: sp.PolicyCode, Category: sp.Category, Score: s})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func combinations(scored []plan.ScoredPlan, members []plan.Member, opts Options) CombinationOption {
	opt := Empty(members).Combination

	var general []plan.Member
	for _, m := range members {
		if m.IsGeneral() {
			general = append(general, m)
			opt.GeneralMembers = append(opt.GeneralMembers, m.Label())
			continue
		}
		opt.HighNeedMembers = append(opt.HighNeedMembers, m.Label())
		opt.IndividualPlansPerMember[m.Label()] = IndividualPlansFor(scored, m.Label(), opts.MaxPlansPerMember)
	}
	if len(general) > 0 {
		a, c := plan.CountAdultsChildren(general, opts.AdultAge)
		opt.GeneralFloater = BestGroupFloater(scored, a, c)
	}

	opt.RankedPackages = rankedPackages(opt)
	if opts.MaxPackages > 0 && len(opt.RankedPackages) > opts.MaxPackages {
		opt.RankedPackages = opt.RankedPackages[:opts.MaxPackages]
	}
	if len(opt.RankedPackages) > 0 {
		best := opt.RankedPackages[0]
		opt.BestIndividualCombo = &best
	}
	return opt
}

// rankedPackages takes the Cartesian product of one plan per high-need
// member plus the general floater. Packages that leave anyone uncovered are
// never produced.
func rankedPackages(opt CombinationOption) []Package {
	out := []Package{}
	if len(opt.HighNeedMembers) == 0 {
		return out
	}
	if len(opt.GeneralMembers) > 0 && opt.GeneralFloater == nil {
		return out
	}
	for _, name := range opt.HighNeedMembers {
		if len(opt.IndividualPlansPerMember[name]) == 0 {
			return out
		}
	}

	combos := [][]Assignment{{}}
	for _, name := range opt.HighNeedMembers {
		var next [][]Assignment
		for _, prefix := range combos {
			for _, ref := range opt.IndividualPlansPerMember[name] {
				combo := make([]Assignment, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				combo = append(combo, Assignment{
					PlanName:   ref.PlanName,
					PolicyCode: ref.PolicyCode,
					Category:   ref.Category,
					Members:    []string{name},
					Score:      ref.Score,
				})
				next = append(next, combo)
			}
		}
		combos = next
	}

	for _, combo := range combos {
		if f := opt.GeneralFloater; f != nil {
			combo = append(combo, Assignment{
				PlanName:   f.PlanName,
				PolicyCode: f.PolicyCode,
				Category:   f.Category,
				Members:    append([]string(nil), opt.GeneralMembers...),
				Score:      f.AilmentScore,
			})
		}
		var total float64
		for _, a := range combo {
			total += a.Score
		}
		out = append(out, Package{Assignments: combo, TotalScore: total})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalScore > out[j].TotalScore })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func labels(members []plan.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Label())
	}
	return out
}
