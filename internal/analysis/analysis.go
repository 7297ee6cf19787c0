// Package analysis runs one household through feature derivation, candidate
// filtering, scoring, ranking and bundling.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gyeh/plan-advisor/internal/bundle"
	"github.com/gyeh/plan-advisor/internal/config"
	"github.com/gyeh/plan-advisor/internal/eligibility"
	"github.com/gyeh/plan-advisor/internal/features"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/progress"
	"github.com/gyeh/plan-advisor/internal/scoring"
)

// ErrFeatureDerivation is the one hard failure of a run: the client record
// could not be turned into members.
var ErrFeatureDerivation = errors.New("feature derivation failed")

// Options configures an Analyzer.
type Options struct {
	Eligibility eligibility.Options
	Scoring     scoring.Options
	Bundle      bundle.Options
	AdultAge    float64
	// ExcludeFemaleOnly drops Female-only plans when the primary applicant
	// is not female.
	ExcludeFemaleOnly bool
}

// DefaultOptions returns the stock pipeline settings.
func DefaultOptions() Options {
	return Options{
		Eligibility:       eligibility.DefaultOptions(),
		Scoring:           scoring.DefaultOptions(),
		Bundle:            bundle.DefaultOptions(),
		AdultAge:          plan.DefaultAdultAge,
		ExcludeFemaleOnly: true,
	}
}

// OptionsFromConfig maps the configuration document onto pipeline options.
func OptionsFromConfig(cfg *config.Config, log *zap.Logger) Options {
	return Options{
		Eligibility:       cfg.EligibilityOptions(log),
		Scoring:           cfg.ScoringOptions(),
		Bundle:            cfg.BundleOptions(),
		AdultAge:          cfg.Family.AdultAgeThreshold,
		ExcludeFemaleOnly: cfg.Eligibility.ExcludeFemaleOnlyForMalePrimary,
	}
}

// Result is the full recommendation for one household.
type Result struct {
	RunID          string                     `json:"run_id"`
	Family         plan.FamilyStructure       `json:"family"`
	CandidatePlans []eligibility.CandidateSet `json:"candidate_plans"`
	bundle.Result
	AllRankedPlans     []plan.ScoredPlan    `json:"all_ranked_plans"`
	MemberScoreColumns []string             `json:"member_score_columns"`
	PlanIntersections  bundle.Intersections `json:"plan_intersections"`
}

// PackageCount is the number of option 2 packages and hybrid combos.
func (r *Result) PackageCount() int {
	return len(r.Combination.RankedPackages) + len(r.Combination.HybridCombos)
}

// Analyzer runs the recommendation pipeline. It holds no per-run state and
// may be shared by concurrent runs.
type Analyzer struct {
	deriver features.Deriver
	opts    Options
	log     *zap.Logger
	newID   func() string
}

// New creates an Analyzer. A nil logger is replaced with a no-op logger.
func New(deriver features.Deriver, opts Options, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.AdultAge <= 0 {
		opts.AdultAge = plan.DefaultAdultAge
	}
	if opts.Eligibility.Logger == nil {
		opts.Eligibility.Logger = log
	}
	return &Analyzer{deriver: deriver, opts: opts, log: log, newID: uuid.NewString}
}

// Analyze derives features from clientJSON and runs the pipeline against
// catalog. tracker may be nil.
func (a *Analyzer) Analyze(ctx context.Context, clientJSON []byte, catalog []plan.Plan, tracker progress.Tracker) (*Result, error) {
	if tracker == nil {
		tracker = progress.Noop()
	}

	tracker.SetStage("deriving features")
	f, err := a.deriver.Derive(ctx, clientJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeatureDerivation, err)
	}
	if len(f.Members) == 0 {
		return nil, fmt.Errorf("%w: no members derived", ErrFeatureDerivation)
	}
	return a.Run(f, catalog, tracker), nil
}

// Run executes the pipeline for already-derived features.
func (a *Analyzer) Run(f *plan.Features, catalog []plan.Plan, tracker progress.Tracker) *Result {
	if tracker == nil {
		tracker = progress.Noop()
	}
	runID := a.newID()
	log := a.log.With(zap.String("run_id", runID))
	members := f.Members

	family := plan.NewFamilyStructure(members, a.opts.AdultAge)
	checkHints(f, family, log)
	log.Info("family composition", zap.Int("adults", family.Adults), zap.Int("children", family.Children))

	tracker.SetStage("filtering")
	sets := eligibility.FetchCandidates(members, family, catalog, a.opts.Eligibility)

	union := unionOf(sets)
	res := a.empty(runID, family, members, sets)
	if len(union) == 0 {
		log.Info("no candidate plans for any member")
		return res
	}
	log.Debug("candidate union", zap.Int("plans", len(union)))

	toScore := make([]plan.Plan, 0, len(union))
	for _, p := range catalog {
		if _, ok := union[p.Name]; ok {
			toScore = append(toScore, p)
		}
	}
	if a.opts.ExcludeFemaleOnly {
		toScore = excludeFemaleOnly(toScore, members, log)
	}
	if len(toScore) == 0 {
		return res
	}
	tracker.SetCounter("plans", int64(len(toScore)))

	tracker.SetStage("scoring")
	scored := scoring.ScorePlans(toScore, members, a.opts.Scoring)
	ranked := Rank(scored, members)

	tracker.SetStage("bundling")
	res.Result = bundle.BundlePlans(sets, ranked, members, family, a.opts.Bundle)
	res.AllRankedPlans = ranked
	res.MemberScoreColumns = memberScoreColumns(members)
	res.PlanIntersections = bundle.Intersect(sets, ranked, a.opts.Bundle.MaxHybridMembers)

	log.Info("analysis complete",
		zap.Int("ranked_plans", len(ranked)),
		zap.Int("full_family_plans", len(res.FullFamily.Plans)),
		zap.Int("packages", res.PackageCount()))
	return res
}

// empty is the well-formed result with no plans.
func (a *Analyzer) empty(runID string, family plan.FamilyStructure, members []plan.Member, sets []eligibility.CandidateSet) *Result {
	if sets == nil {
		sets = []eligibility.CandidateSet{}
	}
	return &Result{
		RunID:              runID,
		Family:             family,
		CandidatePlans:     sets,
		Result:             bundle.Empty(members),
		AllRankedPlans:     []plan.ScoredPlan{},
		MemberScoreColumns: []string{},
		PlanIntersections: bundle.Intersections{
			RankedByCommonality: []bundle.Commonality{},
			ComboPlans:          map[string][]string{},
		},
	}
}

// Rank orders plans by each member's score in declaration order, then by
// AilmentScore and Score_MemberAware, all descending, and numbers them from 1.
// Ties keep catalog order.
func Rank(scored []plan.ScoredPlan, members []plan.Member) []plan.ScoredPlan {
	ranked := append([]plan.ScoredPlan(nil), scored...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		for _, m := range members {
			sa, sb := a.MemberScore(m.Label()), b.MemberScore(m.Label())
			if sa != sb {
				return sa > sb
			}
		}
		if a.AilmentScore != b.AilmentScore {
			return a.AilmentScore > b.AilmentScore
		}
		return a.ScoreMemberAware > b.ScoreMemberAware
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func memberScoreColumns(members []plan.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = plan.ScoreColumn(m.Label())
	}
	return out
}

func unionOf(sets []eligibility.CandidateSet) map[string]struct{} {
	union := map[string]struct{}{}
	for _, s := range sets {
		for _, p := range s.Plans {
			union[p] = struct{}{}
		}
	}
	return union
}

// excludeFemaleOnly drops Female-only plans unless the primary applicant is
// female.
func excludeFemaleOnly(plans []plan.Plan, members []plan.Member, log *zap.Logger) []plan.Plan {
	if len(members) > 0 && strings.EqualFold(strings.TrimSpace(members[0].Gender), "female") {
		return plans
	}
	out := plans[:0:0]
	for _, p := range plans {
		if strings.EqualFold(strings.TrimSpace(p.Gender), "female") {
			continue
		}
		out = append(out, p)
	}
	if dropped := len(plans) - len(out); dropped > 0 {
		log.Info("filtered women-only plans", zap.Int("count", dropped))
	}
	return out
}

// checkHints compares the derived adult and child counts with the computed
// family structure. The computed structure wins.
func checkHints(f *plan.Features, family plan.FamilyStructure, log *zap.Logger) {
	if f.NumAdults != nil && *f.NumAdults != family.Adults {
		log.Warn("derived adult count differs from member ages",
			zap.Int("hint", *f.NumAdults), zap.Int("computed", family.Adults))
	}
	if f.NumChildren != nil && *f.NumChildren != family.Children {
		log.Warn("derived child count differs from member ages",
			zap.Int("hint", *f.NumChildren), zap.Int("computed", family.Children))
	}
}
