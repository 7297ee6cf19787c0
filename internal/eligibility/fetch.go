// Package eligibility narrows the plan catalog to a short candidate list for
// each household member.
package eligibility

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gyeh/plan-advisor/internal/ailment"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/policy"
)

// DefaultTopN is the number of candidates kept per member.
const DefaultTopN = 5

// Options configures FetchCandidates.
type Options struct {
	RequiredStatus string
	TopN           int
	DefaultWeight  float64
	AdultAge       float64
	ValueFilters   []ValueFilter
	Logger         *zap.Logger
}

// DefaultOptions returns the stock pre-filter settings.
func DefaultOptions() Options {
	return Options{
		RequiredStatus: plan.StatusActive,
		TopN:           DefaultTopN,
		DefaultWeight:  1,
		AdultAge:       plan.DefaultAdultAge,
		ValueFilters:   DefaultValueFilters(),
	}
}

// CandidateSet is the ranked shortlist for one member.
type CandidateSet struct {
	Key    string             `json:"key"`
	Name   string             `json:"name"`
	Plans  []string           `json:"plans"`
	Scores map[string]float64 `json:"scores,omitempty"`
}

// skipFeatures are declared attributes that never drive a score increment.
var skipFeatures = map[string]struct{}{
	"name":   {},
	"key":    {},
	"status": {},
}

// FetchCandidates returns the candidate plans for each member, in member
// order. Catalog order breaks score ties.
func FetchCandidates(members []plan.Member, family plan.FamilyStructure, catalog []plan.Plan, opts Options) []CandidateSet {
	opts = opts.withDefaults()
	sets := make([]CandidateSet, 0, len(members))
	for _, m := range members {
		sets = append(sets, fetchForMember(m, family, catalog, opts))
	}
	return sets
}

// ByKey indexes candidate sets by member key.
func ByKey(sets []CandidateSet) map[string]CandidateSet {
	out := make(map[string]CandidateSet, len(sets))
	for _, s := range sets {
		out[s.Key] = s
	}
	return out
}

func (o Options) withDefaults() Options {
	if o.RequiredStatus == "" {
		o.RequiredStatus = plan.StatusActive
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.DefaultWeight == 0 {
		o.DefaultWeight = 1
	}
	if o.AdultAge <= 0 {
		o.AdultAge = plan.DefaultAdultAge
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type candidate struct {
	plan  *plan.Plan
	score float64
}

func fetchForMember(m plan.Member, family plan.FamilyStructure, catalog []plan.Plan, opts Options) CandidateSet {
	set := CandidateSet{Key: m.Key, Name: m.Label(), Plans: []string{}}
	log := opts.Logger.With(zap.String("member", m.Label()))

	// Hard constraints.
	var cands []candidate
	for i := range catalog {
		p := &catalog[i]
		if passesHardFilter(p, m, opts) {
			cands = append(cands, candidate{plan: p})
		}
	}
	log.Debug("hard filter", zap.Int("survivors", len(cands)), zap.Int("catalog", len(catalog)))
	if len(cands) == 0 {
		return set
	}

	// Score increments for every other declared attribute.
	filters := indexFilters(opts.ValueFilters)
	for feature, value := range m.Declared() {
		if _, skip := skipFeatures[feature]; skip {
			continue
		}
		f, ok := filters[strings.ToLower(feature)]
		if !ok {
			if !KnownField(feature) {
				log.Debug("no filter for feature", zap.String("feature", feature))
				continue
			}
			f = ValueFilter{Feature: feature, Kind: KindEquals}
		}
		weight := f.Weight
		if weight == 0 {
			weight = opts.DefaultWeight
		}
		for i := range cands {
			if f.Match(cands[i].plan, value) {
				cands[i].score += weight
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	set.Scores = make(map[string]float64, opts.TopN)
	for _, c := range cands {
		if len(set.Plans) >= opts.TopN {
			break
		}
		// General members are matched to plans that must cover the whole household.
		if m.IsGeneral() && !policy.IsValidForFamily(c.plan.PolicyCode, family.Adults, family.Children, log) {
			continue
		}
		set.Plans = append(set.Plans, c.plan.Name)
		set.Scores[c.plan.Name] = c.score
	}
	return set
}

func indexFilters(filters []ValueFilter) map[string]ValueFilter {
	out := make(map[string]ValueFilter, len(filters))
	for _, f := range filters {
		out[strings.ToLower(f.Feature)] = f
	}
	return out
}

func passesHardFilter(p *plan.Plan, m plan.Member, opts Options) bool {
	if !strings.EqualFold(strings.TrimSpace(p.Status), m.RequiredStatus(opts.RequiredStatus)) {
		return false
	}
	if !ageAdmitted(p, m, opts.AdultAge) {
		return false
	}
	if m.IsGeneral() {
		return p.IsGeneral()
	}
	code := ailment.NormalizeCode(p.DiseaseCode)
	for _, c := range m.DiseaseCodes {
		c = ailment.NormalizeCode(c)
		if c == ailment.Multi {
			continue
		}
		if c == code {
			return true
		}
	}
	return false
}

// ageAdmitted checks the adult entry band. Members under the adult age are
// also admitted by a declared child entry band.
func ageAdmitted(p *plan.Plan, m plan.Member, adultAge float64) bool {
	if within(m.Age, p.AdultMinEntryAge, p.AdultMaxEntryAge) {
		return true
	}
	if m.IsAdult(adultAge) {
		return false
	}
	if p.ChildMinEntryAge == nil && p.ChildMaxEntryAge == nil {
		return false
	}
	return childBandAdmits(p.ChildMinEntryAge, p.ChildMaxEntryAge, m.Age)
}
