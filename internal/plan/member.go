package plan

import (
	"strconv"
	"strings"

	"github.com/gyeh/plan-advisor/internal/ailment"
)

// DefaultAdultAge is the age at which a member counts as an adult.
const DefaultAdultAge = 25

// StatusActive is the default required status for plans and applicants.
const StatusActive = "active"

// Member is one person in the household as derived from the client record.
type Member struct {
	Key          string            `json:"key"`
	Name         string            `json:"name"`
	Age          float64           `json:"age"`
	Gender       string            `json:"gender,omitempty"`
	Status       string            `json:"status,omitempty"`
	DiseaseCodes []string          `json:"disease_codes,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Label is the name used for the member's score column.
func (m Member) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Key
}

// IsGeneral reports whether the member declared no ailments.
func (m Member) IsGeneral() bool {
	return len(m.DiseaseCodes) == 0
}

// DiseaseCode returns the comma-joined ailment list, or GENERAL.
func (m Member) DiseaseCode() string {
	if m.IsGeneral() {
		return ailment.General
	}
	return strings.Join(m.DiseaseCodes, ",")
}

// RequiredStatus is the plan status the member must be matched against.
func (m Member) RequiredStatus(fallback string) string {
	if s := strings.TrimSpace(m.Status); s != "" {
		return s
	}
	return fallback
}

// IsAdult reports whether the member is at or above threshold.
func (m Member) IsAdult(threshold float64) bool {
	return m.Age >= threshold
}

// Declared returns every attribute the member declares that can be matched
// against the catalog, keyed by feature name.
func (m Member) Declared() map[string]string {
	out := make(map[string]string, len(m.Attributes)+3)
	for k, v := range m.Attributes {
		out[k] = v
	}
	out["age"] = strconv.FormatFloat(m.Age, 'f', -1, 64)
	if m.Gender != "" {
		out["gender"] = m.Gender
	}
	out["disease_code"] = m.DiseaseCode()
	return out
}

// Features is the structured household derived from a client record.
// Members keep the order in which they were declared.
type Features struct {
	Members     []Member `json:"members"`
	NumAdults   *int     `json:"num_adults,omitempty"`
	NumChildren *int     `json:"num_children,omitempty"`
}

// Primary returns the first declared member, the primary applicant.
func (f *Features) Primary() (Member, bool) {
	if f == nil || len(f.Members) == 0 {
		return Member{}, false
	}
	return f.Members[0], true
}

// FamilyStructure is the household aggregate computed once per analysis.
type FamilyStructure struct {
	Adults         int                 `json:"adults"`
	Children       int                 `json:"children"`
	MemberAilments map[string][]string `json:"member_ailments"`
	MemberAges     map[string]float64  `json:"member_ages"`
}

// NewFamilyStructure counts adults and children using threshold.
func NewFamilyStructure(members []Member, threshold float64) FamilyStructure {
	fs := FamilyStructure{
		MemberAilments: make(map[string][]string, len(members)),
		MemberAges:     make(map[string]float64, len(members)),
	}
	fs.Adults, fs.Children = CountAdultsChildren(members, threshold)
	for _, m := range members {
		fs.MemberAilments[m.Label()] = append([]string(nil), m.DiseaseCodes...)
		fs.MemberAges[m.Label()] = m.Age
	}
	return fs
}

// CountAdultsChildren splits members by the adult age threshold.
func CountAdultsChildren(members []Member, threshold float64) (adults, children int) {
	for _, m := range members {
		if m.IsAdult(threshold) {
			adults++
		} else {
			children++
		}
	}
	return adults, children
}
