package features

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gyeh/plan-advisor/internal/ailment"
	"github.com/gyeh/plan-advisor/internal/plan"
)

// Decode reads a member map of the form
//
//	{"member_1": {"name": "Asha", "age": 41, "disease_code": "CARDIAC"}, ..., "num_adults": 2}
//
// keeping members in declaration order. Object values are members; scalar
// values under num_adults and num_children are hints; other scalars are
// ignored. A "members" array of member objects is accepted as well.
// Free-text ailments are mapped to canonical codes with keywords.
func Decode(r io.Reader, keywords map[string][]string) (*plan.Features, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: reading opening token: %v", ErrMalformedFeatures, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected '{', got %v", ErrMalformedFeatures, tok)
	}

	f := &plan.Features{}
	names := map[string]int{}

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: reading key: %v", ErrMalformedFeatures, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string key, got %T", ErrMalformedFeatures, tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decoding %q: %v", ErrMalformedFeatures, key, err)
		}
		trimmed := strings.TrimSpace(string(raw))

		switch {
		case strings.HasPrefix(trimmed, "{"):
			m, err := decodeMember(key, raw, keywords)
			if err != nil {
				return nil, err
			}
			f.Members = append(f.Members, uniqueName(m, names))

		case key == "members" && strings.HasPrefix(trimmed, "["):
			var list []json.RawMessage
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("%w: members: %v", ErrMalformedFeatures, err)
			}
			for i, item := range list {
				m, err := decodeMember(fmt.Sprintf("member_%d", i+1), item, keywords)
				if err != nil {
					return nil, err
				}
				f.Members = append(f.Members, uniqueName(m, names))
			}

		case key == "num_adults":
			f.NumAdults = hint(raw)
		case key == "num_children":
			f.NumChildren = hint(raw)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: reading closing token: %v", ErrMalformedFeatures, err)
	}
	return f, nil
}

func decodeMember(key string, raw json.RawMessage, keywords map[string][]string) (plan.Member, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return plan.Member{}, fmt.Errorf("%w: member %q: %v", ErrMalformedFeatures, key, err)
	}

	m := plan.Member{Key: key}
	if k := scalarString(fields["key"]); k != "" {
		m.Key = k
	}
	m.Name = strings.TrimSpace(scalarString(fields["name"]))
	m.Gender = normalizeGender(scalarString(fields["gender"]))
	m.Status = strings.TrimSpace(scalarString(fields["status"]))

	ageRaw, ok := fields["age"]
	if !ok {
		return plan.Member{}, fmt.Errorf("%w: member %q has no age", ErrMalformedFeatures, key)
	}
	var age plan.FlexibleFloat
	if err := json.Unmarshal(ageRaw, &age); err != nil || age.Value == nil {
		return plan.Member{}, fmt.Errorf("%w: member %q has invalid age %s", ErrMalformedFeatures, key, ageRaw)
	}
	m.Age = *age.Value

	var codes []string
	for _, field := range []string{"disease_code", "disease_codes", "ailments"} {
		codes = append(codes, codeList(fields[field])...)
	}
	m.DiseaseCodes = normalizeCodes(codes, keywords)

	for name, v := range fields {
		switch name {
		case "key", "name", "age", "gender", "status", "disease_code", "disease_codes", "ailments":
			continue
		case "attributes":
			var attrs map[string]json.RawMessage
			if json.Unmarshal(v, &attrs) == nil {
				for k, av := range attrs {
					setAttribute(&m, k, av)
				}
			}
			continue
		}
		setAttribute(&m, name, v)
	}
	return m, nil
}

// setAttribute records a declared scalar attribute under its lower-cased
// name. Nested values are dropped.
func setAttribute(m *plan.Member, name string, raw json.RawMessage) {
	v := strings.TrimSpace(scalarString(raw))
	if v == "" {
		return
	}
	if m.Attributes == nil {
		m.Attributes = map[string]string{}
	}
	m.Attributes[strings.ToLower(strings.TrimSpace(name))] = v
}

// codeList accepts "A,B", ["A", "B"] or null.
func codeList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		var out []string
		for _, s := range list {
			out = append(out, strings.Split(s, ",")...)
		}
		return out
	}
	return strings.Split(scalarString(raw), ",")
}

func normalizeCodes(codes []string, keywords map[string][]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, c := range codes {
		code := ailment.Normalize(c, keywords)
		if ailment.IsGeneral(code) {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func normalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "":
		return ""
	case "f", "female", "woman":
		return "Female"
	case "m", "male", "man":
		return "Male"
	}
	return strings.TrimSpace(g)
}

// uniqueName gives every member a distinct label, since labels name the
// per-member score columns.
func uniqueName(m plan.Member, seen map[string]int) plan.Member {
	if m.Name == "" {
		m.Name = m.Key
	}
	base := m.Name
	if seen[base] > 0 {
		for k := 2; ; k++ {
			if cand := base + "_" + strconv.Itoa(k); seen[cand] == 0 {
				m.Name = cand
				break
			}
		}
	}
	seen[base]++
	if m.Name != base {
		seen[m.Name]++
	}
	return m
}

func hint(raw json.RawMessage) *int {
	var v plan.FlexibleFloat
	if err := json.Unmarshal(raw, &v); err != nil || v.Value == nil || *v.Value < 0 {
		return nil
	}
	n := int(*v.Value)
	return &n
}

// scalarString renders a JSON scalar as text. Objects and arrays yield "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
