package features

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/gyeh/plan-advisor/internal/ailment"
	"github.com/gyeh/plan-advisor/internal/plan"
)

const household = `{
  "member_1": {"name": "Asha", "age": 41, "gender": "female", "status": "active", "disease_code": "GENERAL", "city": "Pune"},
  "member_2": {"name": "Ravi", "age": "44", "gender": "M", "disease_code": "heart disease, diabetic"},
  "num_adults": 2,
  "member_3": {"name": "Kiran", "age": 9, "disease_code": ["Kidney stones"]},
  "num_children": "1",
  "note": "ignored"
}`

func TestDecode_Household(t *testing.T) {
	f, err := Decode(strings.NewReader(household), ailment.DefaultKeywords())
	require.NoError(t, err)

	want := []plan.Member{
		{Key: "member_1", Name: "Asha", Age: 41, Gender: "Female", Status: "active", Attributes: map[string]string{"city": "Pune"}},
		{Key: "member_2", Name: "Ravi", Age: 44, Gender: "Male", DiseaseCodes: []string{"CARDIAC", "DIABETES"}},
		{Key: "member_3", Name: "Kiran", Age: 9, DiseaseCodes: []string{"RENAL"}},
	}
	if diff := cmp.Diff(want, f.Members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, f.NumAdults)
	require.NotNil(t, f.NumChildren)
	assert.Equal(t, 2, *f.NumAdults)
	assert.Equal(t, 1, *f.NumChildren)
}

func TestDecode_MembersArrayAndDuplicateNames(t *testing.T) {
	doc := `{"members": [{"name": "Sam", "age": 30}, {"name": "Sam", "age": 3}, {"age": 60}]}`
	f, err := Decode(strings.NewReader(doc), nil)
	require.NoError(t, err)
	require.Len(t, f.Members, 3)
	assert.Equal(t, "Sam", f.Members[0].Name)
	assert.Equal(t, "Sam_2", f.Members[1].Name)
	assert.Equal(t, "member_3", f.Members[2].Name)
	assert.True(t, f.Members[1].IsGeneral())
}

func TestDecode_SuffixSkipsDeclaredNames(t *testing.T) {
	doc := `{"a": {"name": "Ravi_2", "age": 30}, "b": {"name": "Ravi", "age": 31}, "c": {"name": "Ravi", "age": 32}, "d": {"name": "Ravi", "age": 33}}`
	f, err := Decode(strings.NewReader(doc), nil)
	require.NoError(t, err)

	var got []string
	for _, m := range f.Members {
		got = append(got, m.Label())
	}
	if diff := cmp.Diff([]string{"Ravi_2", "Ravi", "Ravi_3", "Ravi_4"}, got); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":    `Sorry, I cannot help with that.`,
		"array":       `[{"name": "a", "age": 3}]`,
		"missing age": `{"member_1": {"name": "a"}}`,
		"bad age":     `{"member_1": {"name": "a", "age": "old"}}`,
		"truncated":   `{"member_1": {"name": "a", "age": 3}`,
		"empty":       ``,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc), nil)
			assert.ErrorIs(t, err, ErrMalformedFeatures)
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripFences("  ```\n{\"a\": 1}\n```  "))
	assert.Equal(t, `{"a": 1}`, StripFences(`{"a": 1}`))

	_, err := CleanAndParse("```json\n```", nil)
	assert.ErrorIs(t, err, ErrMalformedFeatures)
}

func TestStaticDeriver(t *testing.T) {
	f, err := StaticDeriver{}.Derive(context.Background(), []byte(`{"m": {"name": "Lee", "age": 33}}`))
	require.NoError(t, err)
	require.Len(t, f.Members, 1)
	assert.Equal(t, "Lee", f.Members[0].Name)
}

type fakeModels struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
	input  string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.input = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGenAIDeriver(t *testing.T) {
	fake := &fakeModels{text: "```json\n" + household + "\n```"}
	d, err := newGenAIDeriver(fake, GenAIOptions{Temperature: 0.1, ThinkingBudget: 1000, Keywords: ailment.DefaultKeywords()})
	require.NoError(t, err)

	f, err := d.Derive(context.Background(), []byte(`{"proposer": "Asha"}`))
	require.NoError(t, err)
	assert.Len(t, f.Members, 3)

	assert.Equal(t, "gemini-2.5-flash-lite", fake.model)
	assert.Equal(t, `{"proposer": "Asha"}`, fake.input)
	require.NotNil(t, fake.config.Temperature)
	assert.InDelta(t, 0.1, *fake.config.Temperature, 1e-6)
	assert.Equal(t, int32(1000), *fake.config.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, DefaultPrompt(), fake.config.SystemInstruction.Parts[0].Text)
}

func TestGenAIDeriver_Errors(t *testing.T) {
	boom := errors.New("quota exceeded")
	d, err := newGenAIDeriver(&fakeModels{err: boom}, GenAIOptions{})
	require.NoError(t, err)
	_, err = d.Derive(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, boom)

	d, err = newGenAIDeriver(&fakeModels{text: "I could not read the form."}, GenAIOptions{})
	require.NoError(t, err)
	_, err = d.Derive(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedFeatures)

	_, err = NewGenAIDeriver(context.Background(), GenAIOptions{})
	assert.Error(t, err)
}
