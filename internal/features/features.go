// Package features turns a client intake record into the structured
// household the scoring engine consumes.
package features

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// ErrMalformedFeatures is returned when derived output is not a member map.
var ErrMalformedFeatures = errors.New("malformed features")

// Deriver extracts household features from raw client JSON.
type Deriver interface {
	Derive(ctx context.Context, clientJSON []byte) (*plan.Features, error)
}

// StaticDeriver treats its input as already-derived features.
type StaticDeriver struct {
	Keywords map[string][]string
}

// Derive decodes clientJSON as a member map.
func (d StaticDeriver) Derive(_ context.Context, clientJSON []byte) (*plan.Features, error) {
	return Decode(bytes.NewReader(clientJSON), d.Keywords)
}

// CleanAndParse strips a surrounding markdown code fence from model output
// and decodes what remains.
func CleanAndParse(raw string, keywords map[string][]string) (*plan.Features, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedFeatures)
	}
	return Decode(strings.NewReader(text), keywords)
}

// StripFences removes a leading ``` line (with optional language tag) and a
// trailing ``` line.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
