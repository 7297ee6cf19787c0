package catalog

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// DecodeJSON streams a catalog that is either a top-level array of plans or
// an object whose "plans" key holds that array. Other keys are skipped.
// Elements that fail to decode are logged and skipped.
func DecodeJSON(r io.Reader, opts Options) ([]plan.Plan, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading opening token: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("expected '[' or '{', got %v", tok)
	}

	switch delim {
	case '[':
		return streamPlans(dec, opts)
	case '{':
	default:
		return nil, fmt.Errorf("expected '[' or '{', got %v", delim)
	}

	var plans []plan.Plan
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", tok)
		}

		if key != "plans" {
			if err := skipValue(dec); err != nil {
				return nil, fmt.Errorf("skipping key %q: %w", key, err)
			}
			continue
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading array start: %w", err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return nil, fmt.Errorf("expected '[', got %v", tok)
		}
		more, err := streamPlans(dec, opts)
		if err != nil {
			return nil, fmt.Errorf("streaming plans: %w", err)
		}
		plans = append(plans, more...)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading closing token: %w", err)
	}
	return plans, nil
}

// streamPlans reads array elements after the opening '[' through the
// closing ']'.
func streamPlans(dec *json.Decoder, opts Options) ([]plan.Plan, error) {
	log := opts.logger()
	var plans []plan.Plan
	index := 0
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding element %d: %w", index, err)
		}
		index++

		var p plan.Plan
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn("skipping malformed plan", zap.Int("index", index-1), zap.Error(err))
			continue
		}
		if !opts.keep(p.Status) {
			continue
		}
		plans = append(plans, p)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading array end: %w", err)
	}
	return plans, nil
}

// skipValue reads and discards the next JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for dec.More() {
				if _, err := dec.Token(); err != nil {
					return err
				}
				if err := skipValue(dec); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil {
				return err
			}
		case '[':
			for dec.More() {
				if err := skipValue(dec); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil {
				return err
			}
		}
	}
	return nil
}
