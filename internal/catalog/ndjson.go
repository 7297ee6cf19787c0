package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	simdjson "github.com/minio/simdjson-go"
	"go.uber.org/zap"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// useSimd is false on CPUs without AVX2/CLMUL; lines are then filtered after
// the full decode.
var useSimd = simdjson.SupportedCPU()

// ParserName reports which JSON pre-filter NDJSON loading uses.
func ParserName() string {
	if useSimd {
		return "simdjson"
	}
	return "encoding/json"
}

// DecodeNDJSON reads one plan per line. With ActiveOnly set, lines are
// pre-filtered on status before the full decode.
func DecodeNDJSON(r io.Reader, opts Options) ([]plan.Plan, error) {
	log := opts.logger()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	var (
		plans  []plan.Plan
		pj     *simdjson.ParsedJson
		lineNo int
	)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if opts.ActiveOnly && useSimd {
			var status string
			var ok bool
			pj, status, ok = statusOf(line, pj)
			if ok && !opts.keep(status) {
				continue
			}
		}

		var p plan.Plan
		if err := json.Unmarshal(line, &p); err != nil {
			log.Warn("skipping malformed plan line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if !opts.keep(p.Status) {
			continue
		}
		plans = append(plans, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning line %d: %w", lineNo+1, err)
	}
	return plans, nil
}

// statusOf extracts the status field with simdjson. ok is false when the
// line cannot be parsed or has no string status, leaving the decision to
// the full decode.
func statusOf(line []byte, reuse *simdjson.ParsedJson) (*simdjson.ParsedJson, string, bool) {
	pj, err := simdjson.Parse(line, reuse)
	if err != nil {
		return reuse, "", false
	}

	var (
		status string
		found  bool
	)
	pj.ForEach(func(i simdjson.Iter) error {
		e, err := i.FindElement(nil, "status")
		if err != nil {
			return nil
		}
		s, err := e.Iter.String()
		if err != nil {
			return nil
		}
		status, found = strings.TrimSpace(s), true
		return nil
	})
	return pj, status, found
}
