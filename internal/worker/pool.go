package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gyeh/plan-advisor/internal/analysis"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/progress"
)

// Outcome is the result of analyzing one batch record. Exactly one of Result
// and Error is set.
type Outcome struct {
	ID      string           `json:"unique_id"`
	Result  *analysis.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
	Elapsed time.Duration    `json:"-"`
	Err     error            `json:"-"`
}

// Pool analyzes batch records concurrently against one catalog.
type Pool struct {
	Workers  int
	Analyzer *analysis.Analyzer
	Catalog  []plan.Plan
	Progress progress.Manager
	Logger   *zap.Logger
}

// Run analyzes all records and returns their outcomes in input order. A
// failed record does not stop the others.
func (p *Pool) Run(ctx context.Context, records []Record) []Outcome {
	results := make([]Outcome, len(records))
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	mgr := p.Progress
	if mgr == nil {
		mgr = &progress.NoopManager{}
	}
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, rec := range records {
		wg.Add(1)
		go func(idx int, r Record) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = Outcome{ID: r.ID, Err: ctx.Err(), Error: ctx.Err().Error()}
				return
			}
			defer func() { <-sem }()

			tracker := mgr.NewTracker(idx, len(records), r.ID)
			start := time.Now()
			res, err := p.Analyzer.Analyze(ctx, r.Payload(), p.Catalog, tracker)
			out := Outcome{ID: r.ID, Result: res, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				out.Error = err.Error()
				log.Warn("record failed", zap.String("unique_id", r.ID), zap.Error(err))
			} else {
				tracker.SetCounter("packages", int64(res.PackageCount()))
			}
			results[idx] = out
			tracker.Done()
		}(i, rec)
	}

	wg.Wait()

	complete, failed, packages := Summarize(results)
	mgr.SetOverallStats(complete, failed, packages)
	return results
}

// Summarize counts successful and failed outcomes and the packages built.
func Summarize(outcomes []Outcome) (complete, failed int, packages int64) {
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		complete++
		if o.Result != nil {
			packages += int64(o.Result.PackageCount())
		}
	}
	return complete, failed, packages
}
