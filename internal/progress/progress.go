// Package progress reports per-submission progress for batch analysis.
package progress

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Tracker tracks progress for a single submission.
type Tracker interface {
	SetStage(stage string)
	SetProgress(current, total int64)
	SetCounter(name string, value int64)
	Done()
}

// Manager creates trackers for individual submissions.
type Manager interface {
	NewTracker(index, total int, name string) Tracker
	Wait()
	SetOverallStats(complete, failed int, packages int64)
}

// MPBManager implements Manager using the mpb multi-progress-bar library.
type MPBManager struct {
	container *mpb.Progress
	mu        sync.Mutex
	overall   *mpb.Bar
	total     int
}

// NewMPBManager creates an mpb-based manager for total submissions.
func NewMPBManager(total int) *MPBManager {
	p := mpb.New(mpb.WithWidth(60))
	overall := p.AddBar(int64(total),
		mpb.PrependDecorators(decor.Name("submissions ", decor.WCSyncSpaceR)),
		mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
	)
	return &MPBManager{container: p, overall: overall, total: total}
}

// NewTracker creates a new progress bar for a submission.
func (m *MPBManager) NewTracker(index, total int, name string) Tracker {
	stageVal := &atomic.Value{}
	stageVal.Store("")
	counters := &atomic.Value{}
	counters.Store("")

	m.mu.Lock()
	bar := m.container.AddBar(100,
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("[%d/%d] %s ", index+1, total, name), decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				return stageVal.Load().(string) + counters.Load().(string)
			}),
		),
	)
	m.mu.Unlock()

	return &mpbTracker{bar: bar, stage: stageVal, counters: counters}
}

// Wait waits for all progress bars to finish.
func (m *MPBManager) Wait() {
	m.overall.SetTotal(int64(m.total), true)
	m.container.Wait()
}

// SetOverallStats advances the overall bar.
func (m *MPBManager) SetOverallStats(complete, failed int, packages int64) {
	m.overall.SetCurrent(int64(complete + failed))
}

type mpbTracker struct {
	bar      *mpb.Bar
	stage    *atomic.Value
	counters *atomic.Value
}

func (t *mpbTracker) SetStage(stage string) {
	t.stage.Store(stage)
	t.bar.SetCurrent(0)
}

func (t *mpbTracker) SetProgress(current, total int64) {
	if total > 0 {
		pct := int64(float64(current) / float64(total) * 100)
		t.bar.SetCurrent(pct)
	}
}

func (t *mpbTracker) SetCounter(name string, value int64) {
	t.counters.Store(fmt.Sprintf("  %s: %s", name, humanCount(value)))
}

func (t *mpbTracker) Done() {
	t.bar.SetTotal(100, true)
}

// NoopManager discards progress and keeps the final stats for callers.
type NoopManager struct {
	Complete int32
	Failed   int32
	Packages int64
}

func (m *NoopManager) NewTracker(index, total int, name string) Tracker {
	return noopTracker{}
}

func (m *NoopManager) Wait() {}

func (m *NoopManager) SetOverallStats(complete, failed int, packages int64) {
	atomic.StoreInt32(&m.Complete, int32(complete))
	atomic.StoreInt32(&m.Failed, int32(failed))
	atomic.StoreInt64(&m.Packages, packages)
}

type noopTracker struct{}

func (noopTracker) SetStage(string)          {}
func (noopTracker) SetProgress(int64, int64) {}
func (noopTracker) SetCounter(string, int64) {}
func (noopTracker) Done()                    {}

// Noop returns a tracker that discards everything.
func Noop() Tracker { return noopTracker{} }
