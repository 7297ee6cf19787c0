package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogManager implements Manager with throttled line-based output for
// non-TTY environments such as CI or container logs.
type LogManager struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLogManager creates a log-based manager writing to stderr.
func NewLogManager() *LogManager {
	return &LogManager{out: os.Stderr}
}

func (m *LogManager) NewTracker(index, total int, name string) Tracker {
	return &logTracker{
		mgr:   m,
		index: index,
		total: total,
		name:  name,
		start: time.Now(),
	}
}

func (m *LogManager) Wait() {}

func (m *LogManager) SetOverallStats(complete, failed int, packages int64) {
	m.log(fmt.Sprintf("%d complete, %d failed, %s packages", complete, failed, humanCount(packages)))
}

func (m *LogManager) log(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(m.out, "%s %s\n", ts, msg)
}

// logTracker implements Tracker with throttled log output. It may be shared
// by concurrent downloads.
type logTracker struct {
	mu      sync.Mutex
	mgr     *LogManager
	index   int
	total   int
	name    string
	start   time.Time
	stage   string
	lastLog time.Time
}

const logInterval = 20 * time.Second

func (t *logTracker) log(msg string) {
	t.mgr.log(fmt.Sprintf("[%d/%d] %s  %s", t.index+1, t.total, t.name, msg))
}

func (t *logTracker) SetStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.lastLog = time.Time{}
	t.log(stage)
}

func (t *logTracker) SetProgress(current, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.lastLog) < logInterval {
		return
	}
	t.lastLog = now

	if total > 0 {
		pct := float64(current) / float64(total) * 100
		t.log(fmt.Sprintf("%s  %s / %s (%.0f%%)", t.stage, humanCount(current), humanCount(total), pct))
	} else if current > 0 {
		t.log(fmt.Sprintf("%s  %s", t.stage, humanCount(current)))
	}
}

func (t *logTracker) SetCounter(name string, value int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if time.Since(t.lastLog) < logInterval {
		return
	}
	t.lastLog = time.Now()
	t.log(fmt.Sprintf("%s  %s: %s", t.stage, name, humanCount(value)))
}

func (t *logTracker) Done() {
	elapsed := time.Since(t.start).Truncate(time.Millisecond)
	t.log(fmt.Sprintf("Finished in %s", elapsed))
}

func humanCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}
