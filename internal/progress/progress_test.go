package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogManager(t *testing.T) {
	var buf bytes.Buffer
	m := &LogManager{out: &buf}

	tr := m.NewTracker(1, 3, "sub-42")
	tr.SetStage("scoring")
	tr.SetCounter("plans", 12)
	tr.SetProgress(5, 10)
	tr.Done()
	m.SetOverallStats(2, 1, 15_000)

	out := buf.String()
	assert.Contains(t, out, "[2/3] sub-42  scoring")
	assert.Contains(t, out, "Finished in")
	assert.Contains(t, out, "2 complete, 1 failed, 15.0K packages")
	assert.Equal(t, 1, strings.Count(out, "plans: 12"))
	// Progress right after the counter line is throttled.
	assert.NotContains(t, out, "(50%)")
}

func TestNoopManager(t *testing.T) {
	m := &NoopManager{}
	tr := m.NewTracker(0, 1, "x")
	tr.SetStage("a")
	tr.Done()
	m.SetOverallStats(3, 1, 7)
	assert.Equal(t, int32(3), m.Complete)
	assert.Equal(t, int32(1), m.Failed)
	assert.Equal(t, int64(7), m.Packages)
}

func TestHumanCount(t *testing.T) {
	assert.Equal(t, "999", humanCount(999))
	assert.Equal(t, "12.5K", humanCount(12_500))
	assert.Equal(t, "2.0M", humanCount(2_000_000))
}
