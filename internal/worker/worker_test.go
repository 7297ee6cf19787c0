package worker

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gyeh/plan-advisor/internal/analysis"
	"github.com/gyeh/plan-advisor/internal/features"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/progress"
)

const batchNDJSON = `{"unique_id": "c1", "client": {"self": {"name": "Ravi", "age": 40, "status": "active"}}}

{"client": {"self": {"name": "Meera", "age": 70, "status": "active"}}}
{"unique_id": "c3", "client": {"x": 1}, "features": {"self": {"name": "Ira", "age": 30, "status": "active"}}}
`

func TestReadRecords(t *testing.T) {
	recs, err := ReadRecords(strings.NewReader(batchNDJSON))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "c1", recs[0].ID)
	assert.Equal(t, "line-3", recs[1].ID)
	assert.Contains(t, string(recs[2].Payload()), "Ira")
}

func TestReadRecords_Errors(t *testing.T) {
	_, err := ReadRecords(strings.NewReader(`{"unique_id": "a"}`))
	assert.ErrorContains(t, err, "neither client nor features")

	_, err = ReadRecords(strings.NewReader("{\"unique_id\": \"a\", \"client\": {}}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestReadFile_GzipNDJSON(t *testing.T) {
	for _, std := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "batch.ndjson.gz")
		f, err := os.Create(path)
		require.NoError(t, err)
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(batchNDJSON))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		require.NoError(t, f.Close())

		recs, err := ReadFile(path, t.TempDir(), std)
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	}
}

func TestReadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))

	_, err := ReadFile(path, t.TempDir(), false)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestReadFile_SplitsJSONDocument(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"source": "agent-upload",
		"records": [
			{"unique_id": "a", "client": {"self": {"name": "A", "age": 30}}},
			{"unique_id": "b", "client": {"self": {"name": "B", "age": 31}}}
		]
	}`
	path := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	recs, err := ReadFile(path, dir, false)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestPool_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	catalog := []plan.Plan{{
		Name:       "Solo",
		PolicyCode: "IND_1_0",
		Status:     "active",
		Gender:     "All",
	}}
	a := analysis.New(features.StaticDeriver{}, analysis.DefaultOptions(), nil)
	records := []Record{
		{ID: "ok", Client: []byte(`{"self": {"name": "Ravi", "age": 40, "status": "active"}}`)},
		{ID: "bad", Client: []byte(`{"self": {"name": "Nobody"}}`)},
		{ID: "ok2", Features: []byte(`{"self": {"name": "Ira", "age": 30, "status": "active"}}`)},
	}
	mgr := &progress.NoopManager{}
	pool := &Pool{Workers: 2, Analyzer: a, Catalog: catalog, Progress: mgr}

	out := pool.Run(context.Background(), records)
	require.Len(t, out, 3)

	assert.Equal(t, "ok", out[0].ID)
	assert.NoError(t, out[0].Err)
	require.NotNil(t, out[0].Result)

	assert.Equal(t, "bad", out[1].ID)
	assert.ErrorIs(t, out[1].Err, analysis.ErrFeatureDerivation)
	assert.NotEmpty(t, out[1].Error)
	assert.Nil(t, out[1].Result)

	assert.Equal(t, "ok2", out[2].ID)
	assert.NoError(t, out[2].Err)

	assert.EqualValues(t, 2, mgr.Complete)
	assert.EqualValues(t, 1, mgr.Failed)
}

func TestSummarize(t *testing.T) {
	complete, failed, packages := Summarize([]Outcome{
		{ID: "a", Result: &analysis.Result{}},
		{ID: "b", Err: context.Canceled},
	})
	assert.Equal(t, 1, complete)
	assert.Equal(t, 1, failed)
	assert.Zero(t, packages)
}
