package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	RunID string   `json:"run_id"`
	Plans []string `json:"plans"`
}

func TestWriteResult_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "result.json")
	require.NoError(t, WriteResult(context.Background(), path, doc{RunID: "r1", Plans: []string{"Plan_A"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got doc
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Contains(t, string(data), "\n  \"plans\"")
}

func TestWriteResult_Stdout(t *testing.T) {
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	defer func() { stdout = orig }()

	require.NoError(t, WriteResult(context.Background(), Stdout, doc{RunID: "r2"}))
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
	assert.Contains(t, buf.String(), `"run_id": "r2"`)
}

func TestWriteResult_BadS3URI(t *testing.T) {
	err := WriteResult(context.Background(), "s3://bucket-only", doc{})
	assert.Error(t, err)
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLines(&buf, []doc{{RunID: "a"}, {RunID: "b"}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{`{"run_id":"a","plans":null}`, `{"run_id":"b","plans":null}`}, lines)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc{RunID: "r3"}))
	assert.Equal(t, "{\n  \"run_id\": \"r3\",\n  \"plans\": null\n}\n", buf.String())
}
