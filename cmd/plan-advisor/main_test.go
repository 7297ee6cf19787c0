package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `[
  {"plan_name": "Plan_A", "policy_code": "FLO_2_1", "disease_code": "GENERAL", "status": "active",
   "gender": "All", "adult_min_entry_age": 0, "adult_max_entry_age": 65},
  {"plan_name": "Plan_B", "policy_code": "IND_1_0", "disease_code": "CANCER", "status": "active",
   "gender": "All", "adult_min_entry_age": "0", "adult_max_entry_age": "65"}
]`

const testFeatures = `{
  "self":   {"name": "Ravi", "age": 40, "gender": "Male", "status": "active"},
  "spouse": {"name": "Asha", "age": 38, "gender": "Female", "status": "active"},
  "child1": {"name": "Kiran", "age": 10, "gender": "Male", "status": "active", "disease_code": "cancer"}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyze_Features(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "plans.json", testCatalog)
	featuresPath := writeFile(t, dir, "family.json", testFeatures)
	outPath := filepath.Join(dir, "result.json")

	_, err := run(t, "analyze",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--catalog", catalogPath,
		"--features", featuresPath,
		"-o", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var res struct {
		RunID          string           `json:"run_id"`
		AllRankedPlans []map[string]any `json:"all_ranked_plans"`
		Combination    struct {
			RankedPackages []struct {
				TotalScore float64 `json:"total_score"`
			} `json:"ranked_packages"`
		} `json:"option_2_combination_plans"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.AllRankedPlans, 2)
	require.Len(t, res.Combination.RankedPackages, 1)
	assert.InDelta(t, 1.6, res.Combination.RankedPackages[0].TotalScore, 1e-9)
}

func TestAnalyze_RequiresHousehold(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "analyze",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--catalog", writeFile(t, dir, "plans.json", testCatalog))
	assert.Error(t, err)
}

func TestStatusWorkflow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "workflow.db")
	cfg := filepath.Join(dir, "missing.yaml")
	form := writeFile(t, dir, "form.json", testFeatures)

	out, err := run(t, "status", "submit", form, "--db", db, "--name", "Ravi", "--agent", "agent-1", "--config", cfg)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	_, err = run(t, "status", "set", id, "sup_review", "--db", db, "--by", "sup-1", "--config", cfg)
	require.NoError(t, err)

	_, err = run(t, "status", "set", id, "CLOSED", "--db", db, "--config", cfg)
	assert.Error(t, err)

	out, err = run(t, "status", "history", id, "--db", db, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "SUBMITTED")
	assert.Contains(t, out, "SUP_REVIEW")
	assert.Contains(t, out, "next: [SUP_APPROVED SUP_REJECTED CHANGES_REQUESTED]")

	_, err = run(t, "analyze", "--submission", id, "--db", db, "--no-llm", "--config", cfg,
		"--catalog", writeFile(t, dir, "plans.json", testCatalog), "-o", filepath.Join(dir, "r.json"))
	require.NoError(t, err)

	out, err = run(t, "status", "proposal", id, "--db", db, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id"`)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "plan-advisor.yaml")

	_, err := run(t, "config", "init", "--config", path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = run(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "exists")

	out, err := run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "adult_age_threshold: 25")
}

func TestRecordPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "c_1.json"), recordPath("out", "c/1"))
	assert.Equal(t, "s3://bucket/runs/c1.json", recordPath("s3://bucket/runs/", "c1"))
}
