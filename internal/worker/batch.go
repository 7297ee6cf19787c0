package worker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielchalef/jsplit/pkg/jsplit"

	"github.com/gyeh/plan-advisor/internal/catalog"
)

// ErrNoRecords is returned when a batch input holds no households.
var ErrNoRecords = errors.New("batch input has no records")

// RecordsKey is the top-level array read from whole-document batch files.
const RecordsKey = "records"

const maxRecordSize = 16 << 20

// Record is one household in a batch. Client is a raw client record handed
// to the feature deriver. Features, when set, is an already-derived feature
// object and takes precedence.
type Record struct {
	ID       string          `json:"unique_id"`
	Client   json.RawMessage `json:"client,omitempty"`
	Features json.RawMessage `json:"features,omitempty"`
}

// Payload is the JSON handed to the deriver.
func (r Record) Payload() []byte {
	if len(r.Features) > 0 {
		return r.Features
	}
	return r.Client
}

// ReadRecords reads NDJSON batch records. Blank lines are skipped. Records
// without an ID are numbered by line.
func ReadRecords(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	var out []Record
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec.Payload()) == 0 {
			return nil, fmt.Errorf("line %d: record %q has neither client nor features", line, rec.ID)
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("line-%d", line)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}
	return out, nil
}

// ReadFile loads a batch from path. NDJSON files, optionally gzipped, are read
// line by line. A .json document is split on its top-level arrays first and
// the records array is read.
func ReadFile(path, tmpDir string, useStdGzip bool) ([]Record, error) {
	name := strings.TrimSuffix(strings.ToLower(path), ".gz")
	var (
		recs []Record
		err  error
	)
	if strings.HasSuffix(name, ".json") {
		recs, err = readSplit(path, tmpDir)
	} else {
		recs, err = readNDJSONFile(path, useStdGzip)
	}
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	return recs, nil
}

func readNDJSONFile(path string, useStdGzip bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := catalog.NewGzipReader(f, useStdGzip)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return ReadRecords(r)
}

func readSplit(path, tmpDir string) ([]Record, error) {
	dir, err := os.MkdirTemp(tmpDir, "batch-split-*")
	if err != nil {
		return nil, fmt.Errorf("creating split dir: %w", err)
	}
	defer os.RemoveAll(dir)

	files, err := SplitBatch(path, filepath.Join(dir, "split"))
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, p := range files {
		recs, err := readNDJSONFile(p, false)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// SplitBatch splits a JSON batch document into NDJSON chunks with jsplit and
// returns the chunks of the records array in order.
func SplitBatch(inputPath, outputDir string) ([]string, error) {
	// jsplit prints to stdout
	origStdout := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("failed to open /dev/null: %w", err)
	}
	os.Stdout = devNull
	err = jsplit.Split(inputPath, outputDir, true)
	os.Stdout = origStdout
	devNull.Close()
	if err != nil {
		return nil, fmt.Errorf("jsplit split failed: %w", err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read split output dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, RecordsKey+"_") && strings.HasSuffix(name, ".jsonl") {
			files = append(files, filepath.Join(outputDir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}
