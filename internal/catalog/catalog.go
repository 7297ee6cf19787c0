// Package catalog loads the insurance plan catalog from files, databases
// and remote storage.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/plan-advisor/internal/cloud"
	"github.com/gyeh/plan-advisor/internal/plan"
)

// ErrUnsupportedSource is returned by Open for URIs it cannot dispatch.
var ErrUnsupportedSource = errors.New("unsupported catalog source")

// DefaultTable is the catalog table read from SQL sources.
const DefaultTable = "features"

// Format is a catalog encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatNDJSON  Format = "ndjson"
	FormatParquet Format = "parquet"
	FormatSQLite  Format = "sqlite"
)

// Source yields the catalog.
type Source interface {
	Load(ctx context.Context) ([]plan.Plan, error)
}

// Options control how sources are read.
type Options struct {
	// ActiveOnly drops plans whose status is not RequiredStatus while loading.
	ActiveOnly     bool
	RequiredStatus string
	// UseStdGzip selects compress/gzip over pgzip.
	UseStdGzip bool
	// Table is the SQL table name. Defaults to DefaultTable.
	Table   string
	Region  string
	TempDir string
	// OnProgress is called with downloaded and total bytes for remote sources.
	OnProgress func(downloaded, total int64)
	Logger     *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) table() string {
	if o.Table == "" {
		return DefaultTable
	}
	return o.Table
}

// keep applies the load-time status filter.
func (o Options) keep(status string) bool {
	if !o.ActiveOnly {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(status), strings.TrimSpace(o.RequiredStatus))
}

// Open returns the source for uri:
//
//	plans.json[.gz]          array or {"plans": [...]}
//	plans.jsonl[.gz]         one plan per line (also .ndjson)
//	plans.parquet
//	plans.db, sqlite://path  "features" table
//	postgres://...           "features" table
//	http(s)://...            any of the file formats above
//	s3://bucket/key          any of the file formats above
func Open(uri string, opts Options) (Source, error) {
	lower := strings.ToLower(uri)
	switch {
	case cloud.IsS3URI(uri):
		bucket, key, err := cloud.ParseS3URI(uri)
		if err != nil {
			return nil, err
		}
		return &S3Source{Bucket: bucket, Key: key, opts: opts}, nil
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return &HTTPSource{URL: uri, opts: opts}, nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return &PostgresSource{ConnString: uri, opts: opts}, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return &SQLiteSource{Path: uri[len("sqlite://"):], opts: opts}, nil
	}
	return openPath(uri, opts)
}

func openPath(p string, opts Options) (Source, error) {
	format, gz, err := DetectFormat(p)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatParquet:
		if gz {
			return nil, fmt.Errorf("%w: compressed parquet %q", ErrUnsupportedSource, p)
		}
		return &ParquetSource{Path: p, opts: opts}, nil
	case FormatSQLite:
		return &SQLiteSource{Path: p, opts: opts}, nil
	}
	return &FileSource{Path: p, Format: format, Gzip: gz, opts: opts}, nil
}

// DetectFormat infers the format from a path or URL suffix.
func DetectFormat(p string) (Format, bool, error) {
	name := strings.ToLower(path.Base(p))
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	gz := strings.HasSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gz")

	switch path.Ext(name) {
	case ".json":
		return FormatJSON, gz, nil
	case ".jsonl", ".ndjson":
		return FormatNDJSON, gz, nil
	case ".parquet":
		return FormatParquet, gz, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, gz, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrUnsupportedSource, p)
}

// Static serves an in-memory catalog.
type Static []plan.Plan

// Load returns a copy of the plans.
func (s Static) Load(context.Context) ([]plan.Plan, error) {
	return append([]plan.Plan(nil), s...), nil
}

// Multi loads several sources concurrently and merges them in order.
// A plan whose name was already seen is dropped.
type Multi struct {
	Sources []Source
	Logger  *zap.Logger
}

// Load runs every source and merges the results.
func (m Multi) Load(ctx context.Context) ([]plan.Plan, error) {
	results := make([][]plan.Plan, len(m.Sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.Sources {
		g.Go(func() error {
			plans, err := src.Load(gctx)
			if err != nil {
				return fmt.Errorf("source %d: %w", i, err)
			}
			results[i] = plans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []plan.Plan
	for _, plans := range results {
		merged = append(merged, plans...)
	}
	return finalize(merged, m.Logger), nil
}

// finalize sanitizes plans and drops unnamed and duplicate entries.
func finalize(plans []plan.Plan, log *zap.Logger) []plan.Plan {
	if log == nil {
		log = zap.NewNop()
	}
	out := plans[:0]
	seen := make(map[string]struct{}, len(plans))
	for _, p := range plans {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			log.Warn("dropping plan without name", zap.String("policy_code", p.PolicyCode))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			log.Warn("dropping duplicate plan", zap.String("plan_name", p.Name))
			continue
		}
		seen[p.Name] = struct{}{}
		p.Sanitize()
		out = append(out, p)
	}
	return out
}
