package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gyeh/plan-advisor/internal/plan"
)

// FileSource reads a JSON or NDJSON catalog, optionally gzip-compressed.
type FileSource struct {
	Path   string
	Format Format
	Gzip   bool
	opts   Options
}

// Load reads and decodes the file.
func (s *FileSource) Load(_ context.Context) ([]plan.Plan, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if s.Gzip {
		gz, err := NewGzipReader(f, s.opts.UseStdGzip)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	plans, err := ReadPlans(r, s.Format, s.opts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	return plans, nil
}

// ReadPlans decodes a streamed JSON or NDJSON catalog.
func ReadPlans(r io.Reader, format Format, opts Options) ([]plan.Plan, error) {
	var (
		plans []plan.Plan
		err   error
	)
	switch format {
	case FormatJSON:
		plans, err = DecodeJSON(r, opts)
	case FormatNDJSON:
		plans, err = DecodeNDJSON(r, opts)
	default:
		return nil, fmt.Errorf("%w: %s is not a streaming format", ErrUnsupportedSource, format)
	}
	if err != nil {
		return nil, err
	}
	return finalize(plans, opts.Logger), nil
}
