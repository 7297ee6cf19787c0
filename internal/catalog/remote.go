package catalog

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/gyeh/plan-advisor/internal/cloud"
	"github.com/gyeh/plan-advisor/internal/plan"
)

// HTTPSource downloads a catalog over HTTP(S). JSON and NDJSON bodies are
// decoded as they stream; parquet and SQLite bodies are spooled to a temp
// file first.
type HTTPSource struct {
	URL  string
	opts Options
}

// Load downloads and decodes the catalog.
func (s *HTTPSource) Load(ctx context.Context) ([]plan.Plan, error) {
	name := s.URL
	if u, err := url.Parse(s.URL); err == nil {
		name = u.Path
	}
	format, gzSuffix, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	body, contentType, err := fetchCatalog(ctx, s.URL, s.opts)
	if err != nil {
		return nil, fmt.Errorf("downloading catalog: %w", err)
	}
	defer body.Close()

	var reader io.Reader = body
	if gzSuffix || strings.Contains(contentType, "gzip") {
		gz, err := NewGzipReader(reader, s.opts.UseStdGzip)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var plans []plan.Plan
	switch format {
	case FormatJSON, FormatNDJSON:
		plans, err = ReadPlans(reader, format, s.opts)
	default:
		plans, err = loadSpooled(ctx, reader, path.Base(strings.TrimSuffix(name, ".gz")), s.opts)
	}
	if err != nil {
		return nil, err
	}

	if err := body.verify(); err != nil {
		return nil, err
	}
	return plans, nil
}

// loadSpooled writes r to a temp file named after base and loads it by path.
func loadSpooled(ctx context.Context, r io.Reader, base string, opts Options) ([]plan.Plan, error) {
	tmpFile, err := os.CreateTemp(opts.TempDir, "catalog-*-"+base)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	_, err = io.Copy(tmpFile, r)
	if closeErr := tmpFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("writing temp file: %w", err)
	}

	src, err := openPath(tmpFile.Name(), opts)
	if err != nil {
		return nil, err
	}
	return src.Load(ctx)
}

// S3Source reads a catalog object from S3. The object is copied to a temp
// file and dispatched on its key suffix.
type S3Source struct {
	Bucket string
	Key    string
	opts   Options
}

// Load downloads the object and decodes it.
func (s *S3Source) Load(ctx context.Context) ([]plan.Plan, error) {
	if _, _, err := DetectFormat(s.Key); err != nil {
		return nil, err
	}

	client, err := cloud.NewS3Client(ctx, s.Bucket, s.opts.Region)
	if err != nil {
		return nil, err
	}
	tmp, err := client.DownloadToTemp(ctx, s.Key, s.opts.TempDir)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	src, err := openPath(tmp, s.opts)
	if err != nil {
		return nil, err
	}
	return src.Load(ctx)
}
