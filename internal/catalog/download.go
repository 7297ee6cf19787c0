package catalog

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
)

// fetchAttempts bounds catalog GETs. Attempt n sleeps retryBase << n first.
const fetchAttempts = 3

var (
	catalogClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 10 * time.Minute,
	}
	retryBase = time.Second
)

// retryable reports whether a catalog server status may succeed on retry.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// fetchCatalog GETs a catalog URL, retrying transport errors, 429 and 5xx.
// The returned body is metered; callers must Close it and may call verify
// once they have consumed it.
func fetchCatalog(ctx context.Context, url string, opts Options) (*meteredBody, string, error) {
	log := opts.logger()
	var lastErr error
	for attempt := range fetchAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(retryBase << attempt):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", fmt.Errorf("creating request: %w", err)
		}
		resp, err := catalogClient.Do(req)
		if err != nil {
			lastErr = err
			log.Warn("catalog fetch failed", zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if resp.StatusCode == http.StatusOK {
			body := &meteredBody{rc: resp.Body, total: resp.ContentLength, onProgress: opts.OnProgress}
			return body, resp.Header.Get("Content-Type"), nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		if !retryable(resp.StatusCode) {
			return nil, "", lastErr
		}
		log.Warn("catalog server busy", zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
	}
	return nil, "", fmt.Errorf("catalog fetch gave up after %d attempts: %w", fetchAttempts, lastErr)
}

// meteredBody counts the bytes read from a catalog response and reports
// progress against its Content-Length.
type meteredBody struct {
	rc         io.ReadCloser
	read       int64
	total      int64
	onProgress func(downloaded, total int64)
}

func (b *meteredBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.read += int64(n)
		if b.onProgress != nil {
			b.onProgress(b.read, b.total)
		}
	}
	return n, err
}

func (b *meteredBody) Close() error { return b.rc.Close() }

// verify drains what the decoder left unread and fails if the server sent
// fewer bytes than it announced.
func (b *meteredBody) verify() error {
	if _, err := io.Copy(io.Discard, b); err != nil {
		return fmt.Errorf("draining body: %w", err)
	}
	if b.total > 0 && b.read != b.total {
		return fmt.Errorf("download truncated: got %d of %d bytes", b.read, b.total)
	}
	return nil
}

// NewGzipReader opens a gzip stream with pgzip, or with compress/gzip when
// useStdGzip is set.
func NewGzipReader(r io.Reader, useStdGzip bool) (io.ReadCloser, error) {
	if useStdGzip {
		return gzip.NewReader(r)
	}
	return pgzip.NewReader(r)
}
