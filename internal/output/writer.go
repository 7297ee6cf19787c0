// Package output writes analysis results to a file, stdout or S3.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gyeh/plan-advisor/internal/cloud"
)

// Stdout is the destination that writes to standard output.
const Stdout = "-"

var stdout io.Writer = os.Stdout

// WriteResult writes v as indented JSON to dest: a file path, Stdout, or an
// s3://bucket/key URI. S3 uses the default AWS region resolution.
func WriteResult(ctx context.Context, dest string, v any) error {
	if cloud.IsS3URI(dest) {
		bucket, key, err := cloud.ParseS3URI(dest)
		if err != nil {
			return err
		}
		client, err := cloud.NewS3Client(ctx, bucket, "")
		if err != nil {
			return err
		}
		return client.UploadJSON(ctx, key, v)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	if dest == Stdout || dest == "" {
		return writeIndented(stdout, data)
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}
	return os.WriteFile(dest, data, 0o644)
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	return writeIndented(w, data)
}

func writeIndented(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// WriteLines writes one compact JSON document per line to w.
func WriteLines[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("encoding line %d: %w", i+1, err)
		}
	}
	return nil
}
