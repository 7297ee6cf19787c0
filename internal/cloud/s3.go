package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client wraps S3 operations for catalog download and result upload.
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client creates an S3 client for the given bucket. An empty region
// defers to the default AWS configuration chain.
func NewS3Client(ctx context.Context, bucket, region string) (*S3Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Client{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// IsS3URI reports whether uri uses the s3 scheme.
func IsS3URI(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "s3://")
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parsing %q: %w", uri, err)
	}
	if !strings.EqualFold(u.Scheme, "s3") || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 URI: %q", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 URI %q has no key", uri)
	}
	return u.Host, key, nil
}

// UploadJSON uploads v as indented JSON.
func (c *S3Client) UploadJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}

	tmpFile, err := os.CreateTemp("", "s3-upload-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		tmpFile.Close()
		return err
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        tmpFile,
		ContentType: aws.String("application/json"),
	})
	tmpFile.Close()
	if err != nil {
		return fmt.Errorf("putting S3 object %s: %w", key, err)
	}
	return nil
}

// DownloadToTemp copies an object into a temp file in dir and returns its
// path. The file keeps the key's base name as suffix so callers can detect
// the format. The caller removes the file.
func (c *S3Client) DownloadToTemp(ctx context.Context, key, dir string) (string, error) {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("getting S3 object %s: %w", key, err)
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(dir, "s3-*-"+path.Base(key))
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	_, err = io.Copy(tmpFile, resp.Body)
	if closeErr := tmpFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	return tmpFile.Name(), nil
}
