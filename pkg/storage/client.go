// Package storage archives wipe-run evidence to S3.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/errors"
)

// ObjectPutter is the subset of the S3 API the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client uploads run records to a bucket.
type Client struct {
	s3Client ObjectPutter
	bucket   string
	prefix   string
}

// NewClient creates an S3 client using the default credential chain.
func NewClient(ctx context.Context, bucket, region, prefix string) (*Client, error) {
	slog.Info("s3_client_init", "bucket", bucket, "region", region, "prefix", prefix)

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	slog.Info("s3_client_created", "bucket", bucket)
	return NewClientWithAPI(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewClientWithAPI wraps an existing S3 API implementation.
func NewClientWithAPI(api ObjectPutter, bucket, prefix string) *Client {
	return &Client{s3Client: api, bucket: bucket, prefix: prefix}
}

// Key returns the object key for run: <prefix>/<machine_id>/<run_id>.json.
func (c *Client) Key(run *db.WipeRun) string {
	return path.Join(c.prefix, sanitizeSegment(run.MachineID), run.RunID+".json")
}

// ArchiveRun uploads run as JSON and returns the object key.
func (c *Client) ArchiveRun(ctx context.Context, run *db.WipeRun) (string, error) {
	key := c.Key(run)
	slog.Info("s3_archive_start", "bucket", c.bucket, "s3_key", key, "run_id", run.RunID)

	body, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode run")
	}
	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"run-id":     run.RunID,
			"machine-id": run.MachineID,
			"status":     run.Status,
			"sha256":     checksum,
		},
	})
	if err != nil {
		slog.Error("s3_put_object_failed", "s3_key", key, "error", err)
		return "", errors.Wrap(err, "failed to upload run record")
	}

	slog.Info("s3_archive_complete", "s3_key", key, "size_bytes", len(body), "sha256", checksum[:16]+"...")
	return key, nil
}

// sanitizeSegment makes a machine id safe as a single key segment.
func sanitizeSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	b := []byte(s)
	for i, ch := range b {
		if ch == '/' || ch == ':' {
			b[i] = '-'
		}
	}
	return string(b)
}
