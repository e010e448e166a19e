// Package publish uploads the canonical table to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"pathfinder/internal/config"
	"pathfinder/internal/logging"
	"pathfinder/internal/pipeline"
	"pathfinder/pkg/models"
)

// Publisher uploads the canonical file after every successful merge
type Publisher struct {
	client     s3iface.S3API
	path       string
	bucketName string
	bucketURL  string
	cdnURL     string
	region     string
	objectKey  string
	logger     logging.Logger
}

// NewPublisher creates a client for the configured Spaces bucket. path is the
// canonical file to upload.
func NewPublisher(cfg *config.Config, path string, logger logging.Logger) (*Publisher, error) {
	sp := cfg.Spaces
	if sp.AccessKeyID == "" || sp.AccessKeySecret == "" {
		return nil, fmt.Errorf("spaces credentials are required")
	}
	if sp.BucketName == "" {
		return nil, fmt.Errorf("spaces bucket name is required")
	}

	// https://<bucket>.<region>.digitaloceanspaces.com -> https://<region>.digitaloceanspaces.com
	endpoint := fmt.Sprintf("https://%s.digitaloceanspaces.com", sp.Region)

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(sp.AccessKeyID, sp.AccessKeySecret, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(sp.Region),
		S3ForcePathStyle: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create spaces session: %w", err)
	}

	logger.Info("Spaces publisher initialized", logging.Fields{
		"endpoint":    endpoint,
		"bucket_name": sp.BucketName,
		"object_key":  sp.ObjectKey,
	})
	return newPublisher(s3.New(sess), cfg, path, logger), nil
}

func newPublisher(client s3iface.S3API, cfg *config.Config, path string, logger logging.Logger) *Publisher {
	return &Publisher{
		client:     client,
		path:       path,
		bucketName: cfg.Spaces.BucketName,
		bucketURL:  cfg.Spaces.BucketURL,
		cdnURL:     cfg.Spaces.CDNEndpoint,
		region:     cfg.Spaces.Region,
		objectKey:  cfg.Spaces.ObjectKey,
		logger:     logger,
	}
}

func (p *Publisher) Name() string { return "spaces" }

// Deliver uploads the canonical file twice: under the stable object key the
// dashboard reads, and under a per-run snapshot key.
func (p *Publisher) Deliver(ctx context.Context, report *pipeline.Report, rows []models.CanonicalPosting) error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read canonical file: %w", err)
	}

	for _, key := range []string{p.objectKey, p.snapshotKey(report.RunID)} {
		if _, err := p.upload(ctx, key, data); err != nil {
			return err
		}
	}

	p.logger.Info("Canonical table published", logging.Fields{
		"url":        p.PublicURL(p.objectKey),
		"rows":       len(rows),
		"size_bytes": len(data),
	})
	return nil
}

func (p *Publisher) upload(ctx context.Context, key string, data []byte) (string, error) {
	_, err := p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv; charset=utf-8"),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		p.logger.Error("Failed to upload object", logging.Fields{
			"object_key": key,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return p.PublicURL(key), nil
}

// snapshotKey places the run snapshot next to the stable key
func (p *Publisher) snapshotKey(runID string) string {
	dir, file := "", p.objectKey
	if i := strings.LastIndex(p.objectKey, "/"); i >= 0 {
		dir, file = p.objectKey[:i+1], p.objectKey[i+1:]
	}
	return dir + "runs/" + runID + "/" + file
}

// PublicURL prefers the CDN, then the bucket URL, then the regional endpoint
func (p *Publisher) PublicURL(key string) string {
	if p.cdnURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(p.cdnURL, "/"), key)
	}
	if p.bucketURL != "" {
		base := strings.TrimRight(p.bucketURL, "/")
		if !strings.HasPrefix(base, "https://") {
			base = "https://" + base
		}
		return fmt.Sprintf("%s/%s", base, key)
	}
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", p.bucketName, p.region, key)
}

// Healthy checks that the bucket is reachable
func (p *Publisher) Healthy(ctx context.Context) error {
	_, err := p.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.bucketName),
	})
	return err
}
