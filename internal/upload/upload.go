// Package upload ships finished recordings to cloud storage. It is wired
// for real against AWS S3 via aws-sdk-go-v2, replacing the
// describe-only provider stub the ambient config layer was modeled on.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/watchcam/watchcam/internal/config"
)

const contentType = "video/x-matroska"

// Client uploads recordings to one S3 bucket.
type Client struct {
	bucket   string
	uploader *manager.Uploader
}

// New resolves the AWS region (environment first, then cloud.region from
// config) and builds an S3 uploader. It returns an error, rather than a
// nil Client, when cloud.enabled is true but no region can be resolved -
// matching spec.md's "cloud.enabled requires a resolvable region".
func New(ctx context.Context, cloud config.Cloud) (*Client, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = cloud.Region
	}
	if region == "" {
		return nil, fmt.Errorf("upload: region not set")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("upload: load aws config: %w", err)
	}

	svc := s3.NewFromConfig(cfg)
	return &Client{
		bucket:   cloud.Bucket,
		uploader: manager.NewUploader(svc),
	}, nil
}

// Upload streams the file at path to the configured bucket under a
// {label}/{basename} key.
func (c *Client) Upload(ctx context.Context, label, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("upload: open %s: %w", path, err)
	}
	defer f.Close()

	key := filepath.Join(label, filepath.Base(path))
	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload: put %s/%s: %w", c.bucket, key, err)
	}
	return nil
}
