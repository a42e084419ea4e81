package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"nodleads/config"
)

// Archiver keeps a copy of every export in an S3-compatible bucket, so
// skip-trace batches sent off to vendors can be traced back later.
type Archiver struct {
	client *s3.Client
	bucket string
	region string
}

func NewArchiver(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		// DO Spaces, R2 and minio all speak the S3 API with a custom
		// endpoint and path-style addressing.
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &Archiver{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// ArchiveExport stores an export under exports/YYYY/MM/<name> and returns
// the object key.
func (a *Archiver) ArchiveExport(ctx context.Context, name string, data io.Reader, contentType string) (string, error) {
	now := time.Now().UTC()
	key := fmt.Sprintf("exports/%04d/%02d/%s", now.Year(), now.Month(), name)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// ObjectURL returns the addressable URL of an archived object.
func (a *Archiver) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key)
}
