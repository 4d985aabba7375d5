package fcvault

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobFetcher retrieves the raw bytes of a vault snapshot from wherever backups are
// persisted.
type BlobFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// s3Getter is the part of the S3 API the fetcher uses, separated so tests can fake it.
type s3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher is a BlobFetcher reading a fixed object from an S3 bucket.
type S3Fetcher struct {
	client s3Getter
	bucket string
	key    string
}

// NewS3Fetcher creates an S3Fetcher using credentials and region from the default AWS
// configuration chain (environment, shared config, instance role).
func NewS3Fetcher(ctx context.Context, bucket, key string) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return NewS3FetcherWithClient(s3.NewFromConfig(cfg), bucket, key), nil
}

// NewS3FetcherWithClient creates an S3Fetcher with a pre-built client.
func NewS3FetcherWithClient(client s3Getter, bucket, key string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket, key: key}
}

// Fetch implements BlobFetcher.
func (f *S3Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", f.bucket, f.key, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", f.bucket, f.key, err)
	}
	return data, nil
}
