package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the location of a registry document stored in S3 or an
// S3-compatible service such as MinIO. Credentials come from the default
// AWS credential chain.
type S3Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string // optional; e.g. MinIO
	PathStyle bool
}

// S3Backend stores the registry document as a single S3 object.
type S3Backend struct {
	client *s3.Client
	bucket string
	key    string
}

// OpenS3 creates an S3 registry backend from cfg.
func OpenS3(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3Backend(client, cfg.Bucket, cfg.Key), nil
}

// NewS3Backend wraps an existing client. An empty key defaults to the
// conventional registry document name.
func NewS3Backend(client *s3.Client, bucket, key string) *S3Backend {
	if key == "" {
		key = DefaultPath
	}
	return &S3Backend{client: client, bucket: bucket, key: key}
}

func (b *S3Backend) Name() string {
	return "s3://" + b.bucket + "/" + b.key
}

func (b *S3Backend) Close() error { return nil }

func (b *S3Backend) Load(ctx context.Context) (map[string]map[string]string, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &b.bucket, Key: &b.key})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.Name(), err)
	}
	return Unmarshal(data)
}

func (b *S3Backend) Save(ctx context.Context, m map[string]map[string]string) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &b.key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
