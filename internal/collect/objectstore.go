package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hpcbench/multibench/internal/platform/env"
)

// ObjectStoreConfig locates the bucket that job output files are shipped to.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

func ObjectStoreConfigFromEnv() (ObjectStoreConfig, error) {
	useSSL, err := env.Bool("MULTIBENCH_S3_USE_SSL", false)
	if err != nil {
		return ObjectStoreConfig{}, err
	}
	cfg := ObjectStoreConfig{
		Endpoint:  env.String("MULTIBENCH_S3_ENDPOINT", "localhost:9000"),
		AccessKey: env.String("MULTIBENCH_S3_ACCESS_KEY", ""),
		SecretKey: env.String("MULTIBENCH_S3_SECRET_KEY", ""),
		Region:    env.String("MULTIBENCH_S3_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    env.String("MULTIBENCH_S3_BUCKET", "results"),
	}
	if err := cfg.Validate(); err != nil {
		return ObjectStoreConfig{}, err
	}
	return cfg, nil
}

func (c ObjectStoreConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// ObjectReader reads job output objects from an S3-compatible store. Output
// paths map to object keys with path separators preserved.
type ObjectReader struct {
	client *minio.Client
	bucket string
}

func NewObjectReader(cfg ObjectStoreConfig) (*ObjectReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	return &ObjectReader{client: client, bucket: cfg.Bucket}, nil
}

func (r *ObjectReader) ReadOutput(ctx context.Context, path string) (string, error) {
	if r == nil || r.client == nil {
		return "", fmt.Errorf("object reader not initialized")
	}
	obj, err := r.client.GetObject(ctx, r.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get object %s: %w", path, err)
	}
	defer func() { _ = obj.Close() }()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrNotAvailable
		}
		return "", fmt.Errorf("read object %s: %w", path, err)
	}
	return string(data), nil
}
