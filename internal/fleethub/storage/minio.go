package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/fleethub/pkg/options"
)

type minioProvider struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOProvider creates an S3-protocol provider bound to one bucket.
func NewMinIOProvider(opts *options.S3Options, bucket string) (Provider, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
	}

	minioOpts := &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	if bucket == "" {
		bucket = opts.BucketName
	}

	return &minioProvider{
		client:     client,
		bucketName: bucket,
	}, nil
}

// NewS3Resolver returns a Resolver whose s3:// URIs are served by MinIO.
func NewS3Resolver(opts *options.S3Options) *Resolver {
	if opts == nil || opts.Endpoint == "" {
		return &Resolver{}
	}
	return &Resolver{
		ObjectStore: func(bucket string) (Provider, error) {
			return NewMinIOProvider(opts, bucket)
		},
	}
}

func (p *minioProvider) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := p.client.GetObject(ctx, p.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", p.bucketName, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, p.bucketName, key)
		}
		return nil, fmt.Errorf("failed to read object %s/%s: %w", p.bucketName, key, err)
	}
	return data, nil
}
