package resource

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config locates an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// NewS3Client connects to the endpoint described by cfg.
func NewS3Client(cfg S3Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must not be empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

// S3Object reads an object from an S3-compatible bucket. Its size and
// modification time are taken from a stat made when it is created.
type S3Object struct {
	client *minio.Client
	bucket string
	key    string
	info   minio.ObjectInfo
}

// StatS3Object looks up key in bucket.
func StatS3Object(ctx context.Context, client *minio.Client, bucket, key string) (*S3Object, error) {
	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("stat s3://%s/%s: %w", bucket, key, err)
	}
	return &S3Object{client: client, bucket: bucket, key: key, info: info}, nil
}

func (o *S3Object) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", o.bucket, o.key, err)
	}
	return obj, nil
}

func (o *S3Object) Size() (int64, bool) {
	return o.info.Size, o.info.Size >= 0
}

func (o *S3Object) ModTime() (time.Time, bool) {
	return o.info.LastModified, !o.info.LastModified.IsZero()
}

// UploadS3 writes size bytes from r to key in bucket, creating the bucket
// first if it does not exist.
func UploadS3(ctx context.Context, client *minio.Client, bucket, key string, r io.Reader, size int64) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	if _, err := client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
