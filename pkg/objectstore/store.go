package objectstore

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"

	"worker-preprocess/pkg/locator"
)

// Store is the object store gateway: blobs addressed by store://bucket/key
// locators.
type Store interface {
	// Fetch downloads the object behind loc into destPath.
	Fetch(ctx context.Context, loc string, destPath string) error
	// PutFile uploads a local file and returns its locator.
	PutFile(ctx context.Context, localPath, bucket, key, contentType string) (string, error)
	// PutStream uploads from a reader of known size and returns its locator.
	PutStream(ctx context.Context, r io.Reader, size int64, bucket, key, contentType string) (string, error)
}

type minioStore struct {
	client *minio.Client
}

func NewMinioStore(client *minio.Client) Store {
	return &minioStore{client: client}
}

func (s *minioStore) Fetch(ctx context.Context, loc string, destPath string) error {
	bucket, key, err := locator.Parse(loc)
	if err != nil {
		return err
	}
	return s.client.FGetObject(ctx, bucket, key, destPath, minio.GetObjectOptions{})
}

func (s *minioStore) PutFile(ctx context.Context, localPath, bucket, key, contentType string) (string, error) {
	_, err := s.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return locator.Format(bucket, key), nil
}

func (s *minioStore) PutStream(ctx context.Context, r io.Reader, size int64, bucket, key, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return locator.Format(bucket, key), nil
}
