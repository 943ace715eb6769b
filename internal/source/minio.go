package source

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio reads artifacts from a MinIO (or other S3-compatible) bucket.
type Minio struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinio(endpoint, accessKey, secretKey, bucket, prefix string, useSSL bool) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Minio{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *Minio) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open stats the object first; GetObject alone defers not-found errors to the first Read.
func (s *Minio) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%w: minio %s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("minio stat %s/%s: %w", s.bucket, key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s/%s: %w", s.bucket, key, err)
	}
	return obj, nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound" || code == "NoSuchBucket"
}

func (s *Minio) String() string {
	return "minio:" + path.Join(s.bucket, s.prefix)
}
