package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrArtifactNotFound is returned when no GridFS file has the requested name.
var ErrArtifactNotFound = errors.New("artifact not found in gridfs")

// ArtifactRepository stores catalog artifacts (songs table, index) as GridFS files.
// When several revisions share a name, the newest upload wins.
type ArtifactRepository struct {
	bucket *gridfs.Bucket
}

func NewArtifactRepository(db *mongo.Database, bucketName string) (*ArtifactRepository, error) {
	b, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket %q: %w", bucketName, err)
	}
	return &ArtifactRepository{bucket: b}, nil
}

// Open streams the newest file called name. The ctx deadline, if any, bounds the whole read.
func (r *ArtifactRepository) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := r.bucket.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}

	stream, err := r.bucket.OpenDownloadStreamByName(name, options.GridFSName().SetRevision(-1))
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Put uploads data as a new revision of name.
func (r *ArtifactRepository) Put(ctx context.Context, name string, data io.Reader) error {
	if dl, ok := ctx.Deadline(); ok {
		if err := r.bucket.SetWriteDeadline(dl); err != nil {
			return err
		}
	}
	_, err := r.bucket.UploadFromStream(name, data)
	return err
}
