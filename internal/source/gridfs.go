package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"songrec/internal/db"
	"songrec/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
)

// GridFS reads artifacts stored in a MongoDB GridFS bucket. It owns the client.
type GridFS struct {
	client *mongo.Client
	repo   *repository.ArtifactRepository
	label  string
}

func NewGridFS(ctx context.Context, uri, database, bucket string) (*GridFS, error) {
	client, err := db.ConnectMongo(ctx, uri)
	if err != nil {
		return nil, err
	}
	repo, err := repository.NewArtifactRepository(client.Database(database), bucket)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &GridFS{client: client, repo: repo, label: "gridfs:" + database + "/" + bucket}, nil
}

func (s *GridFS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.repo.Open(ctx, name)
	if errors.Is(err, repository.ErrArtifactNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	return rc, err
}

// Repository exposes the underlying store, e.g. for publishing new artifacts.
func (s *GridFS) Repository() *repository.ArtifactRepository { return s.repo }

func (s *GridFS) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *GridFS) String() string { return s.label }
