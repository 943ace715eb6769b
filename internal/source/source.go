// Package source resolves catalog artifacts (the songs table and the similarity index) by
// name, independent of where they are stored.
//
// Every backend implements Source. Backends holding connections also implement io.Closer;
// use Close to release them.
package source

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned (wrapped) when the backend has no artifact with the given name.
var ErrNotFound = errors.New("artifact not found")

// Source opens artifacts by name. Implementations must be safe for concurrent use.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// String describes the backend for logs, never including credentials.
	String() string
}

// Close releases src if it holds resources.
func Close(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
