package domain

import (
	"context"
	"io"
	"time"
)

// Object is a top-level entry of a backup store.
type Object struct {
	Name    string
	ModTime time.Time
	Size    int64
}

// ArtifactWriter receives the bytes of one artifact. Nothing is visible
// under the artifact name until Commit succeeds; Abort discards the data.
type ArtifactWriter interface {
	io.Writer
	Commit() (location string, err error)
	Abort() error
}

type Storage interface {
	Create(ctx context.Context, name string) (ArtifactWriter, error)
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, name string) error
	Location(name string) string
	Type() string
}
