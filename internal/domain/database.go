package domain

import (
	"context"
	"io"
)

// Database dumps one configured database through its vendor tool.
type Database interface {
	// Dump streams the uncompressed dump into w. It returns once the
	// vendor process has exited.
	Dump(ctx context.Context, w io.Writer) error
	GetName() string
	GetType() string
	// Binary is the vendor tool the dump runs.
	Binary() string
	Ping(ctx context.Context) error
}
