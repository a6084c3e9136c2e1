package domain

import "io"

type Compressor interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
	Extension() string
}
