package compressor

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

type GzipCompressor struct {
	level int
}

// NewGzip returns a compressor writing gzip streams at the given level.
// Levels outside 1..9 fall back to gzip.DefaultCompression.
func NewGzip(level int) *GzipCompressor {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &GzipCompressor{level: level}
}

// NewWriter wraps w. Closing the returned writer flushes the gzip trailer
// but leaves w open.
func (g *GzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	gzipWriter, err := gzip.NewWriterLevel(w, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return gzipWriter, nil
}

func (g *GzipCompressor) Extension() string {
	return ".gz"
}

func (g *GzipCompressor) Level() int {
	return g.level
}
