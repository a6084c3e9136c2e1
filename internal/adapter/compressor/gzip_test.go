package compressor

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	. "github.com/smartystreets/goconvey/convey"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestGzipCompressor(t *testing.T) {
	Convey("Given a GzipCompressor", t, func() {
		compressor := NewGzip(6)

		Convey("NewWriter method", func() {
			Convey("When compressing a SQL dump", func() {
				inputContent := []byte(strings.Repeat("INSERT INTO t VALUES (1,'x');\n", 500))
				var out bytes.Buffer

				w, err := compressor.NewWriter(&out)
				So(err, ShouldBeNil)
				_, err = w.Write(inputContent)
				So(err, ShouldBeNil)
				So(w.Close(), ShouldBeNil)

				Convey("It should produce a valid gzip stream of the same content", func() {
					So(out.Len(), ShouldBeLessThan, len(inputContent))

					gzipReader, err := gzip.NewReader(&out)
					So(err, ShouldBeNil)
					defer gzipReader.Close()

					decompressed, err := io.ReadAll(gzipReader)
					So(err, ShouldBeNil)
					So(decompressed, ShouldResemble, inputContent)
				})
			})

			Convey("When nothing is written", func() {
				var out bytes.Buffer
				w, err := compressor.NewWriter(&out)
				So(err, ShouldBeNil)
				So(w.Close(), ShouldBeNil)

				Convey("It should still emit a well-formed empty stream", func() {
					gzipReader, err := gzip.NewReader(&out)
					So(err, ShouldBeNil)
					decompressed, err := io.ReadAll(gzipReader)
					So(err, ShouldBeNil)
					So(len(decompressed), ShouldEqual, 0)
				})
			})

			Convey("When the underlying writer fails", func() {
				w, err := compressor.NewWriter(failingWriter{})
				So(err, ShouldBeNil)
				_, _ = w.Write(bytes.Repeat([]byte("a"), 1<<20))
				err = w.Close()

				Convey("It should surface the error on Close at the latest", func() {
					So(err, ShouldNotBeNil)
				})
			})
		})

		Convey("Level handling", func() {
			So(NewGzip(9).Level(), ShouldEqual, 9)
			So(NewGzip(0).Level(), ShouldEqual, gzip.DefaultCompression)
			So(NewGzip(42).Level(), ShouldEqual, gzip.DefaultCompression)
		})

		Convey("Extension", func() {
			So(compressor.Extension(), ShouldEqual, ".gz")
		})
	})
}
