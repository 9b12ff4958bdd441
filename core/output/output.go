// Package output creates the destination streams conversion handlers
// write their artifacts to, optionally wrapping them in a compression
// codec. The resolved path is returned alongside the stream because
// compressed artifacts carry an extra extension.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fenrix-tec/ioxport/internal/logger"
)

const (
	None = "none"
	GZIP = "gzip"
	ZIP  = "zip"
	ZSTD = "zstd"
	LZ4  = "lz4"
)

// artifactBufferSize is the bufio size used for every artifact stream.
const artifactBufferSize = 256 * 1024

// Compressions lists the accepted compression names.
func Compressions() []string {
	return []string{None, GZIP, ZIP, ZSTD, LZ4}
}

// NewWriter opens the artifact stream at path with the requested
// compression and returns the stream plus the path actually created.
func NewWriter(path, compression string) (io.WriteCloser, string, error) {
	switch strings.ToLower(strings.TrimSpace(compression)) {
	case None, "":
		w, err := newFileWriter(path)
		return w, path, err
	case GZIP:
		return newGzipWriter(path)
	case ZIP:
		return newZipWriter(path)
	case ZSTD:
		return newZstdWriter(path)
	case LZ4:
		return newLz4Writer(path)
	default:
		return nil, "", fmt.Errorf("unsupported compression type %q", compression)
	}
}

func newFileWriter(path string) (io.WriteCloser, error) {
	logger.Debug("Creating artifact file: %s", path)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating file: %w", err)
	}
	return newBufferedWriteCloser(file, artifactBufferSize), nil
}

// bufferedWriteCloser wraps a WriteCloser with buffered I/O.
type bufferedWriteCloser struct {
	*bufio.Writer
	underlying io.WriteCloser
}

// Close flushes the buffer and closes the underlying writer.
func (bwc *bufferedWriteCloser) Close() error {
	if err := bwc.Writer.Flush(); err != nil {
		bwc.underlying.Close()
		return fmt.Errorf("error flushing buffer: %w", err)
	}
	return bwc.underlying.Close()
}

func newBufferedWriteCloser(wc io.WriteCloser, size int) io.WriteCloser {
	return &bufferedWriteCloser{
		Writer:     bufio.NewWriterSize(wc, size),
		underlying: wc,
	}
}

type compositeWriteCloser struct {
	io.Writer
	closeFunc func() error
}

// Close implements io.WriteCloser.
func (c *compositeWriteCloser) Close() error {
	if c.closeFunc == nil {
		return nil
	}
	return c.closeFunc()
}
