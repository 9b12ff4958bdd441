package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fenrix-tec/ioxport/core/encoders"
	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/core/source"
	"github.com/fenrix-tec/ioxport/internal/logger"
)

// DefaultPageSize is how many records one source round-trip asks for.
const DefaultPageSize = 20000

// maxLineSize bounds a single cached record. Spatial records can carry
// multi-megabyte geometries, so this is generous.
const maxLineSize = 512 * 1024 * 1024

// Cache is the one-time local materialization of a record source: one
// self-contained JSON object per line. JSON lines were chosen over CSV
// because they keep value types (numbers, null) and tolerate embedded
// newlines and delimiters inside string fields.
type Cache struct {
	path string
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Materialize drains the record source into path, paging until an empty
// page comes back. The returned cache is complete: no reader is handed out
// before this function returns. progress may be nil.
func Materialize(ctx context.Context, src source.RecordSource, resourceID, path string, pageSize int, progress func(written int)) (*Cache, int, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating cache file: %w", err)
	}

	// 256KB buffer, same as the artifact writers
	w := bufio.NewWriterSize(file, 256*1024)

	written := 0
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			file.Close()
			return nil, written, err
		}

		page, err := src.FetchPage(ctx, resourceID, pageSize, offset)
		if err != nil {
			file.Close()
			return nil, written, fmt.Errorf("error fetching page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			line, err := encoders.EncodeRow(rec)
			if err != nil {
				file.Close()
				return nil, written, fmt.Errorf("error encoding record %d: %w", written, err)
			}
			if _, err := w.Write(line); err != nil {
				file.Close()
				return nil, written, fmt.Errorf("error writing cache line: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				file.Close()
				return nil, written, fmt.Errorf("error writing cache line: %w", err)
			}
			written++
			if progress != nil {
				progress(written)
			}
		}

		offset += pageSize
		logger.Debug("%d records cached so far", written)
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return nil, written, fmt.Errorf("error flushing cache: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, written, fmt.Errorf("error closing cache: %w", err)
	}

	logger.Debug("Cache materialized: %d records at %s", written, path)
	return &Cache{path: path}, written, nil
}

// Rows opens a fresh cursor over the full cached stream. Each handler gets
// its own cursor; cursors never share position.
func (c *Cache) Rows() (Rows, error) {
	file, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("error opening cache: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &fileRows{file: file, scanner: scanner}, nil
}

// Rows is a forward-only cursor over cached records, shaped like the
// database cursors the handlers were written against.
type Rows interface {
	Next() bool
	Record() record.Record
	Err() error
	Close() error
}

type fileRows struct {
	file    *os.File
	scanner *bufio.Scanner
	current record.Record
	err     error
	line    int
}

func (r *fileRows) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.scanner.Scan() {
		r.err = r.scanner.Err()
		return false
	}
	r.line++

	rec, err := decodeLine(r.scanner.Bytes())
	if err != nil {
		r.err = fmt.Errorf("error decoding cache line %d: %w", r.line, err)
		return false
	}
	r.current = rec
	return true
}

func (r *fileRows) Record() record.Record {
	return r.current
}

func (r *fileRows) Err() error {
	return r.err
}

func (r *fileRows) Close() error {
	return r.file.Close()
}

// decodeLine parses one cached object, walking tokens so field order is
// preserved. Values decode with json.Number to keep int/float distinct.
func decodeLine(line []byte) (record.Record, error) {
	dec := json.NewDecoder(strings.NewReader(string(line)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return record.Record{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return record.Record{}, fmt.Errorf("expected object, got %v", tok)
	}

	rec := record.New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return record.Record{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return record.Record{}, fmt.Errorf("expected field name, got %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return record.Record{}, fmt.Errorf("error decoding field %q: %w", key, err)
		}
		rec.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return record.Record{}, err
	}
	return rec, nil
}
