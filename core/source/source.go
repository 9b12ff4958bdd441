package source

import (
	"context"

	"github.com/fenrix-tec/ioxport/core/record"
)

// RecordSource pages through a backing store. Implementations must return
// pages in a stable order for repeated calls with the same offset: the
// engine materializes the stream exactly once, but that one pass spans
// many FetchPage calls.
type RecordSource interface {
	FetchPage(ctx context.Context, resourceID string, limit, offset int) ([]record.Record, error)
}

// ResourceInfo is the slice of resource metadata the engine needs.
type ResourceInfo struct {
	ID              string
	Name            string
	DatastoreActive bool
}

// Catalog is a record source that also serves resource and field metadata.
type Catalog interface {
	RecordSource
	Resource(ctx context.Context, resourceID string) (ResourceInfo, error)
	Fields(ctx context.Context, resourceID string) ([]record.Field, error)
}

// IsFalsey reports whether a datastore-active flag is one of the false
// spellings that appear in the wild.
func IsFalsey(v any) bool {
	switch val := v.(type) {
	case bool:
		return !val
	case string:
		return val == "false" || val == "False"
	case nil:
		return true
	default:
		return false
	}
}
