package encoders

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fenrix-tec/ioxport/core/record"
)

// EncodeRow encodes a record as a single-line JSON object, preserving field
// order. Used for cache lines, the json handler and geojson properties, so
// the output must never contain embedded newlines.
func EncodeRow(row record.Record) ([]byte, error) {
	var buf bytes.Buffer

	// Pre-allocate to avoid reallocation on wide rows
	buf.Grow(row.Len() * 32)

	buf.WriteByte('{')

	i := 0
	for k, v := range row.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(fmt.Sprintf("%q", k))
		buf.WriteByte(':')

		valueJSON, err := marshalWithoutHTMLEscape(v)
		if err != nil {
			return nil, fmt.Errorf("error marshaling value for key %q: %w", k, err)
		}
		buf.Write(valueJSON)
		i++
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalWithoutHTMLEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
