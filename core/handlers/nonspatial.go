package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fenrix-tec/ioxport/core/cache"
	"github.com/fenrix-tec/ioxport/core/encoders"
	"github.com/fenrix-tec/ioxport/core/output"
	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/internal/logger"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// tabularHandler carries what every non-spatial handler needs: its
// registry name, target artifact path and the ordered field ids.
type tabularHandler struct {
	name        string
	path        string
	fieldIDs    []string
	compression string
}

func (h tabularHandler) Name() string {
	return h.name
}

func (h tabularHandler) open() (io.WriteCloser, string, error) {
	return output.NewWriter(h.path, h.compression)
}

type csvHandler struct {
	tabularHandler
}

func (h *csvHandler) ToFile(rows cache.Rows) (string, error) {
	w, path, err := h.open()
	if err != nil {
		return "", err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(h.fieldIDs); err != nil {
		w.Close()
		return "", fmt.Errorf("error writing csv header: %w", err)
	}

	count := 0
	for rows.Next() {
		values := rows.Record().Values(h.fieldIDs)
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = record.FormatValue(v)
		}
		if err := cw.Write(cells); err != nil {
			w.Close()
			return "", fmt.Errorf("error writing csv row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		w.Close()
		return "", err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		w.Close()
		return "", fmt.Errorf("error flushing csv: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d records to %s", h.name, count, path)
	return path, nil
}

type jsonHandler struct {
	tabularHandler
}

// ToFile writes one JSON array. A one-record lookback decides where the
// separating commas go, so zero, one and many records all produce valid
// JSON without buffering the dataset.
func (h *jsonHandler) ToFile(rows cache.Rows) (string, error) {
	w, path, err := h.open()
	if err != nil {
		return "", err
	}

	if _, err := io.WriteString(w, "["); err != nil {
		w.Close()
		return "", err
	}

	var pending []byte
	count := 0
	for rows.Next() {
		line, err := encoders.EncodeRow(rows.Record())
		if err != nil {
			w.Close()
			return "", err
		}
		if pending != nil {
			if _, err := w.Write(append(pending, ',')); err != nil {
				w.Close()
				return "", err
			}
		}
		pending = line
		count++
	}
	if err := rows.Err(); err != nil {
		w.Close()
		return "", err
	}

	if pending != nil {
		if _, err := w.Write(pending); err != nil {
			w.Close()
			return "", err
		}
	}
	if _, err := io.WriteString(w, "]"); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d records to %s", h.name, count, path)
	return path, nil
}

// xmlFlushEvery bounds how many rendered rows accumulate before a write.
const xmlFlushEvery = 5000

type xmlHandler struct {
	tabularHandler
}

func (h *xmlHandler) ToFile(rows cache.Rows) (string, error) {
	w, path, err := h.open()
	if err != nil {
		return "", err
	}

	tags := make([]string, len(h.fieldIDs))
	for i, id := range h.fieldIDs {
		tags[i] = sanitizeXMLTag(id)
	}

	if _, err := io.WriteString(w, xmlHeader+"<DATA>\n"); err != nil {
		w.Close()
		return "", err
	}

	var buf strings.Builder
	count := 0
	for rows.Next() {
		buf.WriteString(fmt.Sprintf(`  <ROW count="%d">`, count))
		buf.WriteByte('\n')
		for i, v := range rows.Record().Values(h.fieldIDs) {
			buf.WriteString(fmt.Sprintf("    <%s>%s</%s>\n", tags[i], xmlEscape(record.FormatValue(v)), tags[i]))
		}
		buf.WriteString("  </ROW>\n")
		count++

		if count%xmlFlushEvery == 0 {
			if _, err := io.WriteString(w, buf.String()); err != nil {
				w.Close()
				return "", err
			}
			buf.Reset()
		}
	}
	if err := rows.Err(); err != nil {
		w.Close()
		return "", err
	}

	buf.WriteString("</DATA>\n")
	if _, err := io.WriteString(w, buf.String()); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d records to %s", h.name, count, path)
	return path, nil
}

const xmlHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"

var xmlTagPattern = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// sanitizeXMLTag strips characters a field id may carry that an XML element
// name may not, and prefixes an underscore when the remainder does not
// start with a letter or underscore.
func sanitizeXMLTag(id string) string {
	tag := xmlTagPattern.ReplaceAllString(id, "")
	if tag == "" {
		return "_"
	}
	first := tag[0]
	if !(first == '_' || (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		tag = "_" + tag
	}
	return tag
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}

type yamlHandler struct {
	tabularHandler
}

// ToFile writes the dataset as one YAML sequence of mappings. Mappings are
// built as explicit nodes so field order survives; yaml.v3 would sort keys
// if handed a map. Each record is encoded as a single-element sequence the
// moment it arrives, so concatenation yields the full sequence without ever
// holding the dataset in memory.
func (h *yamlHandler) ToFile(rows cache.Rows) (string, error) {
	w, path, err := h.open()
	if err != nil {
		return "", err
	}

	count := 0
	for rows.Next() {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, id := range h.fieldIDs {
			v, _ := rows.Record().Get(id)
			key := &yaml.Node{Kind: yaml.ScalarNode, Value: id}
			val := &yaml.Node{}
			if err := val.Encode(yamlValue(v)); err != nil {
				w.Close()
				return "", fmt.Errorf("error encoding yaml value for %q: %w", id, err)
			}
			m.Content = append(m.Content, key, val)
		}

		// A fresh encoder per record avoids the document separator a
		// shared encoder would emit between Encode calls.
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		item := &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{m}}
		if err := enc.Encode(item); err != nil {
			enc.Close()
			w.Close()
			return "", fmt.Errorf("error encoding yaml record %d: %w", count, err)
		}
		if err := enc.Close(); err != nil {
			w.Close()
			return "", err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d records to %s", h.name, count, path)
	return path, nil
}

type xlsxHandler struct {
	tabularHandler
}

func (h *xlsxHandler) ToFile(rows cache.Rows) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		return "", fmt.Errorf("error creating stream writer: %w", err)
	}

	header := make([]any, len(h.fieldIDs))
	for i, id := range h.fieldIDs {
		header[i] = id
	}
	if err := sw.SetRow("A1", header); err != nil {
		return "", fmt.Errorf("error writing header row: %w", err)
	}

	count := 0
	for rows.Next() {
		values := rows.Record().Values(h.fieldIDs)
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, count+2)
		if err != nil {
			return "", err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return "", fmt.Errorf("error writing row %d: %w", count, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if err := sw.Flush(); err != nil {
		return "", fmt.Errorf("error flushing workbook: %w", err)
	}

	w, path, err := h.open()
	if err != nil {
		return "", err
	}
	if err := f.Write(w); err != nil {
		w.Close()
		return "", fmt.Errorf("error writing workbook: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d records to %s", h.name, count, path)
	return path, nil
}

// yamlValue and cellValue unwrap json.Number so numbers land typed instead
// of as strings.
func yamlValue(v any) any {
	return numericValue(v)
}

func cellValue(v any) any {
	return numericValue(v)
}
