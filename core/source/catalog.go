package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/internal/logger"
)

// HTTPCatalog talks to the data-catalog platform's JSON action API
// (datastore_search for records, resource_show for resource metadata).
type HTTPCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPCatalog creates a catalog client for the given API base URL,
// e.g. https://catalog.example.org/api/3/action.
func NewHTTPCatalog(baseURL, apiKey string) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type searchResult struct {
	Records []json.RawMessage `json:"records"`
	Fields  []record.Field    `json:"fields"`
}

type actionResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// FetchPage requests one page of records via datastore_search.
func (c *HTTPCatalog) FetchPage(ctx context.Context, resourceID string, limit, offset int) ([]record.Record, error) {
	result, err := c.search(ctx, resourceID, limit, offset)
	if err != nil {
		return nil, err
	}

	records := make([]record.Record, 0, len(result.Records))
	for i, raw := range result.Records {
		rec, err := decodeRecord(raw, result.Fields)
		if err != nil {
			return nil, fmt.Errorf("error decoding record %d at offset %d: %w", i, offset, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Fields returns the resource's field metadata from a zero-row search.
func (c *HTTPCatalog) Fields(ctx context.Context, resourceID string) ([]record.Field, error) {
	result, err := c.search(ctx, resourceID, 0, 0)
	if err != nil {
		return nil, err
	}
	return result.Fields, nil
}

// Resource fetches display name and datastore state via resource_show.
func (c *HTTPCatalog) Resource(ctx context.Context, resourceID string) (ResourceInfo, error) {
	raw, err := c.call(ctx, "resource_show", map[string]any{"id": resourceID})
	if err != nil {
		return ResourceInfo{}, err
	}

	var meta struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		DatastoreActive any    `json:"datastore_active"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ResourceInfo{}, fmt.Errorf("error decoding resource metadata: %w", err)
	}

	return ResourceInfo{
		ID:              meta.ID,
		Name:            meta.Name,
		DatastoreActive: !IsFalsey(meta.DatastoreActive),
	}, nil
}

func (c *HTTPCatalog) search(ctx context.Context, resourceID string, limit, offset int) (searchResult, error) {
	raw, err := c.call(ctx, "datastore_search", map[string]any{
		"resource_id": resourceID,
		"limit":       limit,
		"offset":      offset,
	})
	if err != nil {
		return searchResult{}, err
	}

	var result searchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return searchResult{}, fmt.Errorf("error decoding search result: %w", err)
	}
	return result, nil
}

func (c *HTTPCatalog) call(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("error encoding %s request: %w", action, err)
	}

	endpoint, err := url.JoinPath(c.baseURL, action)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog URL: %w", err)
	}

	logger.Debug("Calling catalog action %s", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog action %s failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog action %s returned HTTP %d", action, resp.StatusCode)
	}

	var parsed actionResponse
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("error decoding %s response: %w", action, err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("catalog action %s unsuccessful: %s", action, string(parsed.Error))
	}

	return parsed.Result, nil
}

// decodeRecord builds an ordered record from a raw JSON object, using the
// field metadata for ordering. json.Number keeps int/float apart through
// the round trip to the cache file.
func decodeRecord(raw json.RawMessage, fields []record.Field) (record.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	values := map[string]any{}
	if err := dec.Decode(&values); err != nil {
		return record.Record{}, err
	}

	rec := record.New()
	for _, f := range fields {
		v, ok := values[f.ID]
		if !ok {
			v = nil
		}
		rec.Set(f.ID, v)
	}
	return rec, nil
}
