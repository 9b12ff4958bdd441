package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/datastore_search", func(w http.ResponseWriter, r *http.Request) {
		var params struct {
			ResourceID string `json:"resource_id"`
			Limit      int    `json:"limit"`
			Offset     int    `json:"offset"`
		}
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("bad search body: %v", err)
		}

		records := `[]`
		if params.Limit > 0 && params.Offset == 0 {
			// fields metadata deliberately orders name before id; records
			// are JSON objects whose own key order differs
			records = `[{"id": 1, "name": "first"}, {"id": 2, "name": "second"}]`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "result": {"fields": [{"id":"name","type":"text"},{"id":"id","type":"int"}], "records": ` + records + `}}`))
	})

	mux.HandleFunc("/resource_show", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "result": {"id": "res-1", "name": "licences", "datastore_active": true}}`))
	})

	mux.HandleFunc("/failing_action", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error": {"message": "not found"}}`))
	})

	return httptest.NewServer(mux)
}

func TestCatalogFetchPageOrdersByFieldMetadata(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL, "")
	records, err := c.FetchPage(context.Background(), "res-1", 100, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	var keys []string
	for k := range records[0].All() {
		keys = append(keys, k)
	}
	if len(keys) != 2 || keys[0] != "name" || keys[1] != "id" {
		t.Errorf("field order = %v, want metadata order [name id]", keys)
	}

	id, _ := records[1].Get("id")
	if id != json.Number("2") {
		t.Errorf("id = %v (%T), want json.Number 2", id, id)
	}
}

func TestCatalogFields(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL, "")
	fields, err := c.Fields(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("Fields() error = %v", err)
	}
	if len(fields) != 2 || fields[0].ID != "name" || fields[1].Type != "int" {
		t.Errorf("fields = %v", fields)
	}
}

func TestCatalogResource(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL, "")
	info, err := c.Resource(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("Resource() error = %v", err)
	}
	if info.Name != "licences" || !info.DatastoreActive {
		t.Errorf("info = %+v", info)
	}
}

func TestCatalogUnsuccessfulAction(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL, "")
	if _, err := c.call(context.Background(), "failing_action", nil); err == nil {
		t.Fatal("expected error for unsuccessful action")
	}
}

func TestCatalogHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL, "")
	if _, err := c.FetchPage(context.Background(), "res-1", 10, 0); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestCatalogSendsAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success": true, "result": {}}`))
	}))
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL, "secret-key")
	if _, err := c.Resource(context.Background(), "res-1"); err != nil {
		t.Fatalf("Resource() error = %v", err)
	}
	if gotAuth != "secret-key" {
		t.Errorf("Authorization = %q, want secret-key", gotAuth)
	}
}

func TestIsFalsey(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"bool true", true, false},
		{"bool false", false, true},
		{"string false", "false", true},
		{"string False", "False", true},
		{"string true", "true", false},
		{"nil", nil, true},
		{"number", 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFalsey(tt.in); got != tt.want {
				t.Errorf("IsFalsey(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
