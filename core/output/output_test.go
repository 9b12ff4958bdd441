package output

import (
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWriterNoCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")

	w, resolved, err := NewWriter(path, "none")
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}

	testData := "test,data,row\n1,2,3\n"
	if _, err := w.Write([]byte(testData)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if string(content) != testData {
		t.Errorf("File content = %q, want %q", string(content), testData)
	}
}

func TestNewWriterGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")

	w, resolved, err := NewWriter(path, "gzip")
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if resolved != path+".gz" {
		t.Errorf("resolved path = %q, want gz suffix", resolved)
	}

	testData := "test,data,row\n1,2,3\n"
	if _, err := w.Write([]byte(testData)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(resolved)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("output is not gzip: %v", err)
	}
	content, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("decompressing: %v", err)
	}
	if string(content) != testData {
		t.Errorf("decompressed = %q, want %q", string(content), testData)
	}
}

func TestNewWriterZipEntryName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")

	w, resolved, err := NewWriter(path, "zip")
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if resolved != path+".zip" {
		t.Errorf("resolved path = %q", resolved)
	}
	if _, err := w.Write([]byte("[]")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r, err := zip.OpenReader(resolved)
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	defer r.Close()

	if len(r.File) != 1 {
		t.Fatalf("zip entries = %d, want 1", len(r.File))
	}
	if r.File[0].Name != "dataset.json" {
		t.Errorf("entry name = %q, want dataset.json", r.File[0].Name)
	}
}

func TestNewWriterUnsupportedCompression(t *testing.T) {
	if _, _, err := NewWriter("/tmp/x", "rar"); err == nil {
		t.Fatal("expected error for unsupported compression")
	}
}

func TestNewWriterEmptyCompressionIsNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	w, resolved, err := NewWriter(path, "")
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	defer w.Close()
	if resolved != path {
		t.Errorf("resolved path = %q, want unmodified", resolved)
	}
}
