// Package convert orchestrates a full conversion run: resolve the resource,
// materialize its records into the local cache, then fan the cached stream
// out to one handler per requested artifact.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fenrix-tec/ioxport/core/cache"
	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/core/handlers"
	"github.com/fenrix-tec/ioxport/core/output"
	"github.com/fenrix-tec/ioxport/core/proj"
	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/core/source"
	"github.com/fenrix-tec/ioxport/internal/logger"
	"github.com/fenrix-tec/ioxport/internal/ui"
	"github.com/google/uuid"
)

// Request is one conversion order. Formats, TargetEPSGs and SourceEPSG
// form a discriminated union on the dataset kind: spatial datasets take
// spatial formats plus at least one EPSG pair, non-spatial datasets take
// tabular formats and no EPSG at all.
type Request struct {
	ResourceID      string
	Formats         []string
	TargetEPSGs     []int
	SourceEPSG      int
	Compression     string
	ContinueOnError bool
}

// ValidationError marks a request rejected before any work started.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Result reports what one run produced: handler name to artifact path,
// plus the cached record count and the run's working directory, which the
// caller is expected to prune once the artifacts are collected.
type Result struct {
	Artifacts map[string]string
	Records   int
	Duration  time.Duration
	WorkDir   string
}

// Engine wires a record source to the handler fan-out.
type Engine struct {
	Source     source.Catalog
	Registry   *proj.Registry
	StorageDir string
	PageSize   int
}

// Run executes one conversion request end to end.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	meta, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := e.validate(req, meta); err != nil {
		return nil, err
	}

	workDir := filepath.Join(e.StorageDir, uuid.NewString())
	outDir := filepath.Join(workDir, "output")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating work dir: %w", err)
	}

	// A failed run leaves nothing behind: the caller never learns the
	// work dir path on error, so it has to go here.
	result, err := e.produce(ctx, req, meta, workDir, outDir)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) produce(ctx context.Context, req Request, meta record.Metadata, workDir, outDir string) (*Result, error) {
	bar := ui.NewProgressBar(fmt.Sprintf("Caching %s", meta.Name))
	c, count, err := cache.Materialize(ctx, e.Source, req.ResourceID, filepath.Join(workDir, "cache.jsonl"), e.PageSize,
		func(written int) { _ = bar.Set(written) })
	_ = bar.Finish()
	if err != nil {
		return nil, err
	}
	logger.Info("Cached %d records for %s", count, meta.Name)

	built, err := handlers.Build(handlers.Options{
		OutDir:          outDir,
		Metadata:        meta,
		Formats:         req.Formats,
		TargetEPSGs:     req.TargetEPSGs,
		SourceEPSG:      req.SourceEPSG,
		Compression:     req.Compression,
		ContinueOnError: req.ContinueOnError,
		Reprojector:     e.Registry,
	})
	if err != nil {
		return nil, err
	}

	artifacts := make(map[string]string, len(built))
	for _, h := range built {
		rows, err := c.Rows()
		if err != nil {
			return nil, err
		}
		path, err := h.ToFile(rows)
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", h.Name(), err)
		}
		artifacts[h.Name()] = path
	}

	return &Result{
		Artifacts: artifacts,
		Records:   count,
		WorkDir:   workDir,
	}, nil
}

// resolve gathers the dataset metadata the run needs: resource info, field
// schema and, for spatial datasets, the sampled geometry type. Resources
// with no queryable datastore or no records at all fail here, before any
// disk work.
func (e *Engine) resolve(ctx context.Context, req Request) (record.Metadata, error) {
	if req.ResourceID == "" {
		return record.Metadata{}, invalidf("resource id is required")
	}

	info, err := e.Source.Resource(ctx, req.ResourceID)
	if err != nil {
		return record.Metadata{}, err
	}
	if !info.DatastoreActive {
		return record.Metadata{}, invalidf("resource %s has no queryable datastore", req.ResourceID)
	}

	fields, err := e.Source.Fields(ctx, req.ResourceID)
	if err != nil {
		return record.Metadata{}, err
	}

	meta := record.Metadata{Name: info.Name, Fields: fields}

	sample, err := e.Source.FetchPage(ctx, req.ResourceID, e.PageSize, 0)
	if err != nil {
		return record.Metadata{}, err
	}
	if len(sample) == 0 {
		return record.Metadata{}, invalidf("resource %s has no records", req.ResourceID)
	}

	if meta.IsSpatial() {
		meta.GeometryType, err = sampleGeometryType(sample)
		if err != nil {
			return record.Metadata{}, fmt.Errorf("resource %s: %w", req.ResourceID, err)
		}
		logger.Debug("Sampled geometry type for %s: %s", meta.Name, meta.GeometryType)
	}

	return meta, nil
}

// sampleGeometryType returns the type of the first non-null geometry.
func sampleGeometryType(records []record.Record) (string, error) {
	for _, rec := range records {
		raw, _ := rec.Get(record.GeometryField)
		g, err := geometry.Parse(raw)
		if err != nil {
			return "", err
		}
		if g != nil {
			return g.Type, nil
		}
	}
	return "", fmt.Errorf("could not determine geometry type: no non-null geometry in the first page")
}

func (e *Engine) validate(req Request, meta record.Metadata) error {
	if len(req.Formats) == 0 {
		return invalidf("at least one output format is required")
	}

	seen := make(map[string]bool, len(req.Formats))
	for _, f := range req.Formats {
		if seen[f] {
			return invalidf("format %q requested twice", f)
		}
		seen[f] = true
	}

	if req.Compression != "" {
		valid := false
		for _, c := range output.Compressions() {
			if c == req.Compression {
				valid = true
				break
			}
		}
		if !valid {
			return invalidf("unsupported compression %q", req.Compression)
		}
	}

	if !meta.IsSpatial() {
		for _, f := range req.Formats {
			if !handlers.IsTabularFormat(f) {
				return invalidf("format %q is not available for non-spatial datasets", f)
			}
		}
		if len(req.TargetEPSGs) > 0 || req.SourceEPSG != 0 {
			return invalidf("EPSG codes apply only to spatial datasets")
		}
		return nil
	}

	for _, f := range req.Formats {
		if !handlers.IsSpatialFormat(f) {
			return invalidf("format %q is not available for spatial datasets", f)
		}
	}
	if req.SourceEPSG <= 0 {
		return invalidf("a source EPSG code is required for spatial datasets")
	}
	if len(req.TargetEPSGs) == 0 {
		return invalidf("at least one target EPSG code is required for spatial datasets")
	}
	for _, epsg := range req.TargetEPSGs {
		if epsg <= 0 {
			return invalidf("invalid target EPSG code %d", epsg)
		}
		if epsg != req.SourceEPSG && !e.Registry.Supports(req.SourceEPSG, epsg) {
			return invalidf("no transform registered from EPSG:%d to EPSG:%d", req.SourceEPSG, epsg)
		}
	}

	if req.Compression != "" && req.Compression != output.None {
		for _, f := range req.Formats {
			if f == handlers.FormatGPKG || f == handlers.FormatSHP {
				logger.Warn("Compression %q does not apply to %s artifacts", req.Compression, f)
			}
		}
	}

	return nil
}
