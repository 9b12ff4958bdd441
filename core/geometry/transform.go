package geometry

import (
	"fmt"

	"github.com/fenrix-tec/ioxport/core/cache"
	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/internal/logger"
)

// Reprojector is the external CRS collaborator: it transforms a coordinate
// nesting between EPSG codes and returns the transformed nesting.
type Reprojector interface {
	Reproject(coords any, sourceEPSG, targetEPSG int) (any, error)
}

// Transformer is the per-record geometry stage: parse, multi-promote,
// short-circuit degenerates and reproject. Records always run through the
// full normalization pipeline even when source and target EPSG match; only
// the CRS math itself is skipped then, so all outputs share one geometry
// formatting.
type Transformer struct {
	SourceEPSG  int
	TargetEPSG  int
	Reprojector Reprojector

	// ContinueOnError downgrades a malformed record from a fatal stream
	// error to a logged skip. Off unless explicitly requested.
	ContinueOnError bool
}

// Rows wraps a cache cursor so every record passing through it carries a
// transformed, structured geometry in place of the raw payload.
func (t Transformer) Rows(rows cache.Rows) cache.Rows {
	return &transformRows{inner: rows, t: t}
}

// Apply transforms one record in place. One record's malformed geometry is
// a fatal error for the whole stream, never a silent skip.
func (t Transformer) Apply(rec record.Record) error {
	raw, ok := rec.Get(record.GeometryField)
	if !ok {
		return fmt.Errorf("record has no %s field", record.GeometryField)
	}

	g, err := Parse(raw)
	if err != nil {
		return err
	}
	if g == nil {
		// null geometry passes through untransformed
		rec.Set(record.GeometryField, nil)
		return nil
	}

	degenerate := g.Degenerate()
	if err := g.PromoteToMulti(); err != nil {
		return err
	}

	if !degenerate && t.SourceEPSG != t.TargetEPSG {
		if err := t.reproject(g); err != nil {
			return err
		}
	}

	rec.Set(record.GeometryField, g)
	return nil
}

func (t Transformer) reproject(g *Geometry) error {
	if IsCollection(g.Type) {
		for _, member := range g.Geometries {
			if err := t.reproject(member); err != nil {
				return err
			}
		}
		return nil
	}

	coords, err := t.Reprojector.Reproject(g.Coordinates, t.SourceEPSG, t.TargetEPSG)
	if err != nil {
		return fmt.Errorf("error reprojecting %s from EPSG:%d to EPSG:%d: %w",
			g.Type, t.SourceEPSG, t.TargetEPSG, err)
	}
	g.Coordinates = coords
	return nil
}

type transformRows struct {
	inner cache.Rows
	t     Transformer
	err   error
	row   int
}

func (r *transformRows) Next() bool {
	if r.err != nil {
		return false
	}
	for r.inner.Next() {
		r.row++
		err := r.t.Apply(r.inner.Record())
		if err == nil {
			return true
		}
		if r.t.ContinueOnError {
			logger.Warn("Skipping record %d: %v", r.row, err)
			continue
		}
		r.err = fmt.Errorf("record %d: %w", r.row, err)
		return false
	}
	return false
}

func (r *transformRows) Record() record.Record {
	return r.inner.Record()
}

func (r *transformRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.inner.Err()
}

func (r *transformRows) Close() error {
	return r.inner.Close()
}
