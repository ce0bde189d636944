package ingest

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/grid"
)

// ReadBoundary loads a country outline from a GeoJSON file
func ReadBoundary(path string) (*grid.Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary: %w", err)
	}
	b, err := DecodeBoundary(data)
	if err != nil {
		if pErr, ok := err.(*apperrors.PipelineError); ok {
			return nil, pErr.With("path", path)
		}
		return nil, err
	}
	return b, nil
}

// DecodeBoundary accepts a FeatureCollection, a single Feature or a bare
// geometry. Every polygon found becomes part of the boundary; other
// geometry types are ignored.
func DecodeBoundary(data []byte) (*grid.Boundary, error) {
	var geoms []orb.Geometry

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		geoms = append(geoms, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(data); err == nil && g.Geometry() != nil {
		geoms = append(geoms, g.Geometry())
	} else {
		return nil, apperrors.Validation("boundary is not GeoJSON")
	}

	var polys [][][]grid.Point
	for _, g := range geoms {
		polys = appendPolygons(polys, g)
	}
	if len(polys) == 0 {
		return nil, apperrors.Validation("boundary contains no polygons")
	}
	return grid.NewBoundary(polys)
}

func appendPolygons(dst [][][]grid.Point, g orb.Geometry) [][][]grid.Point {
	switch v := g.(type) {
	case orb.Polygon:
		dst = append(dst, toRings(v))
	case orb.MultiPolygon:
		for _, p := range v {
			dst = append(dst, toRings(p))
		}
	case orb.Collection:
		for _, c := range v {
			dst = appendPolygons(dst, c)
		}
	}
	return dst
}

// toRings keeps the outer ring first, as orb and GeoJSON order them
func toRings(p orb.Polygon) [][]grid.Point {
	rings := make([][]grid.Point, 0, len(p))
	for _, ring := range p {
		pts := make([]grid.Point, len(ring))
		for i, pt := range ring {
			pts[i] = grid.Point{Lon: pt.Lon(), Lat: pt.Lat()}
		}
		rings = append(rings, pts)
	}
	return rings
}
