// Package grid lays a regular lon/lat grid over a country boundary and holds
// rasters of values on that grid.
package grid

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	apperrors "maizemap/internal/errors"
)

// Point is a lon/lat pair in degrees
type Point struct {
	Lon float64
	Lat float64
}

// Extent is an axis-aligned lon/lat box
type Extent struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Width returns the east-west size in degrees
func (e Extent) Width() float64 { return e.East - e.West }

// Height returns the north-south size in degrees
func (e Extent) Height() float64 { return e.North - e.South }

// Boundary is the country outline used to mask grid cells. Each polygon is an
// outer ring followed by optional holes. Edges are straight lines in lon/lat,
// as GeoJSON rings are.
type Boundary struct {
	polygons orb.MultiPolygon
	bound    Extent
}

// NewBoundary builds a boundary from polygons of rings. Rings may repeat the
// first vertex at the end, as GeoJSON does.
func NewBoundary(polys [][][]Point) (*Boundary, error) {
	if len(polys) == 0 {
		return nil, apperrors.Validation("boundary has no polygons")
	}

	b := &Boundary{bound: Extent{
		West: math.Inf(1), South: math.Inf(1),
		East: math.Inf(-1), North: math.Inf(-1),
	}}

	for pi, rings := range polys {
		if len(rings) == 0 {
			return nil, apperrors.Validation("boundary polygon %d has no rings", pi)
		}
		poly := make(orb.Polygon, 0, len(rings))
		for ri, ring := range rings {
			pts := openRing(ring)
			if len(pts) < 3 {
				return nil, apperrors.Validation("boundary polygon %d ring %d has %d distinct vertices, need 3", pi, ri, len(pts))
			}
			r := make(orb.Ring, 0, len(pts)+1)
			for _, p := range pts {
				if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
					return nil, apperrors.Validation("boundary vertex (%g, %g) is out of range", p.Lon, p.Lat)
				}
				r = append(r, orb.Point{p.Lon, p.Lat})
				if ri == 0 {
					b.bound.West = math.Min(b.bound.West, p.Lon)
					b.bound.East = math.Max(b.bound.East, p.Lon)
					b.bound.South = math.Min(b.bound.South, p.Lat)
					b.bound.North = math.Max(b.bound.North, p.Lat)
				}
			}
			// closed rings are what orb expects
			r = append(r, r[0])
			poly = append(poly, r)
		}
		b.polygons = append(b.polygons, poly)
	}

	return b, nil
}

// openRing drops a closing vertex equal to the first one
func openRing(ring []Point) []Point {
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		return ring[:n-1]
	}
	return ring
}

// Bound returns the lon/lat bounding box of the outer rings
func (b *Boundary) Bound() Extent {
	return b.bound
}

// Contains reports whether the point lies inside any polygon and outside its
// holes. Holes may wind either way.
func (b *Boundary) Contains(lon, lat float64) bool {
	if lon < b.bound.West || lon > b.bound.East || lat < b.bound.South || lat > b.bound.North {
		return false
	}
	return planar.MultiPolygonContains(b.polygons, orb.Point{lon, lat})
}

// Polygons returns the number of polygons in the boundary
func (b *Boundary) Polygons() int {
	return len(b.polygons)
}
