package grid

import (
	"math"

	apperrors "maizemap/internal/errors"
)

// snap absorbs floating error when rounding extents to the resolution, so a
// bound already on a grid line is not pushed a cell outward.
const snap = 1e-9

// Grid is a regular lon/lat raster frame. Row 0 is the northern edge and
// column 0 the western edge. A Grid never changes after construction.
type Grid struct {
	rows, cols int
	resolution float64
	extent     Extent
	inside     []bool
	insideN    int
}

// Build covers the boundary's bounding box, rounded outward to whole
// multiples of the resolution, and masks cells whose centre falls outside
// the boundary.
func Build(b *Boundary, resolution float64) (*Grid, error) {
	if b == nil {
		return nil, apperrors.Validation("grid requires a boundary")
	}
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return nil, apperrors.Validation("grid resolution must be positive, got %g", resolution)
	}

	bb := b.Bound()
	ext := Extent{
		West:  math.Floor(bb.West/resolution+snap) * resolution,
		South: math.Floor(bb.South/resolution+snap) * resolution,
		East:  math.Ceil(bb.East/resolution-snap) * resolution,
		North: math.Ceil(bb.North/resolution-snap) * resolution,
	}
	g := newGrid(ext, resolution)

	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			lon, lat := g.Center(r, c)
			if b.Contains(lon, lat) {
				g.inside[r*g.cols+c] = true
				g.insideN++
			}
		}
	}
	return g, nil
}

// Regular returns an unmasked grid anchored at its south-west corner. It
// frames rasters read from disk.
func Regular(west, south, resolution float64, rows, cols int) (*Grid, error) {
	if !(resolution > 0) {
		return nil, apperrors.Validation("grid resolution must be positive, got %g", resolution)
	}
	if rows <= 0 || cols <= 0 {
		return nil, apperrors.Validation("grid needs positive dimensions, got %dx%d", rows, cols)
	}
	g := &Grid{
		rows:       rows,
		cols:       cols,
		resolution: resolution,
		extent: Extent{
			West:  west,
			South: south,
			East:  west + float64(cols)*resolution,
			North: south + float64(rows)*resolution,
		},
		inside:  make([]bool, rows*cols),
		insideN: rows * cols,
	}
	for i := range g.inside {
		g.inside[i] = true
	}
	return g, nil
}

func newGrid(ext Extent, resolution float64) *Grid {
	cols := int(math.Round(ext.Width() / resolution))
	rows := int(math.Round(ext.Height() / resolution))
	// A degenerate boundary still gets one cell.
	if cols < 1 {
		cols = 1
		ext.East = ext.West + resolution
	}
	if rows < 1 {
		rows = 1
		ext.North = ext.South + resolution
	}
	return &Grid{
		rows:       rows,
		cols:       cols,
		resolution: resolution,
		extent:     ext,
		inside:     make([]bool, rows*cols),
	}
}

// Rows returns the number of rows
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns
func (g *Grid) Cols() int { return g.cols }

// Resolution returns the cell size in degrees
func (g *Grid) Resolution() float64 { return g.resolution }

// Extent returns the outer edges of the grid
func (g *Grid) Extent() Extent { return g.extent }

// Center returns the lon/lat of a cell centre
func (g *Grid) Center(r, c int) (lon, lat float64) {
	lon = g.extent.West + (float64(c)+0.5)*g.resolution
	lat = g.extent.North - (float64(r)+0.5)*g.resolution
	return lon, lat
}

// Masked reports whether a cell lies outside the boundary
func (g *Grid) Masked(r, c int) bool {
	return !g.inside[r*g.cols+c]
}

// Cell returns the cell containing a point. Points on the east or south
// outer edge belong to the last column or row.
func (g *Grid) Cell(lon, lat float64) (r, c int, ok bool) {
	if lon < g.extent.West || lon > g.extent.East || lat < g.extent.South || lat > g.extent.North {
		return 0, 0, false
	}
	c = int(math.Floor((lon - g.extent.West) / g.resolution))
	r = int(math.Floor((g.extent.North - lat) / g.resolution))
	if c == g.cols {
		c--
	}
	if r == g.rows {
		r--
	}
	return r, c, true
}

// InsideCount returns the number of unmasked cells
func (g *Grid) InsideCount() int {
	return g.insideN
}
