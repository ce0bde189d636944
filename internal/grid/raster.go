package grid

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Layer is anything that can be sampled at a point, such as a covariate
// raster.
type Layer interface {
	Name() string
	Sample(lon, lat float64) (float64, bool)
}

// Raster holds one optional value per grid cell
type Raster struct {
	name    string
	grid    *Grid
	values  []float64
	defined []bool
}

// NewRaster returns a raster on g with every cell undefined
func NewRaster(name string, g *Grid) *Raster {
	n := g.rows * g.cols
	return &Raster{
		name:    name,
		grid:    g,
		values:  make([]float64, n),
		defined: make([]bool, n),
	}
}

// Name implements Layer
func (r *Raster) Name() string { return r.name }

// Grid returns the frame of the raster
func (r *Raster) Grid() *Grid { return r.grid }

// At returns the value of a cell and whether it is defined
func (r *Raster) At(row, col int) (float64, bool) {
	i := row*r.grid.cols + col
	return r.values[i], r.defined[i]
}

// Set defines a cell. Distinct cells may be set from different goroutines.
func (r *Raster) Set(row, col int, v float64) {
	i := row*r.grid.cols + col
	r.values[i] = v
	r.defined[i] = true
}

// Sample implements Layer by nearest-cell lookup
func (r *Raster) Sample(lon, lat float64) (float64, bool) {
	row, col, ok := r.grid.Cell(lon, lat)
	if !ok {
		return 0, false
	}
	return r.At(row, col)
}

// Stats summarises the defined cells of a raster
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Stats returns min, max and mean of defined cells. Count is zero for an
// empty raster and the other fields are then meaningless.
func (r *Raster) Stats() Stats {
	var vals []float64
	for i, ok := range r.defined {
		if ok {
			vals = append(vals, r.values[i])
		}
	}
	if len(vals) == 0 {
		return Stats{}
	}
	return Stats{
		Count: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Mean:  stat.Mean(vals, nil),
	}
}
