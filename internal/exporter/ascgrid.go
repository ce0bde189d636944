package exporter

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"maizemap/internal/grid"
)

// NoDataValue marks undefined and masked cells in written grids
const NoDataValue = -9999

// WriteASCIIGrid writes r as an ESRI ASCII grid, northern row first
func WriteASCIIGrid(w io.Writer, r *grid.Raster) error {
	g := r.Grid()
	ext := g.Extent()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "ncols %d\n", g.Cols())
	fmt.Fprintf(bw, "nrows %d\n", g.Rows())
	fmt.Fprintf(bw, "xllcorner %s\n", strconv.FormatFloat(ext.West, 'f', -1, 64))
	fmt.Fprintf(bw, "yllcorner %s\n", strconv.FormatFloat(ext.South, 'f', -1, 64))
	fmt.Fprintf(bw, "cellsize %s\n", strconv.FormatFloat(g.Resolution(), 'f', -1, 64))
	fmt.Fprintf(bw, "NODATA_value %d\n", NoDataValue)

	buf := make([]byte, 0, 32)
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			v, ok := r.At(row, col)
			if !ok || g.Masked(row, col) {
				buf = strconv.AppendInt(buf[:0], NoDataValue, 10)
			} else {
				buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
			}
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
