package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/grid"
)

// ascHeader holds the keys of an ESRI ASCII grid header
type ascHeader struct {
	cols, rows     int
	west, south    float64
	cellSize       float64
	noData         float64
	hasNoData      bool
	centreAnchored bool
}

// ReadCovariate loads an ESRI ASCII grid file, naming the layer after the
// file without its extension.
func ReadCovariate(path string) (*grid.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open covariate: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadASCIIGrid(f, name)
}

// ReadASCIIGrid parses an ESRI ASCII grid. The first data row is the
// northern edge. Cells equal to NODATA_value stay undefined.
func ReadASCIIGrid(in io.Reader, name string) (*grid.Raster, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	h, pending, err := readASCHeader(sc)
	if err != nil {
		return nil, err.With("layer", name)
	}

	west, south := h.west, h.south
	if h.centreAnchored {
		west -= h.cellSize / 2
		south -= h.cellSize / 2
	}
	g, gerr := grid.Regular(west, south, h.cellSize, h.rows, h.cols)
	if gerr != nil {
		return nil, gerr
	}
	r := grid.NewRaster(name, g)

	n := 0
	total := h.rows * h.cols
	next := func() (string, bool) {
		if pending != "" {
			tok := pending
			pending = ""
			return tok, true
		}
		if sc.Scan() {
			return sc.Text(), true
		}
		return "", false
	}
	for n < total {
		tok, ok := next()
		if !ok {
			break
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, apperrors.Validation("covariate cell %d is not a number: %q", n, tok).With("layer", name)
		}
		if !h.hasNoData || v != h.noData {
			r.Set(n/h.cols, n%h.cols, v)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read covariate %s: %w", name, err)
	}
	if n < total {
		return nil, apperrors.Validation("covariate has %d cells, header declares %d", n, total).With("layer", name)
	}
	return r, nil
}

// readASCHeader consumes key/value pairs until the first numeric token,
// which it returns as the first data value.
func readASCHeader(sc *bufio.Scanner) (ascHeader, string, *apperrors.PipelineError) {
	var h ascHeader
	seen := map[string]bool{}
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			if err := checkASCHeader(seen); err != nil {
				return h, "", err
			}
			return h, sc.Text(), nil
		}
		if !sc.Scan() {
			break
		}
		val := sc.Text()
		num, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return h, "", apperrors.Validation("covariate header %s has value %q", key, val)
		}
		switch key {
		case "ncols":
			h.cols = int(num)
		case "nrows":
			h.rows = int(num)
		case "xllcorner":
			h.west = num
		case "xllcenter":
			h.west, h.centreAnchored = num, true
		case "yllcorner":
			h.south = num
		case "yllcenter":
			h.south, h.centreAnchored = num, true
		case "cellsize":
			h.cellSize = num
		case "nodata_value":
			h.noData, h.hasNoData = num, true
		default:
			return h, "", apperrors.Validation("unknown covariate header key %q", key)
		}
		seen[strings.TrimSuffix(strings.TrimSuffix(key, "corner"), "center")] = true
	}
	if err := checkASCHeader(seen); err != nil {
		return h, "", err
	}
	return h, "", nil
}

func checkASCHeader(seen map[string]bool) *apperrors.PipelineError {
	for _, k := range []string{"ncols", "nrows", "xll", "yll", "cellsize"} {
		if !seen[k] {
			return apperrors.Validation("covariate header lacks %s", k)
		}
	}
	return nil
}
