package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"maizemap/internal/operations"
)

// Output file names
const (
	ProfilesFile   = "seasonal_profiles.csv"
	IndicesFile    = "relative_indices.csv"
	SamplesFile    = "point_samples.csv"
	ValidationFile = "cross_validation.csv"
	WorkbookFile   = "price_surface.xlsx"
	SurfacePattern = "surface_%s.asc"
)

// RunInfo describes a run beyond its artifacts
type RunInfo struct {
	ID         string
	Covariates []string // covariate layer names in sample order
	Workbook   bool
}

// RunExporter writes every artifact of a run into one directory
type RunExporter struct {
	dir    string
	csv    *CSVWriter
	logger *slog.Logger
}

// NewRunExporter creates an exporter writing to dir
func NewRunExporter(dir string, logger *slog.Logger) *RunExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunExporter{dir: dir, csv: NewCSVWriter(dir, logger), logger: logger}
}

// Export writes the tables and surfaces present in a and returns the paths
// written. Artifacts of steps that did not run are left out.
func (e *RunExporter) Export(a *operations.Artifacts, info RunInfo) ([]string, error) {
	if a == nil {
		return nil, fmt.Errorf("no artifacts to export")
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	var sheets []Sheet
	table := func(name, sheet string, headers []string, rows [][]string) error {
		path, err := e.csv.WriteSimpleCSV(name, headers, rows)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		sheets = append(sheets, Sheet{Name: sheet, Headers: headers, Rows: rows})
		return nil
	}

	if a.Seasonal != nil {
		h, rows := ProfileTable(a.Seasonal, a.National, a.NationalMarkets)
		if err := table(ProfilesFile, "Profiles", h, rows); err != nil {
			return written, err
		}
	}
	if a.Indices != nil {
		h, rows := IndexTable(a.Indices)
		if err := table(IndicesFile, "Indices", h, rows); err != nil {
			return written, err
		}
	}
	if a.Samples != nil {
		h, rows := SampleTable(a.Samples, info.Covariates)
		if err := table(SamplesFile, "Samples", h, rows); err != nil {
			return written, err
		}
	}
	if a.Validation != nil {
		h, rows := ValidationTable(a.Validation)
		if err := table(ValidationFile, "Validation", h, rows); err != nil {
			return written, err
		}
	}

	if len(a.Surfaces) > 0 {
		h, rows := surfaceSummary(a.Surfaces)
		sheets = append(sheets, Sheet{Name: "Surfaces", Headers: h, Rows: rows})
	}
	for _, s := range a.Surfaces {
		path := filepath.Join(e.dir, fmt.Sprintf(SurfacePattern, s.Method))
		if err := writeGridFile(path, s); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if info.Workbook && len(sheets) > 0 {
		path := filepath.Join(e.dir, WorkbookFile)
		if err := WriteWorkbook(path, sheets); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	e.logger.Info("run exported",
		slog.String("run_id", info.ID),
		slog.String("directory", e.dir),
		slog.Int("files", len(written)))
	return written, nil
}

func writeGridFile(path string, s operations.Surface) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create surface file: %w", err)
	}
	if err := WriteASCIIGrid(f, s.Raster); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s surface: %w", s.Method, err)
	}
	return f.Close()
}

func surfaceSummary(surfaces []operations.Surface) ([]string, [][]string) {
	headers := []string{"method", "samples", "cells", "min", "max", "mean"}
	rows := make([][]string, len(surfaces))
	for i, s := range surfaces {
		rows[i] = []string{
			string(s.Method),
			formatInt(s.Samples),
			formatInt(s.Stats.Count),
			formatFloat(s.Stats.Min),
			formatFloat(s.Stats.Max),
			formatFloat(s.Stats.Mean),
		}
	}
	return headers, rows
}
