package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "maizemap/internal/errors"
	"maizemap/pkg/contracts/domain"
)

// ReadFile reads a price table, choosing the format by extension
func (r *Reader) ReadFile(path string) ([]domain.Observation, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open price table: %w", err)
		}
		defer f.Close()
		return r.readCSV(f, filepath.Base(path))
	case ".xlsx", ".xlsm":
		return r.ReadXLSX(path)
	default:
		return nil, apperrors.Validation("unsupported price table format %q", filepath.Ext(path)).
			With("path", path)
	}
}

// ReadCSV reads a comma separated price table
func (r *Reader) ReadCSV(in io.Reader) ([]domain.Observation, error) {
	return r.readCSV(in, "csv")
}

func (r *Reader) readCSV(in io.Reader, source string) ([]domain.Observation, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.Validation("malformed CSV: %v", err).With("source", source)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return r.parseRows(rows, source)
}

// ReadXLSX reads a price table from a workbook. Without a configured sheet
// the first sheet carrying a recognisable header is used.
func (r *Reader) ReadXLSX(path string) ([]domain.Observation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if r.opts.Sheet != "" {
		sheets = []string{r.opts.Sheet}
	}

	var lastErr error
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if _, _, err := findHeader(rows); err != nil {
			lastErr = err
			continue
		}
		return r.parseRows(rows, filepath.Base(path)+":"+sheet)
	}
	if lastErr == nil {
		lastErr = apperrors.Validation("workbook has no sheets")
	}
	return nil, lastErr
}
