package exporter

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Sheet is one table of a workbook
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// WriteWorkbook saves the sheets to an XLSX file. Numeric text after the
// first column is stored as numbers; the first column is an identifier.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sh.Name, err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sh.Name, err)
		}

		hdr := make([]interface{}, len(sh.Headers))
		for j, h := range sh.Headers {
			hdr[j] = h
		}
		if err := f.SetSheetRow(sh.Name, "A1", &hdr); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sh.Name, err)
		}
		if err := f.SetRowStyle(sh.Name, 1, 1, header); err != nil {
			return fmt.Errorf("failed to style header of %s: %w", sh.Name, err)
		}

		for r, row := range sh.Rows {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				cells[j] = cellValue(j, v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.Name, cell, &cells); err != nil {
				return fmt.Errorf("failed to write row %d of %s: %w", r+2, sh.Name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func cellValue(col int, text string) interface{} {
	if col == 0 {
		return text
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v
	}
	return text
}
