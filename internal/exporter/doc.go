// Package exporter writes the results of a price surface run.
//
// CSVWriter: CSV files with a UTF-8 BOM for spreadsheet compatibility,
// resolved against the output directory.
//
// RunExporter: the tables of a run (seasonal profiles with the national
// row, relative indices, point samples and cross-validation scores), one
// ESRI ASCII grid per surface and a workbook combining the tables.
//
// Example usage:
//
//	exp := exporter.NewRunExporter("output", logger)
//	files, err := exp.Export(resp.Artifacts, exporter.RunInfo{ID: resp.ID, Covariates: names})
package exporter
