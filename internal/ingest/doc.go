// Package ingest reads the raw inputs of a price surface run: the monthly
// price table (CSV or XLSX), the country boundary (GeoJSON) and covariate
// rasters (ESRI ASCII grid).
//
// The raw table marks missing coordinates and prices with a single-character
// sentinel. Readers convert it to absent values here; nothing past this
// package sees the sentinel.
package ingest
