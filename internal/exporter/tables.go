package exporter

import (
	"time"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/interpolate"
	"maizemap/internal/seasonal"
	"maizemap/pkg/contracts/domain"
)

// NationalRowID labels the national profile row
const NationalRowID = "NATIONAL"

// Profile status values
const (
	StatusDefined      = "defined"
	StatusInsufficient = "insufficient_data"
	StatusFailed       = "failed"
)

func monthHeaders() []string {
	h := make([]string, domain.MonthsPerYear)
	for m := time.January; m <= time.December; m++ {
		h[m-1] = m.String()[:3]
	}
	return h
}

// ProfileTable returns one row per market and a final national row. Markets
// without a profile carry NA coefficients and their status.
func ProfileTable(results []seasonal.Result, national [domain.MonthsPerYear]float64, nationalMarkets int) ([]string, [][]string) {
	headers := append([]string{"market_id", "longitude", "latitude", "status", "markets"}, monthHeaders()...)
	rows := make([][]string, 0, len(results)+1)
	for _, r := range results {
		row := []string{r.Market.MarketID, formatNull(r.Market.Longitude), formatNull(r.Market.Latitude), profileStatus(r), "1"}
		for m := 0; m < domain.MonthsPerYear; m++ {
			if r.Defined() {
				row = append(row, formatFloat(r.Profile.Coefficients[m]))
			} else {
				row = append(row, missingText)
			}
		}
		rows = append(rows, row)
	}

	nrow := []string{NationalRowID, missingText, missingText, StatusDefined, formatInt(nationalMarkets)}
	if nationalMarkets == 0 {
		nrow[3] = StatusInsufficient
	}
	for m := 0; m < domain.MonthsPerYear; m++ {
		if nationalMarkets == 0 {
			nrow = append(nrow, missingText)
		} else {
			nrow = append(nrow, formatFloat(national[m]))
		}
	}
	return headers, append(rows, nrow)
}

func profileStatus(r seasonal.Result) string {
	switch {
	case r.Defined():
		return StatusDefined
	case apperrors.CodeOf(r.Err) == apperrors.CodeInsufficientData:
		return StatusInsufficient
	default:
		return StatusFailed
	}
}

// IndexTable returns one row per market key
func IndexTable(indices []domain.RelativeIndex) ([]string, [][]string) {
	headers := []string{"market_id", "longitude", "latitude", "relative_index", "overlap"}
	rows := make([][]string, len(indices))
	for i, ix := range indices {
		rows[i] = []string{
			ix.Market.MarketID,
			formatNull(ix.Market.Longitude),
			formatNull(ix.Market.Latitude),
			formatNull(ix.Value),
			formatInt(ix.Overlap),
		}
	}
	return headers, rows
}

// SampleTable returns the interpolation inputs. covariates names the
// covariate columns in sample order.
func SampleTable(samples []domain.PointSample, covariates []string) ([]string, [][]string) {
	headers := append([]string{"market_id", "longitude", "latitude", "value"}, covariates...)
	rows := make([][]string, len(samples))
	for i, s := range samples {
		row := []string{s.MarketID, formatFloat(s.Longitude), formatFloat(s.Latitude), formatFloat(s.Value)}
		for j := range covariates {
			if j < len(s.Covariates) {
				row = append(row, formatFloat(s.Covariates[j]))
			} else {
				row = append(row, missingText)
			}
		}
		rows[i] = row
	}
	return headers, rows
}

// ValidationTable returns one row per estimator
func ValidationTable(vals []interpolate.Validation) ([]string, [][]string) {
	headers := []string{"method", "samples", "rmse", "mae"}
	rows := make([][]string, len(vals))
	for i, v := range vals {
		rows[i] = []string{string(v.Method), formatInt(v.Samples), formatFloat(v.RMSE), formatFloat(v.MAE)}
	}
	return headers, rows
}
