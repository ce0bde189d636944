package domain

import "time"

// MonthsPerYear is the seasonal period of monthly price series
const MonthsPerYear = 12

// SeasonalProfile holds one seasonal coefficient per calendar month.
// Coefficients[0] is January.
type SeasonalProfile struct {
	Market       MarketKey              `json:"market"`
	Coefficients [MonthsPerYear]float64 `json:"coefficients"`
}

// For returns the coefficient of a calendar month
func (p SeasonalProfile) For(m time.Month) float64 {
	return p.Coefficients[int(m)-1]
}

// RelativeIndex is a market's time-averaged price relative to the anchor.
// Value is absent when the market never overlaps the anchor.
type RelativeIndex struct {
	Market  MarketKey `json:"market"`
	Value   NullFloat `json:"value"`
	Overlap int       `json:"overlap"` // time points where both prices are present
}

// PointSample is a located relative index fed to the spatial interpolator
type PointSample struct {
	MarketID   string    `json:"market_id"`
	Longitude  float64   `json:"longitude"`
	Latitude   float64   `json:"latitude"`
	Value      float64   `json:"value"`
	Covariates []float64 `json:"covariates,omitempty"`
}

// Features returns the regression features of the sample: lon, lat, covariates...
func (p PointSample) Features() []float64 {
	f := make([]float64, 0, 2+len(p.Covariates))
	f = append(f, p.Longitude, p.Latitude)
	return append(f, p.Covariates...)
}
