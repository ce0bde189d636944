package exporter

import (
	"math"
	"strconv"

	"maizemap/pkg/contracts/domain"
)

// missingText marks absent values in exported tables
const missingText = "NA"

// formatFloat keeps full precision; exported values feed further analysis
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return missingText
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatNull(n domain.NullFloat) string {
	if !n.Valid {
		return missingText
	}
	return formatFloat(n.Float64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
