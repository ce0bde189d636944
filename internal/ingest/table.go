package ingest

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/timeaxis"
	"maizemap/pkg/contracts/domain"
)

// Column names of the raw price table
const (
	ColMarket    = "market"
	ColRegion    = "region"
	ColLongitude = "longitude"
	ColLatitude  = "latitude"
	ColYear      = "year"
	ColMonth     = "month"
	ColPrice     = "maize_price"
)

// headerAliases maps normalised header text to a column name
var headerAliases = map[string]string{
	"market":      ColMarket,
	"market_id":   ColMarket,
	"market_name": ColMarket,
	"region":      ColRegion,
	"district":    ColRegion,
	"longitude":   ColLongitude,
	"lon":         ColLongitude,
	"long":        ColLongitude,
	"latitude":    ColLatitude,
	"lat":         ColLatitude,
	"year":        ColYear,
	"month":       ColMonth,
	"maize_price": ColPrice,
	"price":       ColPrice,
}

var requiredColumns = []string{ColMarket, ColLongitude, ColLatitude, ColYear, ColMonth, ColPrice}

// headerScanRows bounds the search for the header row
const headerScanRows = 10

// Options configures table parsing
type Options struct {
	// Sentinel marks a missing coordinate or price. Empty cells are absent too.
	Sentinel string
	// Sheet selects the XLSX worksheet; empty picks the first sheet with a header.
	Sheet string
}

// DefaultOptions returns the options matching the raw survey exports
func DefaultOptions() Options {
	return Options{Sentinel: "-"}
}

// Reader parses raw price tables into observations
type Reader struct {
	opts   Options
	logger *slog.Logger
}

// NewReader creates a reader
func NewReader(opts Options, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{opts: opts, logger: logger}
}

// findHeader returns the index of the header row and its column map
func findHeader(rows [][]string) (int, map[string]int, error) {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		cols := make(map[string]int)
		for j, cell := range rows[i] {
			key := strings.ToLower(strings.TrimSpace(cell))
			key = strings.ReplaceAll(key, " ", "_")
			if name, ok := headerAliases[key]; ok {
				if _, dup := cols[name]; !dup {
					cols[name] = j
				}
			}
		}
		missing := missingColumns(cols)
		if len(missing) == 0 {
			return i, cols, nil
		}
		// A row naming some columns is the header with columns missing.
		if len(cols) >= 3 {
			return 0, nil, apperrors.Validation("price table header lacks columns: %s", strings.Join(missing, ", ")).
				With("missing", missing)
		}
	}
	return 0, nil, apperrors.Validation("no header row with %s found", strings.Join(requiredColumns, ", "))
}

func missingColumns(cols map[string]int) []string {
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// parseRows converts raw rows to observations. Line numbers in errors are
// 1-based positions in the source.
func (r *Reader) parseRows(rows [][]string, source string) ([]domain.Observation, error) {
	header, cols, err := findHeader(rows)
	if err != nil {
		return nil, err.(*apperrors.PipelineError).With("source", source)
	}

	out := make([]domain.Observation, 0, len(rows)-header-1)
	blank := 0
	for i := header + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			blank++
			continue
		}
		obs, err := r.parseRow(row, cols)
		if err != nil {
			var pErr *apperrors.PipelineError
			if errors.As(err, &pErr) {
				return nil, pErr.With("source", source).With("line", i+1)
			}
			return nil, err
		}
		out = append(out, obs)
	}

	r.logger.Info("price table read",
		slog.String("source", source),
		slog.Int("observations", len(out)),
		slog.Int("blank_rows", blank))
	return out, nil
}

func (r *Reader) parseRow(row []string, cols map[string]int) (domain.Observation, error) {
	cell := func(name string) string {
		j, ok := cols[name]
		if !ok || j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}

	market := cell(ColMarket)
	if market == "" || market == r.opts.Sentinel {
		return domain.Observation{}, apperrors.Validation("row has no market")
	}

	year, err := parseYear(cell(ColYear))
	if err != nil {
		return domain.Observation{}, err
	}
	key, err := timeaxis.ParseKey(year, cell(ColMonth))
	if err != nil {
		return domain.Observation{}, err
	}

	lon, err := r.parseOptional(cell(ColLongitude), ColLongitude)
	if err != nil {
		return domain.Observation{}, err
	}
	lat, err := r.parseOptional(cell(ColLatitude), ColLatitude)
	if err != nil {
		return domain.Observation{}, err
	}
	if lon.Valid && (lon.Float64 < -180 || lon.Float64 > 180) {
		return domain.Observation{}, apperrors.Validation("longitude %g out of range", lon.Float64)
	}
	if lat.Valid && (lat.Float64 < -90 || lat.Float64 > 90) {
		return domain.Observation{}, apperrors.Validation("latitude %g out of range", lat.Float64)
	}

	price, err := r.parseOptional(cell(ColPrice), ColPrice)
	if err != nil {
		return domain.Observation{}, err
	}
	if price.Valid && price.Float64 < 0 {
		return domain.Observation{}, apperrors.Validation("negative price %g for market %s", price.Float64, market)
	}

	region := cell(ColRegion)
	if region == r.opts.Sentinel {
		region = ""
	}

	return domain.Observation{
		MarketID:  market,
		Region:    region,
		Longitude: lon,
		Latitude:  lat,
		Time:      key,
		Price:     price,
	}, nil
}

// parseOptional converts the sentinel and empty cells to absent values
func (r *Reader) parseOptional(text, column string) (domain.NullFloat, error) {
	if text == "" || text == r.opts.Sentinel {
		return domain.None(), nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return domain.None(), apperrors.Validation("%s %q is not a number", column, text).With("column", column)
	}
	return domain.Some(v), nil
}

func parseYear(text string) (int, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v != math.Trunc(v) || v < 1 || v > 9999 {
		return 0, apperrors.Validation("year %q is not a calendar year", text).With("column", ColYear)
	}
	return int(v), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
