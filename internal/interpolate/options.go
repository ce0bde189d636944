// Package interpolate fits spatial estimators to point samples of the
// relative price index and evaluates them over a grid.
//
// Three estimators are provided: a thin-plate spline, inverse distance
// weighting and a random forest of regression trees. Fitted estimators are
// immutable and safe for concurrent use.
package interpolate

import (
	"fmt"
	"strings"

	"maizemap/internal/validation"
)

// Method names an estimator
type Method string

const (
	ThinPlateSpline Method = "tps"
	IDW             Method = "idw"
	RandomForest    Method = "rf"
)

// Methods lists every estimator in a stable order
var Methods = []Method{ThinPlateSpline, IDW, RandomForest}

// ParseMethod accepts the short names and a few long spellings
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tps", "thin_plate_spline", "thinplatespline", "spline":
		return ThinPlateSpline, nil
	case "idw", "inverse_distance":
		return IDW, nil
	case "rf", "random_forest", "randomforest", "forest":
		return RandomForest, nil
	}
	return "", fmt.Errorf("unknown interpolation method %q", s)
}

// ParseMethods parses a comma-separated method list, dropping duplicates
func ParseMethods(s string) ([]Method, error) {
	var out []Method
	seen := map[Method]bool{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := ParseMethod(part)
		if err != nil {
			return nil, err
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no interpolation method in %q", s)
	}
	return out, nil
}

// Distance selects the metric used by IDW
type Distance string

const (
	Planar   Distance = "planar"   // euclidean in degrees
	Geodesic Distance = "geodesic" // great-circle kilometres
)

// Options configures estimator fitting
type Options struct {
	Method      Method   `yaml:"method" validate:"required,oneof=tps idw rf"`
	IDWPower    float64  `yaml:"idw_power" validate:"gte=1"`
	Neighbors   int      `yaml:"neighbors" validate:"gte=0"` // IDW, 0 uses every sample
	Distance    Distance `yaml:"distance" validate:"oneof=planar geodesic"`
	Smoothing   float64  `yaml:"smoothing" validate:"gte=0"` // TPS lambda
	ForestTrees int      `yaml:"forest_trees" validate:"gte=1"`
	MinLeaf     int      `yaml:"min_leaf" validate:"gte=1"`
	Seed        int64    `yaml:"seed"`
	Workers     int      `yaml:"workers" validate:"gte=0"` // 0 uses GOMAXPROCS
}

// DefaultOptions returns the defaults for a method
func DefaultOptions(method Method) Options {
	return Options{
		Method:      method,
		IDWPower:    2,
		Distance:    Planar,
		ForestTrees: 500,
		MinLeaf:     5,
		Seed:        1,
	}
}

// WithMethod returns a copy of the options for another method
func (o Options) WithMethod(method Method) Options {
	o.Method = method
	return o
}

// Validate checks option ranges
func (o Options) Validate() error {
	return validation.Struct(o)
}
