package interpolate

import (
	"math"
	"sort"

	"github.com/golang/geo/s2"

	"maizemap/pkg/contracts/domain"
)

// earthRadiusKm is the mean Earth radius
const earthRadiusKm = 6371.0088

// coincident is the distance below which a query sits on a sample
const coincident = 1e-12

type idwPoint struct {
	lon, lat float64
	ll       s2.LatLng
	value    float64
}

// idw is inverse distance weighting on the sample locations. Covariates are
// carried in the feature vector but do not enter the weights.
type idw struct {
	dims      int
	power     float64
	neighbors int
	metric    Distance
	points    []idwPoint
}

func fitIDW(samples []domain.PointSample, opts Options) *idw {
	e := &idw{
		dims:      2 + len(samples[0].Covariates),
		power:     opts.IDWPower,
		neighbors: opts.Neighbors,
		metric:    opts.Distance,
		points:    make([]idwPoint, len(samples)),
	}
	for i, s := range samples {
		e.points[i] = idwPoint{
			lon:   s.Longitude,
			lat:   s.Latitude,
			ll:    s2.LatLngFromDegrees(s.Latitude, s.Longitude),
			value: s.Value,
		}
	}
	return e
}

func (e *idw) Method() Method { return IDW }
func (e *idw) Dims() int      { return e.dims }

func (e *idw) distance(p idwPoint, lon, lat float64, q s2.LatLng) float64 {
	if e.metric == Geodesic {
		return p.ll.Distance(q).Radians() * earthRadiusKm
	}
	return math.Hypot(p.lon-lon, p.lat-lat)
}

// Predict implements Estimator. A query on a sample returns its value
// exactly.
func (e *idw) Predict(features []float64) float64 {
	lon, lat := features[0], features[1]
	q := s2.LatLngFromDegrees(lat, lon)

	type near struct {
		d float64
		v float64
	}
	all := make([]near, len(e.points))
	for i, p := range e.points {
		d := e.distance(p, lon, lat, q)
		if d < coincident {
			return p.value
		}
		all[i] = near{d: d, v: p.value}
	}

	if e.neighbors > 0 && e.neighbors < len(all) {
		sort.Slice(all, func(i, j int) bool { return all[i].d < all[j].d })
		all = all[:e.neighbors]
	}

	var num, den float64
	for _, n := range all {
		w := math.Pow(n.d, -e.power)
		num += w * n.v
		den += w
	}
	return num / den
}
