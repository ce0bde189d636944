// Package timeaxis maps (year, month-name) pairs onto a canonical monthly
// index and builds the shared, ordered time axis of a price dataset.
package timeaxis

import (
	"sort"
	"strings"
	"time"

	apperrors "maizemap/internal/errors"
	"maizemap/pkg/contracts/domain"
)

var monthNames = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		monthNames[full] = m
		monthNames[full[:3]] = m
	}
	// "sept" shows up in field survey sheets
	monthNames["sept"] = time.September
}

// ParseMonth maps a calendar month name to 1-12. Matching is case-insensitive
// and accepts full English names and three-letter abbreviations.
func ParseMonth(name string) (time.Month, error) {
	m, ok := monthNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, apperrors.InvalidMonth(name)
	}
	return m, nil
}

// Key returns the canonical time key of a calendar month
func Key(year int, month time.Month) domain.TimeKey {
	return domain.NewTimeKey(year, month)
}

// ParseKey combines ParseMonth and Key
func ParseKey(year int, monthName string) (domain.TimeKey, error) {
	m, err := ParseMonth(monthName)
	if err != nil {
		return 0, err
	}
	return Key(year, m), nil
}

// Axis is the sorted set of distinct time keys present in a dataset.
// It is read-only after construction and safe to share between goroutines.
type Axis struct {
	keys  []domain.TimeKey
	index map[domain.TimeKey]int
}

// Build creates an axis from any collection of keys; duplicates collapse
func Build(keys []domain.TimeKey) *Axis {
	seen := make(map[domain.TimeKey]struct{}, len(keys))
	uniq := make([]domain.TimeKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	index := make(map[domain.TimeKey]int, len(uniq))
	for i, k := range uniq {
		index[k] = i
	}
	return &Axis{keys: uniq, index: index}
}

// FromObservations builds the axis spanned by a set of observations.
// Observations with an absent price still contribute their month.
func FromObservations(obs []domain.Observation) *Axis {
	keys := make([]domain.TimeKey, len(obs))
	for i, o := range obs {
		keys[i] = o.Time
	}
	return Build(keys)
}

// Len returns the number of time points
func (a *Axis) Len() int {
	return len(a.keys)
}

// At returns the key at position i
func (a *Axis) At(i int) domain.TimeKey {
	return a.keys[i]
}

// Index returns the position of a key on the axis
func (a *Axis) Index(k domain.TimeKey) (int, bool) {
	i, ok := a.index[k]
	return i, ok
}

// Keys returns a copy of the ordered keys
func (a *Axis) Keys() []domain.TimeKey {
	out := make([]domain.TimeKey, len(a.keys))
	copy(out, a.keys)
	return out
}

// First returns the earliest key; ok is false for an empty axis
func (a *Axis) First() (domain.TimeKey, bool) {
	if len(a.keys) == 0 {
		return 0, false
	}
	return a.keys[0], true
}

// Last returns the latest key; ok is false for an empty axis
func (a *Axis) Last() (domain.TimeKey, bool) {
	if len(a.keys) == 0 {
		return 0, false
	}
	return a.keys[len(a.keys)-1], true
}

// Contiguous reports whether every month between the first and last key is
// on the axis.
func (a *Axis) Contiguous() bool {
	if len(a.keys) < 2 {
		return true
	}
	return int(a.keys[len(a.keys)-1]-a.keys[0])+1 == len(a.keys)
}
