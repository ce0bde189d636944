package domain

import (
	"fmt"
	"time"
)

// NullFloat is a real number that may be absent. The zero value is absent.
type NullFloat struct {
	Float64 float64 `json:"value"`
	Valid   bool    `json:"valid"`
}

// Some returns a present value
func Some(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// None returns an absent value
func None() NullFloat {
	return NullFloat{}
}

// Get returns the value and whether it is present
func (n NullFloat) Get() (float64, bool) {
	return n.Float64, n.Valid
}

// String renders absent values as "NA"
func (n NullFloat) String() string {
	if !n.Valid {
		return "NA"
	}
	return fmt.Sprintf("%g", n.Float64)
}

// TimeKey is a canonical monthly time index: year*12 + (month-1).
// Consecutive calendar months have consecutive keys.
type TimeKey int

// NewTimeKey builds the key for a calendar month
func NewTimeKey(year int, month time.Month) TimeKey {
	return TimeKey(year*12 + int(month) - 1)
}

// Year returns the calendar year of the key
func (k TimeKey) Year() int {
	return floorDiv(int(k), 12)
}

// Month returns the calendar month of the key
func (k TimeKey) Month() time.Month {
	return time.Month(int(k)-k.Year()*12) + 1
}

// Add returns the key n months later
func (k TimeKey) Add(months int) TimeKey {
	return k + TimeKey(months)
}

// String formats the key as YYYY-MM
func (k TimeKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year(), int(k.Month()))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Observation is one monthly price report for a market
type Observation struct {
	MarketID  string    `json:"market_id"`
	Region    string    `json:"region,omitempty"`
	Longitude NullFloat `json:"longitude"`
	Latitude  NullFloat `json:"latitude"`
	Time      TimeKey   `json:"time"`
	Price     NullFloat `json:"price"`
}

// Key returns the market identity of the observation
func (o Observation) Key() MarketKey {
	return MarketKey{MarketID: o.MarketID, Longitude: o.Longitude, Latitude: o.Latitude}
}

// MarketKey identifies a market by id and location. A market reported at two
// locations yields two keys.
type MarketKey struct {
	MarketID  string    `json:"market_id"`
	Longitude NullFloat `json:"longitude"`
	Latitude  NullFloat `json:"latitude"`
}

// HasLocation reports whether both coordinates are present
func (k MarketKey) HasLocation() bool {
	return k.Longitude.Valid && k.Latitude.Valid
}

// String formats the key for logs
func (k MarketKey) String() string {
	return fmt.Sprintf("%s(%s,%s)", k.MarketID, k.Longitude, k.Latitude)
}
