package common

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameters is returned when query parameters fall outside their domain
var ErrInvalidParameters = errors.New("invalid query parameters")

// Coordinate is a WGS84 point picked by the operator
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate only checks that both components are finite numbers.
// Range clamping is left to the UI.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return fmt.Errorf("latitude is not a finite number: %v", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("longitude is not a finite number: %v", c.Longitude)
	}
	return nil
}

// QueryParameters is the immutable bundle passed into one analysis request
type QueryParameters struct {
	Zoom     int      `json:"zoom"`
	Radius   int      `json:"radius"`
	Provider Provider `json:"provider"`
}

// NewQueryParameters parses the provider name and validates the bundle
func NewQueryParameters(zoom, radius int, provider string) (QueryParameters, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return QueryParameters{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	params := QueryParameters{Zoom: zoom, Radius: radius, Provider: p}
	if err := params.Validate(); err != nil {
		return QueryParameters{}, err
	}
	return params, nil
}

// Validate checks zoom, radius and provider against their domains
func (q QueryParameters) Validate() error {
	if q.Zoom < MinZoom || q.Zoom > MaxZoom {
		return fmt.Errorf("%w: zoom %d out of range [%d, %d]", ErrInvalidParameters, q.Zoom, MinZoom, MaxZoom)
	}
	if q.Radius < MinRadius || q.Radius > MaxRadius {
		return fmt.Errorf("%w: radius %d out of range [%d, %d]", ErrInvalidParameters, q.Radius, MinRadius, MaxRadius)
	}
	if _, err := ParseProvider(string(q.Provider)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}
