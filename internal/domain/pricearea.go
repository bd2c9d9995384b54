package domain

import (
	"fmt"
	"math"
	"strings"
)

// PriceArea is a Norwegian electricity market zone with a representative city.
type PriceArea struct {
	Code string  `json:"code"`
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// PriceAreas are NO1 through NO5 in code order.
var PriceAreas = []PriceArea{
	{Code: "NO1", City: "Oslo", Lat: 59.9139, Lon: 10.7522},
	{Code: "NO2", City: "Kristiansand", Lat: 58.1467, Lon: 7.9956},
	{Code: "NO3", City: "Trondheim", Lat: 63.4305, Lon: 10.3951},
	{Code: "NO4", City: "Tromsø", Lat: 69.6492, Lon: 18.9553},
	{Code: "NO5", City: "Bergen", Lat: 60.3913, Lon: 5.3221},
}

// LookupArea finds a price area by code ("no 2") or city name ("bergen").
func LookupArea(nameOrCode string) (PriceArea, error) {
	code := NormalizeAreaName(nameOrCode)
	for _, a := range PriceAreas {
		if a.Code == code || strings.EqualFold(a.City, strings.TrimSpace(nameOrCode)) {
			return a, nil
		}
	}
	return PriceArea{}, fmt.Errorf("%w: price area or city %q", ErrNotFound, nameOrCode)
}

// Point is a WGS-84 coordinate.
type Point struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Validate rejects coordinates outside the WGS-84 range.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: coordinate (%g, %g) is out of range", ErrInvalidParams, p.Lat, p.Lon)
	}
	return nil
}
