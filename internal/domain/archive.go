package domain

import "context"

// WeatherArchive serves hourly reanalysis weather for a location.
type WeatherArchive interface {
	// FetchYear returns the hourly series for one calendar year, in time order.
	FetchYear(ctx context.Context, p Point, year int) (Series, error)
}

// AreaLocator resolves coordinates to the price area polygon containing them.
type AreaLocator interface {
	// Locate returns the normalized area code, or ErrOutsideAreas.
	Locate(p Point) (string, error)

	// Areas lists the normalized area codes known to the locator.
	Areas() []string
}
