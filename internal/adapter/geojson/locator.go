// Package geojson resolves coordinates to Norwegian price areas from a GeoJSON
// feature collection of area polygons.
package geojson

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/energy-weather-insights/internal/domain"
)

// areaKeyMarkers identify the property carrying the area name, matched
// case-insensitively as substrings.
var areaKeyMarkers = []string{"ELSPOT", "EL_SPOT", "OMR"}

// areaKeyFallbacks are checked verbatim when no key matches a marker.
var areaKeyFallbacks = []string{"ElSpotOmr", "pricearea", "price_area"}

type area struct {
	code     string
	geometry orb.Geometry
	bound    orb.Bound
}

// Locator implements domain.AreaLocator over price-area polygons.
type Locator struct {
	areas []area
	codes []string
}

// Load reads a feature collection from path.
func Load(path string) (*Locator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price area polygons: %w", err)
	}
	return Parse(data)
}

// Parse builds a locator from GeoJSON bytes. Features without an area name
// or without a polygonal geometry are skipped.
func Parse(data []byte) (*Locator, error) {
	fc, err := orbgeo.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse price area polygons: %w", err)
	}

	l := &Locator{}
	seen := make(map[string]struct{})
	for _, f := range fc.Features {
		code := AreaCode(f.Properties)
		if code == "" || f.Geometry == nil {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}

		l.areas = append(l.areas, area{code: code, geometry: f.Geometry, bound: f.Geometry.Bound()})
		if _, ok := seen[code]; !ok {
			seen[code] = struct{}{}
			l.codes = append(l.codes, code)
		}
	}
	if len(l.areas) == 0 {
		return nil, errors.New("parse price area polygons: no features carry a price area")
	}
	return l, nil
}

// AreaCode discovers the normalized price area name in a feature's properties.
func AreaCode(props orbgeo.Properties) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		upper := strings.ToUpper(k)
		for _, marker := range areaKeyMarkers {
			if strings.Contains(upper, marker) {
				if code := stringValue(props[k]); code != "" {
					return code
				}
			}
		}
	}
	for _, k := range areaKeyFallbacks {
		if code := stringValue(props[k]); code != "" {
			return code
		}
	}
	return ""
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	return domain.NormalizeAreaName(fmt.Sprint(v))
}

// Locate returns the first area whose polygon contains or touches p.
func (l *Locator) Locate(p domain.Point) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	pt := orb.Point{p.Lon, p.Lat}
	for _, a := range l.areas {
		if !a.bound.Contains(pt) {
			continue
		}
		if contains(a.geometry, pt) {
			return a.code, nil
		}
	}
	return "", fmt.Errorf("%w: (%g, %g)", domain.ErrOutsideAreas, p.Lat, p.Lon)
}

// Areas lists the area codes in file order.
func (l *Locator) Areas() []string {
	out := make([]string, len(l.codes))
	copy(out, l.codes)
	return out
}

func contains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	default:
		return false
	}
}
