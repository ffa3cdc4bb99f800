package collisions

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Property keys used by the processed boundary files.
const (
	PropBorough  = "BOROUGH"
	PropDistrict = "boro_cd"
	PropAreaKm2  = "AREA_KM2"
)

// LoadAreas reads a GeoJSON FeatureCollection of polygons, naming each area by
// the nameKey property.
func LoadAreas(path, nameKey string) ([]Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}

	areas, err := ReadAreas(data, nameKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return areas, nil
}

// ReadAreas parses polygon features. AREA_KM2 is used when present, otherwise the
// geodesic area of the geometry is computed. Features without a name or without a
// polygonal geometry are skipped.
func ReadAreas(data []byte, nameKey string) ([]Area, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	areas := make([]Area, 0, len(fc.Features))
	for _, f := range fc.Features {
		name := propString(f.Properties, nameKey)
		if name == "" || !isPolygonal(f.Geometry) {
			continue
		}

		area := Area{
			Name:     name,
			Geometry: f.Geometry,
		}
		if nameKey != PropDistrict {
			area.Code = propString(f.Properties, PropDistrict)
		} else {
			area.Code = name
		}

		if km2, ok := propFloat(f.Properties, PropAreaKm2); ok && km2 > 0 {
			area.AreaKm2 = km2
		} else {
			area.AreaKm2 = math.Abs(geo.Area(f.Geometry)) / 1e6
		}

		area.Centroid, _ = planar.CentroidArea(f.Geometry)
		areas = append(areas, area)
	}

	if len(areas) == 0 {
		return nil, fmt.Errorf("no polygon features with property %q", nameKey)
	}

	sort.SliceStable(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas, nil
}

// Locate returns the name of the first area containing the point, or "" when
// the point falls outside every area.
func Locate(areas []Area, lat, lon float64) string {
	p := orb.Point{lon, lat}
	for i := range areas {
		if !areas[i].Geometry.Bound().Contains(p) {
			continue
		}
		if contains(areas[i].Geometry, p) {
			return areas[i].Name
		}
	}
	return ""
}

// AreaByName indexes areas by name.
func AreaByName(areas []Area) map[string]Area {
	m := make(map[string]Area, len(areas))
	for _, a := range areas {
		m[a.Name] = a
	}
	return m
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	default:
		return false
	}
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	default:
		return false
	}
}

// propString reads a property that may be encoded as a string or a number
// (boro_cd is numeric in some exports).
func propString(props geojson.Properties, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func propFloat(props geojson.Properties, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
