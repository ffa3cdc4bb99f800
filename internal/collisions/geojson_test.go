package collisions

import (
	"math"
	"testing"
)

// Two unit-ish squares side by side; A carries AREA_KM2, B does not.
const boroughsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"BOROUGH": "A", "AREA_KM2": 10},
     "geometry": {"type": "Polygon", "coordinates": [[[-74.0,40.0],[-73.9,40.0],[-73.9,40.1],[-74.0,40.1],[-74.0,40.0]]]}},
    {"type": "Feature",
     "properties": {"BOROUGH": "B", "boro_cd": 205},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-73.9,40.0],[-73.8,40.0],[-73.8,40.1],[-73.9,40.1],[-73.9,40.0]]]]}},
    {"type": "Feature",
     "properties": {"BOROUGH": "Point"},
     "geometry": {"type": "Point", "coordinates": [-73.9, 40.0]}}
  ]
}`

func TestReadAreas(t *testing.T) {
	areas, err := ReadAreas([]byte(boroughsGeoJSON), PropBorough)
	if err != nil {
		t.Fatalf("ReadAreas failed: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("expected 2 polygon areas, got %d", len(areas))
	}

	byName := AreaByName(areas)
	if byName["A"].AreaKm2 != 10 {
		t.Errorf("A area = %f, want 10 from AREA_KM2", byName["A"].AreaKm2)
	}

	// 0.1° x 0.1° at 40°N is roughly 8.5km x 11.1km
	b := byName["B"]
	if b.AreaKm2 < 80 || b.AreaKm2 > 110 {
		t.Errorf("B computed area = %f km², expected ~94", b.AreaKm2)
	}
	if b.Code != "205" {
		t.Errorf("B code = %q, want numeric boro_cd rendered as 205", b.Code)
	}
	if math.Abs(b.Centroid.Lon()-(-73.85)) > 1e-6 || math.Abs(b.Centroid.Lat()-40.05) > 1e-6 {
		t.Errorf("B centroid = %v, want (-73.85, 40.05)", b.Centroid)
	}
}

func TestReadAreasNoPolygons(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[]}`
	if _, err := ReadAreas([]byte(data), PropBorough); err == nil {
		t.Fatal("expected an error for a collection with no polygons")
	}
}

func TestLocate(t *testing.T) {
	areas, err := ReadAreas([]byte(boroughsGeoJSON), PropBorough)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"inside A", 40.05, -73.95, "A"},
		{"inside B", 40.05, -73.85, "B"},
		{"outside", 41.0, -73.95, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Locate(areas, tc.lat, tc.lon); got != tc.want {
				t.Errorf("Locate(%f, %f) = %q, want %q", tc.lat, tc.lon, got, tc.want)
			}
		})
	}
}
