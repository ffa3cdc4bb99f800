package collisions

import (
	"time"

	"github.com/paulmach/orb"
)

// Record is one vehicle involved in a crash, as read from the collisions table.
// Records are immutable once loaded.
type Record struct {
	// Crash timestamp as found in the file and its parsed form.
	// Time is zero when RawTime could not be parsed.
	RawTime string
	Time    time.Time

	// Borough is empty for crashes reported without one.
	Borough string

	// Free-text columns, bucketed later by the deriver
	Vehicle string
	Weather string
	Factor  string

	// Precomputed buckets from the processed table's VEHICLE and FACTOR
	// columns. Empty when the file only carries free text.
	VehicleCategory string
	FactorCategory  string

	Injured int
	Killed  int

	// Valid gates whether the row counts toward collision totals (0 or 1)
	Valid int

	// Location (nullable - not every report carries coordinates)
	Latitude  *float64
	Longitude *float64

	// Weather readings joined at crash time (nullable)
	WindKnots    *float64 // sknt
	PrecipInches *float64 // p01i
	VisibilityKm *float64 // vsby
}

// HasLocation reports whether the record carries coordinates.
func (r *Record) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Area is one geographic unit (borough or community district).
type Area struct {
	Name     string
	Code     string // boro_cd for community districts, empty for boroughs
	AreaKm2  float64
	Geometry orb.Geometry
	Centroid orb.Point
}

// WeatherSample is one weather observation. Only used as the denominator of
// per-condition rates, never joined 1:1 with collisions.
type WeatherSample struct {
	Time         time.Time
	WindKnots    *float64
	PrecipInches *float64
	VisibilityKm *float64
}

// Reading selects one of the weather readings shared by Record and WeatherSample.
type Reading string

const (
	ReadingWind       Reading = "sknt"
	ReadingPrecip     Reading = "p01i"
	ReadingVisibility Reading = "vsby"
)

// Value returns the named reading of the record, or nil when it is missing.
func (r *Record) Value(reading Reading) *float64 {
	return pick(reading, r.WindKnots, r.PrecipInches, r.VisibilityKm)
}

// Value returns the named reading of the sample, or nil when it is missing.
func (w *WeatherSample) Value(reading Reading) *float64 {
	return pick(reading, w.WindKnots, w.PrecipInches, w.VisibilityKm)
}

func pick(reading Reading, wind, precip, vis *float64) *float64 {
	switch reading {
	case ReadingWind:
		return wind
	case ReadingPrecip:
		return precip
	case ReadingVisibility:
		return vis
	default:
		return nil
	}
}
