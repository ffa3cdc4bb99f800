package collisions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingColumn is returned when a required column is absent from a header.
var ErrMissingColumn = errors.New("missing required column")

// Column names of the processed collisions table. Alternatives are tried in order.
var (
	colDatetime = []string{"CRASH DATETIME"}
	colDate     = "CRASH DATE"
	colTime     = "CRASH TIME"
	colBorough  = []string{"BOROUGH"}
	colVehicle  = []string{"ORIGINAL VEHICLE", "VEHICLE TYPE CODE 1"}
	colWeather  = []string{"WEATHER", "WEATHER DESCRIPTION"}
	colFactor   = []string{"ORIGINAL FACTOR", "CONTRIBUTING FACTOR VEHICLE 1"}

	colVehicleCategory = []string{"VEHICLE"}
	colFactorCategory  = []string{"FACTOR"}
	colInjured         = []string{"NUMBER OF PERSONS INJURED"}
	colKilled          = []string{"NUMBER OF PERSONS KILLED"}
	colValid           = []string{"VALID"}
	colLat             = []string{"LATITUDE"}
	colLon             = []string{"LONGITUDE"}
	colWind            = []string{"sknt", "SKNT"}
	colPrecip          = []string{"p01i", "P01I"}
	colVis             = []string{"vsby", "VSBY"}

	colWeatherTime = []string{"valid", "DATETIME", "TIME"}
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
}

// ParseTime parses a crash timestamp in any of the layouts seen in the processed data.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// LoadCollisions reads the collisions CSV at path.
func LoadCollisions(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open collisions file: %w", err)
	}
	defer f.Close()

	records, err := ReadCollisions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ReadCollisions parses a collisions table. Cells that fail to parse are treated
// as missing; only a broken file or a missing timestamp column is an error.
func ReadCollisions(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	_, hasDatetime := lookup(idx, colDatetime)
	_, hasDate := idx[colDate]
	if !hasDatetime && !hasDate {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colDatetime[0])
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read collisions: %w", err)
		}

		rec := Record{
			Borough: getField(row, idx, colBorough),
			Vehicle: getField(row, idx, colVehicle),
			Weather: getField(row, idx, colWeather),
			Factor:  getField(row, idx, colFactor),

			VehicleCategory: getField(row, idx, colVehicleCategory),
			FactorCategory:  getField(row, idx, colFactorCategory),

			Injured: getInt(row, idx, colInjured, 0),
			Killed:  getInt(row, idx, colKilled, 0),
			Valid:   getInt(row, idx, colValid, 1),

			Latitude:     getFloat(row, idx, colLat),
			Longitude:    getFloat(row, idx, colLon),
			WindKnots:    getFloat(row, idx, colWind),
			PrecipInches: getFloat(row, idx, colPrecip),
			VisibilityKm: getFloat(row, idx, colVis),
		}

		if hasDatetime {
			rec.RawTime = getField(row, idx, colDatetime)
		} else {
			rec.RawTime = strings.TrimSpace(getField(row, idx, []string{colDate}) + " " + getField(row, idx, []string{colTime}))
		}
		if t, err := ParseTime(rec.RawTime); err == nil {
			rec.Time = t
		}

		// VALID is a 0/1 flag; anything else is not a valid collision
		if rec.Valid != 0 && rec.Valid != 1 {
			rec.Valid = 0
		}

		records = append(records, rec)
	}

	return records, nil
}

// LoadWeather reads the weather samples CSV at path.
func LoadWeather(path string) ([]WeatherSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open weather file: %w", err)
	}
	defer f.Close()

	samples, err := ReadWeather(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// ReadWeather parses a weather table with at least one of the sknt, p01i and vsby columns.
func ReadWeather(r io.Reader) ([]WeatherSample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	_, hasWind := lookup(idx, colWind)
	_, hasPrecip := lookup(idx, colPrecip)
	_, hasVis := lookup(idx, colVis)
	if !hasWind && !hasPrecip && !hasVis {
		return nil, fmt.Errorf("%w: one of sknt, p01i, vsby", ErrMissingColumn)
	}

	var samples []WeatherSample
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read weather: %w", err)
		}

		s := WeatherSample{
			WindKnots:    getFloat(row, idx, colWind),
			PrecipInches: getFloat(row, idx, colPrecip),
			VisibilityKm: getFloat(row, idx, colVis),
		}
		if t, err := ParseTime(getField(row, idx, colWeatherTime)); err == nil {
			s.Time = t
		}
		samples = append(samples, s)
	}

	return samples, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		// Strip a UTF-8 BOM left by spreadsheet exports
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	return idx
}

func lookup(idx map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if i, ok := idx[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func getField(record []string, idx map[string]int, names []string) string {
	if i, ok := lookup(idx, names); ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

func getInt(record []string, idx map[string]int, names []string, def int) int {
	s := getField(record, idx, names)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// pandas writes integer columns with NaNs as floats ("1.0")
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == f {
		return int(f)
	}
	return def
}

func getFloat(record []string, idx map[string]int, names []string) *float64 {
	s := getField(record, idx, names)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != f {
		return nil
	}
	return &f
}
