// Package derive augments loaded collision records with the categorical and
// numeric fields the dashboards group by.
package derive

import (
	"fmt"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
)

// DefaultReferenceDate splits the two comparison windows: summer 2018 is
// "before" and summer 2020 is "after".
var DefaultReferenceDate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Record is a collision record with its derived grouping fields.
type Record struct {
	collisions.Record

	Month     string // "June"
	Weekday   string // "Mon".."Sun"
	Week      int    // ISO week number
	Day       string // "2018-06-04"
	Hour      int    // 0-23
	CrashHour string // "08:00"

	// After is true when the crash happened on or after the reference date
	After  bool
	Period string

	BoroughName   string
	District      string
	VehicleBucket string
	WeatherBucket string
	FactorBucket  string
	VehicleEmoji  string
	WeatherEmoji  string

	// LocationAtHour labels hour-chart peaks, e.g. "Brooklyn at 17:00"
	LocationAtHour string
}

// Stats counts what happened to records during derivation.
type Stats struct {
	Total   int `json:"total"`
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"` // unparseable timestamp
	Unknown int `json:"unknown"` // kept, with at least one Unknown bucket
}

// Deriver computes derived fields. The zero value uses DefaultReferenceDate and
// does not assign districts.
type Deriver struct {
	ReferenceDate time.Time

	// Districts, when set, assigns each located record to the community
	// district containing it.
	Districts []collisions.Area
}

// Derive computes the derived fields of one record. It reports false when the
// record has no usable timestamp; such records are dropped by every chart.
func (d *Deriver) Derive(rec collisions.Record) (Record, bool) {
	if rec.Time.IsZero() {
		return Record{}, false
	}

	ref := d.ReferenceDate
	if ref.IsZero() {
		ref = DefaultReferenceDate
	}

	t := rec.Time
	_, week := t.ISOWeek()

	out := Record{
		Record:    rec,
		Month:     t.Month().String(),
		Weekday:   t.Weekday().String()[:3],
		Week:      week,
		Day:       t.Format("2006-01-02"),
		Hour:      t.Hour(),
		CrashHour: fmt.Sprintf("%02d:00", t.Hour()),
		After:     !t.Before(ref),

		BoroughName:   BoroughName(rec.Borough),
		VehicleBucket: Categorize(rec.VehicleCategory, VehicleOrder, VehicleBucket, rec.Vehicle),
		WeatherBucket: WeatherBucket(rec.Weather),
		FactorBucket:  Categorize(rec.FactorCategory, FactorOrder, FactorBucket, rec.Factor),
		District:      Unknown,
	}

	out.Period = PeriodBefore
	if out.After {
		out.Period = PeriodAfter
	}

	out.VehicleEmoji = VehicleEmoji(out.VehicleBucket)
	out.WeatherEmoji = WeatherEmoji(out.WeatherBucket)
	out.LocationAtHour = fmt.Sprintf("%s at %s", out.BoroughName, out.CrashHour)

	if len(d.Districts) > 0 && rec.HasLocation() {
		if name := collisions.Locate(d.Districts, *rec.Latitude, *rec.Longitude); name != "" {
			out.District = name
		}
	}

	return out, true
}

// DeriveAll derives every record, dropping those without a usable timestamp.
func (d *Deriver) DeriveAll(recs []collisions.Record) ([]Record, Stats) {
	out := make([]Record, 0, len(recs))
	stats := Stats{Total: len(recs)}

	for _, rec := range recs {
		r, ok := d.Derive(rec)
		if !ok {
			stats.Dropped++
			continue
		}
		if r.hasUnknown() {
			stats.Unknown++
		}
		out = append(out, r)
	}

	stats.Kept = len(out)
	return out, stats
}

func (r *Record) hasUnknown() bool {
	return r.BoroughName == Unknown || r.VehicleBucket == Unknown || r.WeatherBucket == Unknown
}
