package derive

import (
	"strconv"
	"strings"
	"unicode"
)

// Unknown is the explicit bucket for values that map to no known category.
const Unknown = "Unknown"

// Vehicle buckets
const (
	VehicleTaxi      = "Taxi"
	VehicleAmbulance = "Ambulance"
	VehicleFireTruck = "Fire truck"
	VehicleHorse     = "Horse"
	VehicleGoKart    = "Go-kart"
)

// Weather buckets
const (
	WeatherRainy        = "Rainy"
	WeatherClear        = "Clear"
	WeatherPartlyCloudy = "Partly cloudy"
	WeatherCloudy       = "Cloudy"
)

// Factor buckets
const (
	FactorDrivingInfraction = "Driving Infraction"
	FactorDriverCondition   = "Driver Condition"
	FactorVehicleDefect     = "Vehicle Defect"
	FactorEnvironmental     = "Environmental"
	FactorPedestrianError   = "Pedestrian Error"
	FactorOther             = "Other"
	FactorUnspecified       = "Unspecified"
)

// Period values
const (
	PeriodBefore = "before"
	PeriodAfter  = "after"
)

// Canonical domain orders. Charts and the pipeline sort by these.
var (
	WeekdayOrder = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	Weekdays     = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	Weekends     = []string{"Sat", "Sun"}

	MonthOrder = []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}

	VehicleOrder = []string{VehicleTaxi, VehicleAmbulance, VehicleFireTruck, VehicleHorse, VehicleGoKart, Unknown}
	WeatherOrder = []string{WeatherRainy, WeatherClear, WeatherPartlyCloudy, WeatherCloudy, Unknown}
	FactorOrder  = []string{
		FactorDrivingInfraction, FactorDriverCondition, FactorVehicleDefect,
		FactorEnvironmental, FactorPedestrianError, FactorOther, FactorUnspecified,
	}
	BoroughOrder = []string{"Bronx", "Brooklyn", "Manhattan", "Queens", "Staten Island", Unknown}
	PeriodOrder  = []string{PeriodBefore, PeriodAfter}
)

// HourDomain returns the 24 hour buckets, "0" through "23".
func HourDomain() []string {
	hours := make([]string, 24)
	for h := range hours {
		hours[h] = strconv.Itoa(h)
	}
	return hours
}

var vehicleEmoji = map[string]string{
	VehicleTaxi:      "🚕",
	VehicleAmbulance: "🚑",
	VehicleFireTruck: "🚒",
	VehicleHorse:     "🐎",
	VehicleGoKart:    "🏎️",
	Unknown:          "❔",
}

var weatherEmoji = map[string]string{
	WeatherRainy:        "🌧️",
	WeatherClear:        "☀️",
	WeatherPartlyCloudy: "⛅",
	WeatherCloudy:       "☁️",
	Unknown:             "❔",
}

// VehicleEmoji returns the glyph drawn above a vehicle bar.
func VehicleEmoji(bucket string) string { return vehicleEmoji[bucket] }

// WeatherEmoji returns the glyph drawn above a weather bar.
func WeatherEmoji(bucket string) string { return weatherEmoji[bucket] }

// VehicleBucket maps a free-text vehicle type (or an already bucketed value)
// to its bucket.
func VehicleBucket(raw string) string {
	s := normalize(raw)
	if s == "" {
		return Unknown
	}
	if bucket, ok := canonical(s, VehicleOrder); ok {
		return bucket
	}

	words := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	switch {
	case hasWord(words, "taxi", "cab", "taxicab"):
		return VehicleTaxi
	case strings.Contains(s, "ambul"):
		return VehicleAmbulance
	case strings.Contains(s, "fire"):
		return VehicleFireTruck
	case strings.Contains(s, "horse"):
		return VehicleHorse
	case strings.Contains(strings.Join(words, ""), "gokart"):
		return VehicleGoKart
	default:
		return Unknown
	}
}

// WeatherBucket maps a weather description (or an already bucketed value) to
// one of the four weather buckets.
func WeatherBucket(raw string) string {
	s := normalize(raw)
	if s == "" {
		return Unknown
	}
	if bucket, ok := canonical(s, WeatherOrder); ok {
		return bucket
	}

	switch {
	case strings.Contains(s, "rain") || strings.Contains(s, "drizzle") ||
		strings.Contains(s, "shower") || strings.Contains(s, "storm"):
		return WeatherRainy
	case strings.Contains(s, "partly") || strings.Contains(s, "scattered") || strings.Contains(s, "few"):
		return WeatherPartlyCloudy
	case strings.Contains(s, "cloud") || strings.Contains(s, "overcast") || strings.Contains(s, "broken"):
		return WeatherCloudy
	case strings.Contains(s, "clear") || strings.Contains(s, "sunny") || strings.Contains(s, "fair"):
		return WeatherClear
	default:
		return Unknown
	}
}

// factorBuckets groups the NYPD contributing-factor vocabulary.
var factorBuckets = map[string]string{
	"aggressive driving/road rage":                FactorDrivingInfraction,
	"backing unsafely":                            FactorDrivingInfraction,
	"driver inattention/distraction":              FactorDrivingInfraction,
	"driver inexperience":                         FactorDrivingInfraction,
	"failure to keep right":                       FactorDrivingInfraction,
	"failure to yield right-of-way":               FactorDrivingInfraction,
	"following too closely":                       FactorDrivingInfraction,
	"passing or lane usage improper":              FactorDrivingInfraction,
	"passing too closely":                         FactorDrivingInfraction,
	"traffic control disregarded":                 FactorDrivingInfraction,
	"turning improperly":                          FactorDrivingInfraction,
	"unsafe lane changing":                        FactorDrivingInfraction,
	"unsafe speed":                                FactorDrivingInfraction,
	"cell phone (hand-held)":                      FactorDrivingInfraction,
	"cell phone (hands-free)":                     FactorDrivingInfraction,
	"texting":                                     FactorDrivingInfraction,
	"using on board navigation device":            FactorDrivingInfraction,
	"other electronic device":                     FactorDrivingInfraction,
	"alcohol involvement":                         FactorDriverCondition,
	"drugs (illegal)":                             FactorDriverCondition,
	"fatigued/drowsy":                             FactorDriverCondition,
	"fell asleep":                                 FactorDriverCondition,
	"illnes":                                      FactorDriverCondition,
	"illness":                                     FactorDriverCondition,
	"lost consciousness":                          FactorDriverCondition,
	"physical disability":                         FactorDriverCondition,
	"prescription medication":                     FactorDriverCondition,
	"accelerator defective":                       FactorVehicleDefect,
	"brakes defective":                            FactorVehicleDefect,
	"headlights defective":                        FactorVehicleDefect,
	"other lighting defects":                      FactorVehicleDefect,
	"steering failure":                            FactorVehicleDefect,
	"tire failure/inadequate":                     FactorVehicleDefect,
	"tow hitch defective":                         FactorVehicleDefect,
	"windshield inadequate":                       FactorVehicleDefect,
	"vehicle vandalism":                           FactorVehicleDefect,
	"glare":                                       FactorEnvironmental,
	"lane marking improper/inadequate":            FactorEnvironmental,
	"obstruction/debris":                          FactorEnvironmental,
	"pavement defective":                          FactorEnvironmental,
	"pavement slippery":                           FactorEnvironmental,
	"shoulders defective/improper":                FactorEnvironmental,
	"traffic control device improper/non-working": FactorEnvironmental,
	"view obstructed/limited":                     FactorEnvironmental,
	"animals action":                              FactorEnvironmental,
	"pedestrian/bicyclist/other pedestrian error/confusion": FactorPedestrianError,
	"reaction to uninvolved vehicle":                        FactorOther,
	"oversized vehicle":                                     FactorOther,
	"outside car distraction":                               FactorOther,
	"passenger distraction":                                 FactorOther,
	"eating or drinking":                                    FactorOther,
	"listening/using headphones":                            FactorOther,
	"unspecified":                                           FactorUnspecified,
}

// FactorBucket maps a free-text contributing factor (or an already bucketed
// value) to its coarse bucket. Empty factors are Unspecified; unlisted ones
// are Other.
func FactorBucket(raw string) string {
	s := normalize(raw)
	if s == "" || s == "1" || s == "80" {
		// the open-data export carries "1" and "80" as placeholder codes
		return FactorUnspecified
	}
	if bucket, ok := canonical(s, FactorOrder); ok {
		return bucket
	}
	if bucket, ok := factorBuckets[s]; ok {
		return bucket
	}
	return FactorOther
}

// Categorize returns category when it already names a bucket of order, and
// otherwise buckets raw with fn.
func Categorize(category string, order []string, fn func(string) string, raw string) string {
	if bucket, ok := canonical(normalize(category), order); ok {
		return bucket
	}
	return fn(raw)
}

var boroughNames = map[string]string{
	"bronx":         "Bronx",
	"the bronx":     "Bronx",
	"brooklyn":      "Brooklyn",
	"manhattan":     "Manhattan",
	"queens":        "Queens",
	"staten island": "Staten Island",
}

// BoroughName normalizes a borough name to the boundary file's spelling.
// Missing or unrecognized boroughs map to Unknown.
func BoroughName(raw string) string {
	if name, ok := boroughNames[normalize(raw)]; ok {
		return name
	}
	return Unknown
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// canonical finds the bucket of order whose normalized name is s.
func canonical(s string, order []string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, bucket := range order {
		if normalize(bucket) == s {
			return bucket, true
		}
	}
	return "", false
}

func hasWord(words []string, want ...string) bool {
	for _, w := range words {
		for _, x := range want {
			if w == x {
				return true
			}
		}
	}
	return false
}
