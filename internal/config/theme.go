package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed theme.yaml
var defaultTheme []byte

// Theme holds the presentation settings shared by every chart.
type Theme struct {
	Primary      string `yaml:"primary"`
	Muted        string `yaml:"muted"`
	Background   string `yaml:"background"`
	Scheme       string `yaml:"scheme"`
	FactorScheme string `yaml:"factor_scheme"`

	Opacity Opacity `yaml:"opacity"`

	Boroughs []NamedColor         `yaml:"boroughs"`
	Vehicles []NamedColor         `yaml:"vehicles"`
	Periods  map[string]PeriodTag `yaml:"periods"`

	Districts    []DistrictLabel `yaml:"districts"`
	TopDistricts int             `yaml:"top_districts"`
}

type Opacity struct {
	Selected   float64 `yaml:"selected"`
	Unselected float64 `yaml:"unselected"`
	Main       float64 `yaml:"main"`
	Secondary  float64 `yaml:"secondary"`
}

type NamedColor struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type PeriodTag struct {
	Label string `yaml:"label"`
	Color string `yaml:"color"`
}

// DistrictLabel names a community district on the static map. Latitude and
// Longitude, when set, replace the district centroid as the label position.
type DistrictLabel struct {
	Code      string   `yaml:"code"`
	Label     string   `yaml:"label"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

// PeriodAll keys the colour used for series covering both periods.
const PeriodAll = "all"

// DefaultTheme parses the embedded theme.
func DefaultTheme() (*Theme, error) {
	var t Theme
	if err := yaml.Unmarshal(defaultTheme, &t); err != nil {
		return nil, fmt.Errorf("parse default theme: %w", err)
	}
	return &t, nil
}

// LoadTheme returns the embedded theme overlaid with the file at path. An empty
// path returns the embedded theme unchanged.
func LoadTheme(path string) (*Theme, error) {
	t, err := DefaultTheme()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse theme yaml: %w", err)
	}
	return t, nil
}

// Domain returns the names of a colour list, in order.
func Domain(colors []NamedColor) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.Name
	}
	return out
}

// Range returns the colours of a colour list, in order.
func Range(colors []NamedColor) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.Color
	}
	return out
}

// PeriodLabel returns the display label of a period, or the key itself.
func (t *Theme) PeriodLabel(key string) string {
	if p, ok := t.Periods[key]; ok && p.Label != "" {
		return p.Label
	}
	return key
}

// PeriodColor returns the colour of a period.
func (t *Theme) PeriodColor(key string) string {
	return t.Periods[key].Color
}

// DistrictLabels indexes district labels by code.
func (t *Theme) DistrictLabels() map[string]DistrictLabel {
	out := make(map[string]DistrictLabel, len(t.Districts))
	for _, d := range t.Districts {
		out[d.Code] = d
	}
	return out
}
