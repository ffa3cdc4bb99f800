package chart

import "encoding/json"

// SchemaURL is the Vega-Lite version the specs target.
const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// Null encodes as JSON null, for channels that must be explicitly disabled
// (legend: null, tooltip: null).
var Null = json.RawMessage("null")

// Spec is the subset of a Vega-Lite view specification the dashboards use.
// Fields marshal straight to the Vega-Lite JSON grammar.
type Spec struct {
	Schema      string      `json:"$schema,omitempty"`
	Name        string      `json:"name,omitempty"`
	Title       *Title      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Width       interface{} `json:"width,omitempty"`
	Height      interface{} `json:"height,omitempty"`
	Data        *Data       `json:"data,omitempty"`
	Mark        *Mark       `json:"mark,omitempty"`
	Encoding    *Encoding   `json:"encoding,omitempty"`
	Projection  *Projection `json:"projection,omitempty"`
	Params      []Param     `json:"params,omitempty"`
	Transform   []Transform `json:"transform,omitempty"`

	Layer   []*Spec `json:"layer,omitempty"`
	HConcat []*Spec `json:"hconcat,omitempty"`
	VConcat []*Spec `json:"vconcat,omitempty"`

	Resolve *Resolve               `json:"resolve,omitempty"`
	Config  map[string]interface{} `json:"config,omitempty"`

	// Usermeta carries dashboard linking metadata; Vega-Lite ignores it.
	Usermeta map[string]interface{} `json:"usermeta,omitempty"`
}

type Title struct {
	Text       interface{} `json:"text"`
	FontSize   float64     `json:"fontSize,omitempty"`
	FontWeight int         `json:"fontWeight,omitempty"`
	Dy         float64     `json:"dy,omitempty"`
}

// Titled builds a title from one or more lines.
func Titled(lines ...string) *Title {
	if len(lines) == 1 {
		return &Title{Text: lines[0]}
	}
	return &Title{Text: lines}
}

type Data struct {
	Values interface{} `json:"values,omitempty"`
	URL    string      `json:"url,omitempty"`
	Name   string      `json:"name,omitempty"`
	Format *Format     `json:"format,omitempty"`
}

type Format struct {
	Type     string `json:"type,omitempty"`
	Property string `json:"property,omitempty"`
}

// Inline wraps rows as inline data. A nil slice still encodes as [] so an
// empty selection renders an empty chart rather than failing.
func Inline(rows []map[string]interface{}) *Data {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return &Data{Values: rows}
}

type Mark struct {
	Type        string      `json:"type"`
	Color       string      `json:"color,omitempty"`
	Fill        string      `json:"fill,omitempty"`
	Stroke      string      `json:"stroke,omitempty"`
	StrokeWidth float64     `json:"strokeWidth,omitempty"`
	StrokeDash  []float64   `json:"strokeDash,omitempty"`
	Opacity     *float64    `json:"opacity,omitempty"`
	Size        float64     `json:"size,omitempty"`
	FontSize    float64     `json:"fontSize,omitempty"`
	Text        string      `json:"text,omitempty"`
	Align       string      `json:"align,omitempty"`
	Angle       float64     `json:"angle,omitempty"`
	Dx          float64     `json:"dx,omitempty"`
	Dy          float64     `json:"dy,omitempty"`
	Clip        *bool       `json:"clip,omitempty"`
	Point       bool        `json:"point,omitempty"`
	Tooltip     interface{} `json:"tooltip,omitempty"`
}

// Encoding maps data fields to visual channels.
type Encoding struct {
	X         *Channel    `json:"x,omitempty"`
	Y         *Channel    `json:"y,omitempty"`
	XOffset   *Channel    `json:"xOffset,omitempty"`
	Color     *Channel    `json:"color,omitempty"`
	Opacity   *Channel    `json:"opacity,omitempty"`
	Size      *Channel    `json:"size,omitempty"`
	Text      *Channel    `json:"text,omitempty"`
	Latitude  *Channel    `json:"latitude,omitempty"`
	Longitude *Channel    `json:"longitude,omitempty"`
	Order     *Channel    `json:"order,omitempty"`
	Tooltip   interface{} `json:"tooltip,omitempty"` // []Channel, *Channel or Null
}

// Channel is a field or value definition of one encoding channel.
type Channel struct {
	Field     string      `json:"field,omitempty"`
	Type      string      `json:"type,omitempty"`
	Aggregate string      `json:"aggregate,omitempty"`
	Title     interface{} `json:"title,omitempty"`
	Format    string      `json:"format,omitempty"`
	Sort      interface{} `json:"sort,omitempty"`
	Scale     *Scale      `json:"scale,omitempty"`
	Axis      *Axis       `json:"axis,omitempty"`
	Legend    interface{} `json:"legend,omitempty"` // *Legend or Null
	Value     interface{} `json:"value,omitempty"`
	Datum     interface{} `json:"datum,omitempty"`

	Condition *Condition `json:"condition,omitempty"`
}

// Condition switches a channel on a selection param or a test expression.
type Condition struct {
	Param string      `json:"param,omitempty"`
	Test  string      `json:"test,omitempty"`
	Empty *bool       `json:"empty,omitempty"`
	Value interface{} `json:"value,omitempty"`

	// Field-based branch: the channel shows the field when the condition
	// holds and the outer value otherwise.
	Field  string      `json:"field,omitempty"`
	Type   string      `json:"type,omitempty"`
	Scale  *Scale      `json:"scale,omitempty"`
	Legend interface{} `json:"legend,omitempty"`
	Title  interface{} `json:"title,omitempty"`
}

type Scale struct {
	Domain interface{} `json:"domain,omitempty"`
	Range  interface{} `json:"range,omitempty"`
	Scheme string      `json:"scheme,omitempty"`
	Type   string      `json:"type,omitempty"`
	Zero   *bool       `json:"zero,omitempty"`
}

type Axis struct {
	Title      interface{} `json:"title,omitempty"`
	LabelAngle *float64    `json:"labelAngle,omitempty"`
	Labels     *bool       `json:"labels,omitempty"`
	Domain     *bool       `json:"domain,omitempty"`
	Ticks      *bool       `json:"ticks,omitempty"`
	Grid       *bool       `json:"grid,omitempty"`
	TickCount  int         `json:"tickCount,omitempty"`
	TickOffset float64     `json:"tickOffset,omitempty"`
	LabelExpr  string      `json:"labelExpr,omitempty"`
}

type Legend struct {
	Title     interface{} `json:"title,omitempty"`
	Values    interface{} `json:"values,omitempty"`
	LabelExpr string      `json:"labelExpr,omitempty"`
}

// Param declares a selection. Value seeds the selection with the current
// server-side state so a re-rendered chart keeps its highlight.
type Param struct {
	Name   string      `json:"name"`
	Select *Select     `json:"select,omitempty"`
	Value  interface{} `json:"value,omitempty"`
}

type Select struct {
	Type      string   `json:"type"`
	Fields    []string `json:"fields,omitempty"`
	Encodings []string `json:"encodings,omitempty"`
	Nearest   bool     `json:"nearest,omitempty"`
	On        string   `json:"on,omitempty"`
	Clear     string   `json:"clear,omitempty"`
}

type Projection struct {
	Type string `json:"type"`
}

// Transform is a Vega-Lite transform object, e.g. {"filter": {"param": "hour"}}.
type Transform map[string]interface{}

type Resolve struct {
	Scale  map[string]string `json:"scale,omitempty"`
	Legend map[string]string `json:"legend,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// Field channel shorthands
func Nominal(field string) *Channel      { return &Channel{Field: field, Type: "nominal"} }
func Ordinal(field string) *Channel      { return &Channel{Field: field, Type: "ordinal"} }
func Quantitative(field string) *Channel { return &Channel{Field: field, Type: "quantitative"} }

// Tip is one tooltip entry.
func Tip(field, typ, title string) Channel {
	return Channel{Field: field, Type: typ, Title: title}
}

// Selected builds an opacity channel bound to a selection param.
func Selected(param string, on, off float64) *Channel {
	return &Channel{Condition: &Condition{Param: param, Value: on}, Value: off}
}
