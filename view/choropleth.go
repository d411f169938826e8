package view

import "fmt"

// The choropleth layers color polygons by an integer year attribute.
// Each year in [RampStartYear, RampEndYear] gets its own class whose fill
// color is linearly interpolated between the ramp endpoints; years
// outside the range (or missing) fall back to a neutral gray.
const (
	RampStartYear = 2010
	RampEndYear   = 2045
)

// Fill alpha and the channel scale applied to derive the darker outline.
const (
	fillAlpha    = 0.6
	outlineScale = 0.7
)

// Color is an opaque RGB color.
type Color struct {
	R, G, B uint8
}

// RGBA is a color with an alpha component in [0, 1].
type RGBA struct {
	R uint8   `json:"r"`
	G uint8   `json:"g"`
	B uint8   `json:"b"`
	A float64 `json:"a"`
}

// Outline is the stroke of a fill symbol.
type Outline struct {
	Color RGBA    `json:"color"`
	Width float64 `json:"width"`
}

// FillSymbol is a polygon fill with an outline.
type FillSymbol struct {
	Color   RGBA    `json:"color"`
	Outline Outline `json:"outline"`
}

// YearClass maps one exact year value to its symbol.
type YearClass struct {
	Value  int        `json:"value"`
	Symbol FillSymbol `json:"symbol"`
	Label  string     `json:"label"`
}

// Renderer describes how a vector layer is drawn. Type "simple" draws
// every feature with Symbol; "unique-value" classes features by Field
// using Classes, falling back to DefaultSymbol.
type Renderer struct {
	Type          string      `json:"type"`
	Symbol        *FillSymbol `json:"symbol,omitempty"`
	Field         string      `json:"field,omitempty"`
	DefaultSymbol *FillSymbol `json:"default_symbol,omitempty"`
	Classes       []YearClass `json:"classes,omitempty"`
}

// YearRamp interpolates colors across a year range.
type YearRamp struct {
	StartYear int
	EndYear   int
	Start     Color
	End       Color
}

// Ramps for the two year products, carried over from the platform's
// established palette: disturbance runs light red to dark red, recovery
// light green to dark green.
var (
	DisturbanceRamp = YearRamp{RampStartYear, RampEndYear, Color{255, 100, 100}, Color{139, 0, 0}}
	RecoveryRamp    = YearRamp{RampStartYear, RampEndYear, Color{144, 238, 144}, Color{0, 100, 0}}
)

// ColorFor returns the interpolated color for a year. Each channel is
// c0 + t*(c1-c0) with t = (year-start)/(end-start), rounded to the
// nearest integer.
func (r YearRamp) ColorFor(year int) Color {
	t := float64(year-r.StartYear) / float64(r.EndYear-r.StartYear)
	return Color{
		R: lerpChannel(r.Start.R, r.End.R, t),
		G: lerpChannel(r.Start.G, r.End.G, t),
		B: lerpChannel(r.Start.B, r.End.B, t),
	}
}

// Classes builds one symbol class per year in the ramp's range: the fill
// at 0.6 alpha, the outline fully opaque at 0.7x the fill channels.
func (r YearRamp) Classes() []YearClass {
	classes := make([]YearClass, 0, r.EndYear-r.StartYear+1)
	for year := r.StartYear; year <= r.EndYear; year++ {
		c := r.ColorFor(year)
		classes = append(classes, YearClass{
			Value: year,
			Symbol: FillSymbol{
				Color: RGBA{R: c.R, G: c.G, B: c.B, A: fillAlpha},
				Outline: Outline{
					Color: RGBA{
						R: scaleChannel(c.R, outlineScale),
						G: scaleChannel(c.G, outlineScale),
						B: scaleChannel(c.B, outlineScale),
						A: 1,
					},
					Width: 1,
				},
			},
			Label: fmt.Sprintf("%d", year),
		})
	}
	return classes
}

// GraySymbol is the fallback for features whose year is missing or
// outside the ramp range.
func GraySymbol() FillSymbol {
	return FillSymbol{
		Color: RGBA{R: 128, G: 128, B: 128, A: 0.5},
		Outline: Outline{
			Color: RGBA{R: 100, G: 100, B: 100, A: 1},
			Width: 1,
		},
	}
}

// maskSymbol is the flat red fill of the disturbance mask layer.
func maskSymbol() FillSymbol {
	return FillSymbol{
		Color: RGBA{R: 220, G: 38, B: 38, A: 0.5},
		Outline: Outline{
			Color: RGBA{R: 185, G: 28, B: 28, A: 1},
			Width: 1,
		},
	}
}

// highlightSymbol is the bounding-box graphic style (thin blue frame
// over a nearly transparent fill).
func highlightSymbol() FillSymbol {
	return FillSymbol{
		Color: RGBA{R: 37, G: 99, B: 235, A: 0.1},
		Outline: Outline{
			Color: RGBA{R: 37, G: 99, B: 235, A: 1},
			Width: 2,
		},
	}
}

func lerpChannel(c0, c1 uint8, t float64) uint8 {
	v := float64(c0) + t*(float64(c1)-float64(c0))
	return uint8(v + 0.5)
}

func scaleChannel(c uint8, s float64) uint8 {
	return uint8(float64(c)*s + 0.5)
}
