package view

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/geo"
)

// Chart styling constants. The line color matches the extent highlight
// family so the chart reads as part of the same result.
const (
	chartLineColor   = "#2563eb"
	chartTension     = 0.3
	chartPointRadius = 4
	chartYMin        = -0.1
	chartYMax        = 1.1
)

// ChartSpec describes one NDVI time-series line chart. Values keep nil
// for missing years so the renderer draws a gap-spanning line rather
// than dropping to zero.
type ChartSpec struct {
	Title       string     `json:"title"`
	Labels      []string   `json:"labels"`
	Values      []*float64 `json:"values"`
	SpanGaps    bool       `json:"span_gaps"`
	YMin        float64    `json:"y_min"`
	YMax        float64    `json:"y_max"`
	LineColor   string     `json:"line_color"`
	Tension     float64    `json:"tension"`
	PointRadius int        `json:"point_radius"`
}

// BuildChartSpec converts a time series into its chart. Years become
// string labels; NDVI values are rounded to three decimals, preserving
// nil entries as gaps.
func BuildChartSpec(ts *api.Timeseries) ChartSpec {
	labels := make([]string, len(ts.Years))
	for i, y := range ts.Years {
		labels[i] = strconv.Itoa(y)
	}
	values := make([]*float64, len(ts.NDVI))
	for i, v := range ts.NDVI {
		if v == nil {
			continue
		}
		r := math.Round(*v*1000) / 1000
		values[i] = &r
	}
	return ChartSpec{
		Title:       "NDVI Time Series",
		Labels:      labels,
		Values:      values,
		SpanGaps:    true,
		YMin:        chartYMin,
		YMax:        chartYMax,
		LineColor:   chartLineColor,
		Tension:     chartTension,
		PointRadius: chartPointRadius,
	}
}

// BuildPopup assembles the point-query popup: six-decimal coordinates
// plus the detected disturbance and recovery years, with "none" standing
// in for products that found nothing at the point.
func BuildPopup(point geo.Point, ts *api.Timeseries) Popup {
	return Popup{
		Title:    "NDVI Point Query",
		Location: point,
		Fields: []PopupField{
			{Label: "Longitude", Value: fmt.Sprintf("%.6f", point.Lon)},
			{Label: "Latitude", Value: fmt.Sprintf("%.6f", point.Lat)},
			{Label: "Disturbance year", Value: yearOrNone(ts.DisturbanceYear), Tone: "danger"},
			{Label: "Recovery year", Value: yearOrNone(ts.RecoveryYear), Tone: "success"},
		},
	}
}

func yearOrNone(year *int) string {
	if year == nil {
		return "none"
	}
	return strconv.Itoa(*year)
}
