// Package geo holds the geographic primitives shared by the map
// orchestration pipeline: points, job bounds, and the Web Mercator to
// WGS84 conversion used to turn map-engine click points into lon/lat.
package geo

import (
	"math"

	"github.com/kestrelgeo/landview/errors"
)

// SRIDWGS84 and SRIDWebMercator are the two spatial reference systems the
// pipeline deals with: data bounds are geographic, map clicks usually
// arrive in Web Mercator.
const (
	SRIDWGS84       = 4326
	SRIDWebMercator = 3857
)

// Earth radius of the spherical Mercator projection, meters.
const mercatorRadius = 6378137.0

// Point is a geographic coordinate (degrees, WGS84).
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// EnginePoint is a raw map-engine point: a coordinate pair tagged with
// the spatial reference it was produced in.
type EnginePoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	SRID int     `json:"srid"`
}

// ToGeographic converts an engine point to WGS84 degrees. Web Mercator
// points are unprojected; WGS84 points pass through unchanged.
func (p EnginePoint) ToGeographic() (Point, error) {
	switch p.SRID {
	case SRIDWGS84, 0:
		// 0 is treated as already-geographic; some engines omit the SRID
		// for lon/lat views.
		return Point{Lon: p.X, Lat: p.Y}, nil
	case SRIDWebMercator:
		lon := p.X / mercatorRadius * 180 / math.Pi
		lat := (2*math.Atan(math.Exp(p.Y/mercatorRadius)) - math.Pi/2) * 180 / math.Pi
		return Point{Lon: lon, Lat: lat}, nil
	default:
		return Point{}, errors.Newf("unsupported spatial reference: %d", p.SRID)
	}
}

// Bounds is a geographic rectangle in WGS84 degrees.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Contains reports whether the point lies within the bounds. All four
// edges are inclusive: a click exactly on the boundary is accepted.
func (b Bounds) Contains(p Point) bool {
	return p.Lon >= b.West && p.Lon <= b.East &&
		p.Lat >= b.South && p.Lat <= b.North
}

// IsZero reports whether the bounds carry no extent at all.
func (b Bounds) IsZero() bool {
	return b.West == 0 && b.South == 0 && b.East == 0 && b.North == 0
}

// Valid reports whether the bounds describe a non-degenerate rectangle
// inside the valid geographic range.
func (b Bounds) Valid() bool {
	return b.West < b.East && b.South < b.North &&
		b.West >= -180 && b.East <= 180 &&
		b.South >= -90 && b.North <= 90
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() Point {
	return Point{Lon: (b.West + b.East) / 2, Lat: (b.South + b.North) / 2}
}

// Ring returns the closed outline of the bounds as a sequence of
// [lon, lat] vertices, clockwise from the southwest corner. This is the
// polygon drawn on the map to highlight a job's data extent.
func (b Bounds) Ring() [][2]float64 {
	return [][2]float64{
		{b.West, b.South},
		{b.West, b.North},
		{b.East, b.North},
		{b.East, b.South},
		{b.West, b.South},
	}
}
