package view

import (
	"context"
	"time"

	"github.com/kestrelgeo/landview/geo"
)

// LayerKind distinguishes the two renderings of each product.
type LayerKind string

const (
	LayerVector LayerKind = "vector"
	LayerRaster LayerKind = "raster"
)

// LayerSpec describes one map layer to the engine. Vector layers carry a
// GeoJSON URL and a renderer; raster layers carry a tile URL template
// with {level}/{col}/{row} placeholders.
type LayerSpec struct {
	Kind    LayerKind `json:"kind"`
	Product string    `json:"product"`
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Visible bool      `json:"visible"`

	Renderer     *Renderer `json:"renderer,omitempty"`
	PopupTitle   string    `json:"popup_title,omitempty"`
	PopupContent string    `json:"popup_content,omitempty"`
}

// LayerHandle is a live layer attached to the map.
type LayerHandle interface {
	// ID is the engine-assigned identifier of the layer.
	ID() string
	// Spec returns the spec the layer was created from.
	Spec() LayerSpec
	// SetVisible toggles the layer on the map.
	SetVisible(visible bool)
	// Visible reports the current on-map visibility.
	Visible() bool
	// WhenLoaded blocks until the layer's source finished loading, or
	// fails with the load error / context error.
	WhenLoaded(ctx context.Context) error
}

// GoToOptions tunes the fly-to transition.
type GoToOptions struct {
	Duration time.Duration `json:"-"`
	Easing   string        `json:"easing"`
}

// PopupField is one labeled row of a transient popup.
type PopupField struct {
	Label string `json:"label"`
	Value string `json:"value"`
	// Tone hints at emphasis: "", "danger", "success", "muted".
	Tone string `json:"tone,omitempty"`
}

// Popup is a transient popup anchored at a geographic point.
type Popup struct {
	Title    string       `json:"title"`
	Location geo.Point    `json:"location"`
	Fields   []PopupField `json:"fields"`
}

// Engine is the contract this pipeline requires of a map engine. The
// production implementation drives a browser map over the websocket
// bridge; tests substitute a fake. The engine's layer collection is
// mutated only through the LayerSetManager — no other component may add
// or remove layers.
type Engine interface {
	// AddLayers attaches layers in the given order and returns their
	// handles in the same order.
	AddLayers(specs []LayerSpec) ([]LayerHandle, error)
	// RemoveLayers detaches and disposes the given layers.
	RemoveLayers(handles []LayerHandle)
	// GoTo frames the given bounds with a smooth transition.
	GoTo(b geo.Bounds, opts GoToOptions) error
	// SetHighlight draws a one-off outline polygon, replacing any prior
	// highlight graphic.
	SetHighlight(ring [][2]float64, symbol FillSymbol)
	// ClearHighlight removes the highlight graphic.
	ClearHighlight()
	// OpenPopup opens a transient popup, replacing any open one.
	OpenPopup(p Popup)
	// AttachLayerList (re)builds the layer-list UI over the given layers.
	AttachLayerList(handles []LayerHandle)
	// DestroyLayerList tears down the layer-list UI.
	DestroyLayerList()
	// Destroy releases the engine and all attached resources.
	Destroy()
}

// Chart is a live chart instance bound to a canvas. A new chart must
// never be constructed for a canvas before the previous instance is
// destroyed.
type Chart interface {
	Destroy()
}

// ChartFactory constructs chart instances from specs.
type ChartFactory interface {
	New(spec ChartSpec) Chart
}
