package server

import (
	"github.com/kestrelgeo/landview/view"
)

// Outbound command types. Each command is a JSON object with a "type"
// discriminator; the browser shell applies it to the ArcGIS view.
const (
	cmdLayersAdd    = "layers_add"
	cmdLayersRemove = "layers_remove"
	cmdLayerVisible = "layer_visible"
	cmdGoTo         = "go_to"
	cmdHighlight    = "highlight"
	cmdClearHl      = "clear_highlight"
	cmdPopup        = "popup"
	cmdLayerList    = "layer_list"
	cmdLayerListOff = "layer_list_destroy"
	cmdChartRender  = "chart_render"
	cmdChartDestroy = "chart_destroy"
	cmdStatus       = "status"
	cmdEngineOff    = "engine_destroy"
)

// Inbound message types from the browser shell.
const (
	msgReady       = "ready"
	msgInitFailed  = "init_failed"
	msgClick       = "click"
	msgSetMode     = "set_mode"
	msgLayerLoaded = "layer_loaded"
	msgLoadJob     = "load_job"
	msgPing        = "ping"
)

// command is one outbound instruction to the browser shell.
type command struct {
	Type string `json:"type"`

	Layers   []layerPayload   `json:"layers,omitempty"`
	LayerIDs []string         `json:"layer_ids,omitempty"`
	LayerID  string           `json:"layer_id,omitempty"`
	Visible  *bool            `json:"visible,omitempty"`
	Bounds   *boundsPayload   `json:"bounds,omitempty"`
	Duration int64            `json:"duration_ms,omitempty"`
	Easing   string           `json:"easing,omitempty"`
	Ring     [][2]float64     `json:"ring,omitempty"`
	Symbol   *view.FillSymbol `json:"symbol,omitempty"`
	Popup    *view.Popup      `json:"popup,omitempty"`
	Chart    *view.ChartSpec  `json:"chart,omitempty"`
	Level    string           `json:"level,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// layerPayload is one layer in a layers_add or layer_list command.
type layerPayload struct {
	ID string `json:"id"`
	view.LayerSpec
}

// boundsPayload is a bounds rectangle on the wire.
type boundsPayload struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// inboundMessage is one message from the browser shell.
type inboundMessage struct {
	Type string `json:"type"`

	// click
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	SRID int     `json:"srid,omitempty"`

	// set_mode
	Mode string `json:"mode,omitempty"`

	// layer_loaded
	LayerID string `json:"layer_id,omitempty"`
	OK      bool   `json:"ok,omitempty"`
	Error   string `json:"error,omitempty"`

	// init_failed
	Reason string `json:"reason,omitempty"`

	// load_job
	JobID string `json:"job_id,omitempty"`
}
