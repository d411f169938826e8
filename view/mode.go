package view

import (
	"sync"

	"github.com/kestrelgeo/landview/logger"
)

// DisplayMode selects which family of layers renders the results.
type DisplayMode string

const (
	ModeVector DisplayMode = "vector"
	ModeRaster DisplayMode = "raster"
)

// Valid reports whether the mode is one of the two known values.
func (m DisplayMode) Valid() bool { return m == ModeVector || m == ModeRaster }

// ModeController toggles the active layer set between vector and raster
// rendering while preserving per-layer visibility across switches.
//
// Vector mode restores each vector layer to its remembered visibility
// and hides every raster layer. Raster mode snapshots vector visibility,
// hides all vector layers, and shows only the first raster layer —
// raster visibility is deliberately not remembered, so re-entering
// raster mode always lands on the disturbance-mask tiles.
type ModeController struct {
	// mu serializes mode switches against layer-set rebinds: set_mode
	// events and job loads arrive on different goroutines.
	mu      sync.Mutex
	set     *LayerSet
	mode    DisplayMode
	applied bool
}

// NewModeController starts in vector mode with no layer set bound.
func NewModeController() *ModeController {
	return &ModeController{mode: ModeVector}
}

// Mode returns the currently selected display mode.
func (c *ModeController) Mode() DisplayMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetLayers binds a freshly built layer set. The selected mode carries
// over and is re-applied to the new layers.
func (c *ModeController) SetLayers(set *LayerSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = set
	c.applied = false
	c.apply(c.mode)
}

// Apply switches the display mode. Re-applying the current mode on the
// same layer set is a no-op, so repeated UI events never clobber the
// saved visibility snapshot.
func (c *ModeController) Apply(mode DisplayMode) {
	if !mode.Valid() {
		logger.Warnw("Ignoring unknown display mode", "mode", mode)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(mode)
}

func (c *ModeController) apply(mode DisplayMode) {
	if c.applied && mode == c.mode {
		return
	}

	prev := c.mode
	c.mode = mode
	if c.set == nil {
		return
	}

	// Snapshot the outgoing family's visibility only on a genuine
	// transition, never when re-binding the current mode to fresh layers.
	snapshot := prev != mode
	switch mode {
	case ModeVector:
		c.applyVector(snapshot)
	case ModeRaster:
		c.applyRaster(snapshot)
	}
	c.applied = true

	logger.Debugw("Display mode applied", "mode", mode)
}

func (c *ModeController) applyVector(snapshot bool) {
	for _, d := range c.set.Vectors() {
		// A layer never snapshotted keeps its current visibility; on a
		// fresh set that is the build default (mask on, years off).
		if d.savedVisible != nil {
			d.Handle.SetVisible(*d.savedVisible)
		}
	}
	// Raster visibility is snapshotted for symmetry but never restored:
	// re-entering raster mode always opens on the mask product.
	for _, d := range c.set.Rasters() {
		if snapshot || d.savedVisible == nil {
			v := d.Handle.Visible()
			d.savedVisible = &v
		}
		d.Handle.SetVisible(false)
	}
}

func (c *ModeController) applyRaster(snapshot bool) {
	for _, d := range c.set.Vectors() {
		if snapshot || d.savedVisible == nil {
			v := d.Handle.Visible()
			d.savedVisible = &v
		}
		d.Handle.SetVisible(false)
	}
	for i, d := range c.set.Rasters() {
		d.Handle.SetVisible(i == 0)
	}
}
