package view

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
	"github.com/kestrelgeo/landview/logger"
)

// flyToDuration and easing reproduce the established map transition.
const (
	flyToDuration = 1500 * time.Millisecond
	flyToEasing   = "ease-in-out"
)

// LayerSource builds the layer source URLs for a job. *api.Client
// satisfies this.
type LayerSource interface {
	GeoJSONURL(jobID, product string) string
	TileURLTemplate(jobID, product string) string
}

// LayerDescriptor pairs a live layer with its visibility memory. The
// display mode controller snapshots a layer's visibility into
// savedVisible before forcing it off, so switching modes back restores
// user intent instead of defaulting to "on".
type LayerDescriptor struct {
	Kind    LayerKind
	Product string
	Handle  LayerHandle

	// savedVisible is nil until a mode switch first snapshots the layer;
	// a nil snapshot leaves the layer's visibility untouched on restore.
	savedVisible *bool
}

// LayerSet is the six layers (3 vector + 3 raster) of one job.
type LayerSet struct {
	JobID       string
	Bounds      geo.Bounds
	Descriptors []*LayerDescriptor

	generation uint64
}

// Vectors returns the vector descriptors in build order.
func (s *LayerSet) Vectors() []*LayerDescriptor { return s.byKind(LayerVector) }

// Rasters returns the raster descriptors in build order.
func (s *LayerSet) Rasters() []*LayerDescriptor { return s.byKind(LayerRaster) }

func (s *LayerSet) byKind(kind LayerKind) []*LayerDescriptor {
	out := make([]*LayerDescriptor, 0, 3)
	for _, d := range s.Descriptors {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// LayerSetManager owns the map's layer collection. All layer creation,
// replacement, and disposal flows through it; at most one job's layer
// set is attached at any time.
type LayerSetManager struct {
	engine Engine
	gate   *Gate
	source LayerSource

	mu         sync.Mutex
	generation uint64
	current    *LayerSet

	// pendingBounds holds a navigation request that arrived before the
	// readiness gate fired; it is retried once, when the gate resolves.
	pendingBounds *geo.Bounds
	retryArmed    bool
}

// NewLayerSetManager wires the manager to an engine, gate, and source.
func NewLayerSetManager(engine Engine, gate *Gate, source LayerSource) *LayerSetManager {
	return &LayerSetManager{engine: engine, gate: gate, source: source}
}

// Current returns the layer set currently on the map, or nil.
func (m *LayerSetManager) Current() *LayerSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ReplaceForJob swaps the map over to a new job's layers: every layer of
// the previous set and its layer-list UI is disposed first, then the new
// set is built and attached — three vector layers, then three raster
// layers, so both groups keep the same relative order under the
// layer-list UI. Only the mask vector layer starts visible.
//
// Safe to call again before a previous replacement settles: each call
// bumps a generation counter and later completion work (load waits,
// layer-list attach, pending navigation) is dropped unless its
// generation is still current. Last call wins.
func (m *LayerSetManager) ReplaceForJob(jobID string, bounds geo.Bounds) (*LayerSet, error) {
	m.mu.Lock()
	m.generation++
	gen := m.generation

	prev := m.current
	m.current = nil
	m.mu.Unlock()

	// Disposal of the old set is issued before any new layer is added,
	// but the UI does not block on its completion.
	if prev != nil {
		m.engine.DestroyLayerList()
		handles := make([]LayerHandle, 0, len(prev.Descriptors))
		for _, d := range prev.Descriptors {
			handles = append(handles, d.Handle)
		}
		m.engine.RemoveLayers(handles)
		logger.Debugw("Disposed previous layer set",
			"job_id", prev.JobID,
			"layers", len(handles),
		)
	}

	specs := m.buildSpecs(jobID)
	handles, err := m.engine.AddLayers(specs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to attach layers for job %s", jobID)
	}
	if len(handles) != len(specs) {
		return nil, errors.Newf("engine returned %d handles for %d layers", len(handles), len(specs))
	}

	set := &LayerSet{JobID: jobID, Bounds: bounds, generation: gen}
	for i, h := range handles {
		set.Descriptors = append(set.Descriptors, &LayerDescriptor{
			Kind:    specs[i].Kind,
			Product: specs[i].Product,
			Handle:  h,
		})
	}

	m.mu.Lock()
	if m.generation != gen {
		// A newer ReplaceForJob won the race while we were attaching.
		// Our layers are stale: dispose them instead of publishing.
		m.mu.Unlock()
		m.engine.RemoveLayers(handles)
		logger.Debugw("Layer set superseded before publish", "job_id", jobID)
		return nil, errors.Wrapf(errors.ErrStaleResult, "layer set for job %s superseded", jobID)
	}
	m.current = set
	m.mu.Unlock()

	logger.Infow("Layer set attached",
		"job_id", jobID,
		"vector_layers", len(set.Vectors()),
		"raster_layers", len(set.Rasters()),
	)

	m.NavigateTo(bounds)
	return set, nil
}

// AwaitAllVectorLoaded resolves once all three vector layers of the
// given set report a successful load, then attaches the layer-list UI.
// A failed layer load rejects (logged by callers, non-fatal); partial
// layer availability must not block the rest of the UI.
func (m *LayerSetManager) AwaitAllVectorLoaded(ctx context.Context, set *LayerSet) error {
	for _, d := range set.Vectors() {
		if err := d.Handle.WhenLoaded(ctx); err != nil {
			return errors.Wrapf(err, "vector layer %s failed to load", d.Product)
		}
	}

	m.mu.Lock()
	stale := m.generation != set.generation
	m.mu.Unlock()
	if stale {
		return errors.Wrapf(errors.ErrStaleResult, "layer set for job %s replaced during load", set.JobID)
	}

	handles := make([]LayerHandle, 0, len(set.Descriptors))
	for _, d := range set.Descriptors {
		handles = append(handles, d.Handle)
	}
	m.engine.AttachLayerList(handles)

	logger.Infow("All vector layers loaded", "job_id", set.JobID)
	return nil
}

// NavigateTo frames the given bounds and draws the extent highlight.
// The fly-to and the highlight are independent: a failed transition
// does not block the highlight. Both require the readiness gate; bounds
// arriving earlier are retried once, when the gate fires.
func (m *LayerSetManager) NavigateTo(bounds geo.Bounds) {
	if !m.gate.IsReady() {
		if m.gate.Err() != nil {
			logger.Warnw("Map degraded, dropping bounds navigation", "error", m.gate.Err())
			return
		}
		m.deferNavigation(bounds)
		return
	}
	m.navigate(bounds)
}

func (m *LayerSetManager) navigate(bounds geo.Bounds) {
	if err := m.engine.GoTo(bounds, GoToOptions{Duration: flyToDuration, Easing: flyToEasing}); err != nil {
		// Transition failures are cosmetic; the highlight still draws.
		logger.Warnw("Fly-to failed", "error", err)
	}
	m.engine.SetHighlight(bounds.Ring(), highlightSymbol())
}

// deferNavigation records the latest requested bounds and arms a single
// waiter that replays them once readiness fires.
func (m *LayerSetManager) deferNavigation(bounds geo.Bounds) {
	m.mu.Lock()
	b := bounds
	m.pendingBounds = &b
	armed := m.retryArmed
	m.retryArmed = true
	m.mu.Unlock()

	if armed {
		return
	}

	go func() {
		// The retry keeps its own generous deadline; an engine that never
		// initializes resolves the gate as failed well before this.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := m.gate.WhenReady(ctx); err != nil {
			logger.Warnw("Bounds navigation abandoned", "error", err)
			return
		}

		m.mu.Lock()
		pending := m.pendingBounds
		m.pendingBounds = nil
		m.retryArmed = false
		m.mu.Unlock()

		if pending != nil {
			m.navigate(*pending)
		}
	}()
}

// Teardown disposes the current layer set and layer-list UI.
func (m *LayerSetManager) Teardown() {
	m.mu.Lock()
	m.generation++
	set := m.current
	m.current = nil
	m.pendingBounds = nil
	m.mu.Unlock()

	if set == nil {
		return
	}
	m.engine.DestroyLayerList()
	handles := make([]LayerHandle, 0, len(set.Descriptors))
	for _, d := range set.Descriptors {
		handles = append(handles, d.Handle)
	}
	m.engine.RemoveLayers(handles)
}

// buildSpecs assembles the six layer specs for a job: vector mask,
// disturbance-year choropleth, recovery-year choropleth, then the three
// raster tile renderings of the same products.
func (m *LayerSetManager) buildSpecs(jobID string) []LayerSpec {
	mask := maskSymbol()
	gray := GraySymbol()

	specs := []LayerSpec{
		{
			Kind:    LayerVector,
			Product: "disturbance_mask",
			Title:   "Disturbance area (vector)",
			URL:     m.source.GeoJSONURL(jobID, "disturbance_mask"),
			Visible: true,
			Renderer: &Renderer{
				Type:   "simple",
				Symbol: &mask,
			},
			PopupTitle:   "Disturbance area",
			PopupContent: "Mining disturbance detected in this area",
		},
		{
			Kind:    LayerVector,
			Product: "disturbance_year",
			Title:   "Disturbance year (vector)",
			URL:     m.source.GeoJSONURL(jobID, "disturbance_year"),
			Visible: false,
			Renderer: &Renderer{
				Type:          "unique-value",
				Field:         "year",
				DefaultSymbol: &gray,
				Classes:       DisturbanceRamp.Classes(),
			},
			PopupTitle:   "Disturbance year",
			PopupContent: "Disturbance occurred in: {year}",
		},
		{
			Kind:    LayerVector,
			Product: "recovery_year",
			Title:   "Recovery year (vector)",
			URL:     m.source.GeoJSONURL(jobID, "recovery_year"),
			Visible: false,
			Renderer: &Renderer{
				Type:          "unique-value",
				Field:         "year",
				DefaultSymbol: &gray,
				Classes:       RecoveryRamp.Classes(),
			},
			PopupTitle:   "Recovery year",
			PopupContent: "Recovery occurred in: {year}",
		},
	}

	rasters := []struct {
		product string
		title   string
	}{
		{"disturbance_mask", "Disturbance area (raster)"},
		{"disturbance_year", "Disturbance year (raster)"},
		{"recovery_year", "Recovery year (raster)"},
	}
	for _, r := range rasters {
		specs = append(specs, LayerSpec{
			Kind:    LayerRaster,
			Product: r.product,
			Title:   r.title,
			URL:     m.source.TileURLTemplate(jobID, r.product),
			Visible: false,
		})
	}
	return specs
}
