package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
)

func assertAnError() error { return errors.New("simulated failure") }

// fakeHandle is an in-memory layer whose load outcome the test controls.
type fakeHandle struct {
	id   string
	spec LayerSpec

	mu      sync.Mutex
	visible bool
	removed bool

	loaded  chan struct{}
	loadErr error
}

func newFakeHandle(id string, spec LayerSpec) *fakeHandle {
	return &fakeHandle{id: id, spec: spec, visible: spec.Visible, loaded: make(chan struct{})}
}

func (h *fakeHandle) ID() string      { return h.id }
func (h *fakeHandle) Spec() LayerSpec { return h.spec }

func (h *fakeHandle) SetVisible(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visible = v
}

func (h *fakeHandle) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}

func (h *fakeHandle) WhenLoaded(ctx context.Context) error {
	select {
	case <-h.loaded:
		return h.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *fakeHandle) finishLoad(err error) {
	h.loadErr = err
	close(h.loaded)
}

// fakeEngine records every call so tests can assert ordering and state.
type fakeEngine struct {
	mu sync.Mutex

	nextID  int
	handles map[string]*fakeHandle

	addErr error

	goToCalls      []geo.Bounds
	goToErr        error
	highlights     [][][2]float64
	popups         []Popup
	layerListCalls int
	listDestroyed  int
	destroyed      bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{handles: make(map[string]*fakeHandle)}
}

func (e *fakeEngine) AddLayers(specs []LayerSpec) ([]LayerHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.addErr != nil {
		return nil, e.addErr
	}
	out := make([]LayerHandle, 0, len(specs))
	for _, spec := range specs {
		e.nextID++
		h := newFakeHandle(fmt.Sprintf("layer-%d", e.nextID), spec)
		e.handles[h.id] = h
		out = append(out, h)
	}
	return out, nil
}

func (e *fakeEngine) RemoveLayers(handles []LayerHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range handles {
		if fh, ok := e.handles[h.ID()]; ok {
			fh.removed = true
			delete(e.handles, h.ID())
		}
	}
}

func (e *fakeEngine) GoTo(b geo.Bounds, opts GoToOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.goToCalls = append(e.goToCalls, b)
	return e.goToErr
}

func (e *fakeEngine) SetHighlight(ring [][2]float64, symbol FillSymbol) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.highlights = append(e.highlights, ring)
}

func (e *fakeEngine) ClearHighlight() {}

func (e *fakeEngine) OpenPopup(p Popup) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.popups = append(e.popups, p)
}

func (e *fakeEngine) AttachLayerList(handles []LayerHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layerListCalls++
}

func (e *fakeEngine) DestroyLayerList() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listDestroyed++
}

func (e *fakeEngine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
}

func (e *fakeEngine) attachedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// fakeSource builds deterministic URLs so tests can tell jobs apart.
type fakeSource struct{}

func (fakeSource) GeoJSONURL(jobID, product string) string {
	return fmt.Sprintf("http://test/geojson/%s/%s", jobID, product)
}

func (fakeSource) TileURLTemplate(jobID, product string) string {
	return fmt.Sprintf("http://test/tiles/%s/%s/{level}/{col}/{row}.png", jobID, product)
}

// recordSink captures status notices and results.
type recordSink struct {
	mu       sync.Mutex
	statuses []string
	levels   []StatusLevel
	results  []*api.Timeseries
	points   []geo.Point
}

func (s *recordSink) ShowStatus(level StatusLevel, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = append(s.levels, level)
	s.statuses = append(s.statuses, message)
}

func (s *recordSink) ShowResult(point geo.Point, ts *api.Timeseries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, point)
	s.results = append(s.results, ts)
}

func (s *recordSink) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *recordSink) lastResult() *api.Timeseries {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil
	}
	return s.results[len(s.results)-1]
}

// fakeFetcher serves canned time series, optionally blocking until
// released so tests can control response ordering.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []api.TimeseriesQuery
	respond func(q api.TimeseriesQuery) (*api.Timeseries, error)
}

func (f *fakeFetcher) Timeseries(ctx context.Context, q api.TimeseriesQuery) (*api.Timeseries, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	fn := f.respond
	f.mu.Unlock()
	if fn == nil {
		return &api.Timeseries{Lon: q.Lon, Lat: q.Lat}, nil
	}
	return fn(q)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeChart and fakeChartFactory track the destroy-before-create rule.
type fakeChart struct {
	factory *fakeChartFactory
	spec    ChartSpec
	alive   bool
}

func (c *fakeChart) Destroy() {
	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()
	c.alive = false
	c.factory.live--
}

type fakeChartFactory struct {
	mu      sync.Mutex
	charts  []*fakeChart
	live    int
	maxLive int
}

func (f *fakeChartFactory) New(spec ChartSpec) Chart {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeChart{factory: f, spec: spec, alive: true}
	f.charts = append(f.charts, c)
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	return c
}
