package server

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
	"github.com/kestrelgeo/landview/logger"
	"github.com/kestrelgeo/landview/view"
)

// commandSender delivers outbound commands to one browser shell. The
// Client satisfies this; tests substitute a recorder.
type commandSender interface {
	sendCommand(cmd *command)
}

// wsLayer is a layer living in the browser, addressed by a server-minted
// id. Visibility is tracked server-side so the display mode controller
// can read it back without a round trip.
type wsLayer struct {
	id     string
	spec   view.LayerSpec
	engine *wsEngine

	mu      sync.Mutex
	visible bool

	loadOnce sync.Once
	loaded   chan struct{}
	loadErr  error
}

func (l *wsLayer) ID() string           { return l.id }
func (l *wsLayer) Spec() view.LayerSpec { return l.spec }

func (l *wsLayer) SetVisible(visible bool) {
	l.mu.Lock()
	l.visible = visible
	l.mu.Unlock()

	v := visible
	l.engine.send(&command{Type: cmdLayerVisible, LayerID: l.id, Visible: &v})
}

func (l *wsLayer) Visible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible
}

func (l *wsLayer) WhenLoaded(ctx context.Context) error {
	select {
	case <-l.loaded:
		return l.loadErr
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "waiting for layer %s to load", l.spec.Product)
	}
}

func (l *wsLayer) resolveLoad(err error) {
	l.loadOnce.Do(func() {
		l.loadErr = err
		close(l.loaded)
	})
}

// wsEngine implements view.Engine over the websocket bridge: every
// method becomes a command pushed to the browser shell, and layer load
// outcomes flow back as layer_loaded messages.
type wsEngine struct {
	sender commandSender

	mu     sync.Mutex
	layers map[string]*wsLayer
}

func newWSEngine(sender commandSender) *wsEngine {
	return &wsEngine{sender: sender, layers: make(map[string]*wsLayer)}
}

func (e *wsEngine) send(cmd *command) { e.sender.sendCommand(cmd) }

func (e *wsEngine) AddLayers(specs []view.LayerSpec) ([]view.LayerHandle, error) {
	handles := make([]view.LayerHandle, 0, len(specs))
	payloads := make([]layerPayload, 0, len(specs))

	e.mu.Lock()
	for _, spec := range specs {
		l := &wsLayer{
			id:      uuid.New().String(),
			spec:    spec,
			engine:  e,
			visible: spec.Visible,
			loaded:  make(chan struct{}),
		}
		e.layers[l.id] = l
		handles = append(handles, l)
		payloads = append(payloads, layerPayload{ID: l.id, LayerSpec: spec})
	}
	e.mu.Unlock()

	e.send(&command{Type: cmdLayersAdd, Layers: payloads})
	return handles, nil
}

func (e *wsEngine) RemoveLayers(handles []view.LayerHandle) {
	ids := make([]string, 0, len(handles))

	e.mu.Lock()
	for _, h := range handles {
		if l, ok := e.layers[h.ID()]; ok {
			// A removed layer can never load; release any waiter.
			l.resolveLoad(errors.New("layer removed"))
			delete(e.layers, h.ID())
		}
		ids = append(ids, h.ID())
	}
	e.mu.Unlock()

	e.send(&command{Type: cmdLayersRemove, LayerIDs: ids})
}

func (e *wsEngine) GoTo(b geo.Bounds, opts view.GoToOptions) error {
	e.send(&command{
		Type:     cmdGoTo,
		Bounds:   &boundsPayload{West: b.West, South: b.South, East: b.East, North: b.North},
		Duration: opts.Duration.Milliseconds(),
		Easing:   opts.Easing,
	})
	return nil
}

func (e *wsEngine) SetHighlight(ring [][2]float64, symbol view.FillSymbol) {
	e.send(&command{Type: cmdHighlight, Ring: ring, Symbol: &symbol})
}

func (e *wsEngine) ClearHighlight() {
	e.send(&command{Type: cmdClearHl})
}

func (e *wsEngine) OpenPopup(p view.Popup) {
	e.send(&command{Type: cmdPopup, Popup: &p})
}

func (e *wsEngine) AttachLayerList(handles []view.LayerHandle) {
	payloads := make([]layerPayload, 0, len(handles))
	for _, h := range handles {
		payloads = append(payloads, layerPayload{ID: h.ID(), LayerSpec: h.Spec()})
	}
	e.send(&command{Type: cmdLayerList, Layers: payloads})
}

func (e *wsEngine) DestroyLayerList() {
	e.send(&command{Type: cmdLayerListOff})
}

func (e *wsEngine) Destroy() {
	e.mu.Lock()
	for _, l := range e.layers {
		l.resolveLoad(errors.New("engine destroyed"))
	}
	e.layers = make(map[string]*wsLayer)
	e.mu.Unlock()

	e.send(&command{Type: cmdEngineOff})
}

// handleLayerLoaded routes a layer_loaded message to its waiter.
func (e *wsEngine) handleLayerLoaded(layerID string, ok bool, errText string) {
	e.mu.Lock()
	l, found := e.layers[layerID]
	e.mu.Unlock()

	if !found {
		logger.Debugw("layer_loaded for unknown layer", "layer_id", layerID)
		return
	}
	if ok {
		l.resolveLoad(nil)
		return
	}
	if errText == "" {
		errText = "layer failed to load"
	}
	l.resolveLoad(errors.Newf("%s", errText))
}

// wsChart is a chart rendered in the browser shell.
type wsChart struct {
	engine *wsEngine
}

func (c *wsChart) Destroy() {
	c.engine.send(&command{Type: cmdChartDestroy})
}

// wsChartFactory renders charts through the bridge. The browser owns a
// single chart canvas, so render implicitly targets it.
type wsChartFactory struct {
	engine *wsEngine
}

func (f *wsChartFactory) New(spec view.ChartSpec) view.Chart {
	f.engine.send(&command{Type: cmdChartRender, Chart: &spec})
	return &wsChart{engine: f.engine}
}
