package view

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelgeo/landview/geo"
)

func testBounds() geo.Bounds {
	return geo.Bounds{West: 110.0, South: 35.0, East: 111.0, North: 36.0}
}

func readyManager(t *testing.T) (*LayerSetManager, *fakeEngine) {
	t.Helper()
	engine := newFakeEngine()
	gate := NewGate()
	gate.MarkReady()
	return NewLayerSetManager(engine, gate, fakeSource{}), engine
}

func TestReplaceForJobBuildsSixLayers(t *testing.T) {
	m, engine := readyManager(t)

	set, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)
	require.Len(t, set.Descriptors, 6)

	vectors := set.Vectors()
	rasters := set.Rasters()
	require.Len(t, vectors, 3)
	require.Len(t, rasters, 3)

	// Vector group precedes the raster group in build order.
	for i := 0; i < 3; i++ {
		assert.Equal(t, LayerVector, set.Descriptors[i].Kind)
		assert.Equal(t, LayerRaster, set.Descriptors[i+3].Kind)
	}

	// Product order matches within each group.
	order := []string{"disturbance_mask", "disturbance_year", "recovery_year"}
	for i, want := range order {
		assert.Equal(t, want, vectors[i].Product)
		assert.Equal(t, want, rasters[i].Product)
	}

	// Only the mask vector starts visible.
	assert.True(t, vectors[0].Handle.Visible())
	assert.False(t, vectors[1].Handle.Visible())
	assert.False(t, vectors[2].Handle.Visible())
	for _, d := range rasters {
		assert.False(t, d.Handle.Visible())
	}

	assert.Equal(t, 6, engine.attachedCount())
}

func TestReplaceForJobRendererWiring(t *testing.T) {
	m, _ := readyManager(t)

	set, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)

	vectors := set.Vectors()
	mask := vectors[0].Handle.Spec()
	require.NotNil(t, mask.Renderer)
	assert.Equal(t, "simple", mask.Renderer.Type)
	assert.Equal(t, RGBA{R: 220, G: 38, B: 38, A: 0.5}, mask.Renderer.Symbol.Color)

	dist := vectors[1].Handle.Spec()
	require.NotNil(t, dist.Renderer)
	assert.Equal(t, "unique-value", dist.Renderer.Type)
	assert.Equal(t, "year", dist.Renderer.Field)
	assert.Len(t, dist.Renderer.Classes, RampEndYear-RampStartYear+1)
	require.NotNil(t, dist.Renderer.DefaultSymbol)
	assert.Equal(t, uint8(128), dist.Renderer.DefaultSymbol.Color.R)

	raster := set.Rasters()[0].Handle.Spec()
	assert.Contains(t, raster.URL, "{level}/{col}/{row}.png")
	assert.Nil(t, raster.Renderer)
}

func TestReplaceForJobDisposesPreviousSet(t *testing.T) {
	m, engine := readyManager(t)

	setA, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)

	setB, err := m.ReplaceForJob("job-b", testBounds())
	require.NoError(t, err)

	// Exactly job B's six layers remain attached.
	assert.Equal(t, 6, engine.attachedCount())
	for _, d := range setA.Descriptors {
		assert.NotContains(t, engine.handles, d.Handle.ID())
	}
	for _, d := range setB.Descriptors {
		assert.Contains(t, engine.handles, d.Handle.ID())
	}
	assert.Equal(t, 1, engine.listDestroyed)
	assert.Equal(t, setB, m.Current())
}

func TestReplaceForJobSameJobStillRebuilds(t *testing.T) {
	m, engine := readyManager(t)

	setA, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)
	firstID := setA.Descriptors[0].Handle.ID()

	setA2, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)

	assert.NotEqual(t, firstID, setA2.Descriptors[0].Handle.ID())
	assert.Equal(t, 6, engine.attachedCount())
}

func TestReplaceForJobNavigatesAndHighlights(t *testing.T) {
	m, engine := readyManager(t)

	b := testBounds()
	_, err := m.ReplaceForJob("job-a", b)
	require.NoError(t, err)

	require.Len(t, engine.goToCalls, 1)
	assert.Equal(t, b, engine.goToCalls[0])
	require.Len(t, engine.highlights, 1)
	assert.Equal(t, b.Ring(), engine.highlights[0])
}

func TestNavigationRetriesOnceAfterReady(t *testing.T) {
	engine := newFakeEngine()
	gate := NewGate()
	m := NewLayerSetManager(engine, gate, fakeSource{})

	b := testBounds()
	m.NavigateTo(b)

	engine.mu.Lock()
	calls := len(engine.goToCalls)
	engine.mu.Unlock()
	assert.Zero(t, calls)

	gate.MarkReady()

	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.goToCalls) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, b, engine.goToCalls[0])
}

func TestNavigationDroppedOnDegradedMap(t *testing.T) {
	engine := newFakeEngine()
	gate := NewGate()
	gate.Fail(nil)
	m := NewLayerSetManager(engine, gate, fakeSource{})

	m.NavigateTo(testBounds())

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, engine.goToCalls)
	assert.Empty(t, engine.highlights)
}

func TestGoToFailureStillHighlights(t *testing.T) {
	m, engine := readyManager(t)
	engine.goToErr = assertAnError()

	_, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)
	assert.Len(t, engine.highlights, 1)
}

func TestAwaitAllVectorLoadedAttachesLayerList(t *testing.T) {
	m, engine := readyManager(t)

	set, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)

	for _, d := range set.Vectors() {
		d.Handle.(*fakeHandle).finishLoad(nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.AwaitAllVectorLoaded(ctx, set))
	assert.Equal(t, 1, engine.layerListCalls)
}

func TestAwaitAllVectorLoadedReportsFailure(t *testing.T) {
	m, engine := readyManager(t)

	set, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)

	vectors := set.Vectors()
	vectors[0].Handle.(*fakeHandle).finishLoad(nil)
	vectors[1].Handle.(*fakeHandle).finishLoad(assertAnError())
	vectors[2].Handle.(*fakeHandle).finishLoad(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = m.AwaitAllVectorLoaded(ctx, set)
	require.Error(t, err)
	assert.Zero(t, engine.layerListCalls)
}

func TestTeardownRemovesEverything(t *testing.T) {
	m, engine := readyManager(t)

	_, err := m.ReplaceForJob("job-a", testBounds())
	require.NoError(t, err)

	m.Teardown()
	assert.Zero(t, engine.attachedCount())
	assert.Nil(t, m.Current())
}
