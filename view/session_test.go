package view

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
)

type fakeJobs struct {
	detail *api.JobDetail
	err    error
}

func (f *fakeJobs) Job(ctx context.Context, jobID string) (*api.JobDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

type sessionFixture struct {
	session *Session
	engine  *fakeEngine
	gate    *Gate
	fetcher *fakeFetcher
	jobs    *fakeJobs
	charts  *fakeChartFactory

	mu       sync.Mutex
	statuses []string
	levels   []StatusLevel
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	fx := &sessionFixture{
		engine:  newFakeEngine(),
		gate:    NewGate(),
		fetcher: &fakeFetcher{},
		jobs:    &fakeJobs{},
		charts:  &fakeChartFactory{},
	}
	fx.gate.MarkReady()
	fx.session = NewSession(SessionConfig{
		Engine:       fx.engine,
		Gate:         fx.gate,
		Source:       fakeSource{},
		Fetcher:      fx.fetcher,
		Jobs:         fx.jobs,
		ChartFactory: fx.charts,
		Status: func(level StatusLevel, message string) {
			fx.mu.Lock()
			defer fx.mu.Unlock()
			fx.levels = append(fx.levels, level)
			fx.statuses = append(fx.statuses, message)
		},
	})
	return fx
}

func (fx *sessionFixture) loadResult(t *testing.T, jobID string) {
	t.Helper()
	result := &api.RunResult{Outputs: api.Products, Bounds: testBounds()}
	require.NoError(t, fx.session.LoadResult(context.Background(), jobID, result, 2010))
}

func (fx *sessionFixture) lastLevel() StatusLevel {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	if len(fx.levels) == 0 {
		return ""
	}
	return fx.levels[len(fx.levels)-1]
}

func TestSessionLoadResultWiresEverything(t *testing.T) {
	fx := newSessionFixture(t)
	fx.loadResult(t, "job-a")

	assert.Equal(t, 6, fx.engine.attachedCount())
	assert.Len(t, fx.engine.goToCalls, 1)

	// The click pipeline is armed for the new job.
	err := fx.session.HandleClick(context.Background(), geo.EnginePoint{X: 110.5, Y: 35.5, SRID: geo.SRIDWGS84})
	require.NoError(t, err)
	assert.Equal(t, 1, fx.fetcher.callCount())
	assert.Equal(t, "job-a", fx.fetcher.calls[0].JobID)
}

func TestSessionClickTransformsMercator(t *testing.T) {
	fx := newSessionFixture(t)
	fx.loadResult(t, "job-a")

	// Spherical Mercator projection of (110.5, 35.2), R = 6378137 m.
	const r = 6378137.0
	x := 110.5 * math.Pi / 180 * r
	y := r * math.Log(math.Tan(math.Pi/4+35.2*math.Pi/360))

	err := fx.session.HandleClick(context.Background(), geo.EnginePoint{
		X:    x,
		Y:    y,
		SRID: geo.SRIDWebMercator,
	})
	require.NoError(t, err)
	require.Equal(t, 1, fx.fetcher.callCount())
	assert.InDelta(t, 110.5, fx.fetcher.calls[0].Lon, 1e-9)
	assert.InDelta(t, 35.2, fx.fetcher.calls[0].Lat, 1e-9)
}

func TestSessionClickOnDegradedMap(t *testing.T) {
	fx := newSessionFixture(t)
	fx.gate.Reset()
	fx.gate.Fail(errors.New("engine crashed"))

	err := fx.session.HandleClick(context.Background(), geo.EnginePoint{X: 110.5, Y: 35.5, SRID: geo.SRIDWGS84})
	require.Error(t, err)
	assert.True(t, errors.IsMapUnavailableError(err))
	assert.Zero(t, fx.fetcher.callCount())
	assert.Equal(t, StatusWarning, fx.lastLevel())
}

func TestSessionChartReplacesPrevious(t *testing.T) {
	fx := newSessionFixture(t)
	fx.loadResult(t, "job-a")

	click := func() {
		err := fx.session.HandleClick(context.Background(), geo.EnginePoint{X: 110.5, Y: 35.5, SRID: geo.SRIDWGS84})
		require.NoError(t, err)
	}
	click()
	click()
	click()

	fx.charts.mu.Lock()
	defer fx.charts.mu.Unlock()
	assert.Len(t, fx.charts.charts, 3)
	// The previous chart is always destroyed before a new one exists.
	assert.Equal(t, 1, fx.charts.maxLive)
	assert.Equal(t, 1, fx.charts.live)

	// Each click also opened a popup.
	assert.Len(t, fx.engine.popups, 3)
}

func TestSessionSurfacesCRSWarning(t *testing.T) {
	fx := newSessionFixture(t)
	result := &api.RunResult{
		Outputs: api.Products,
		Bounds:  testBounds(),
		CRS:     api.CRSInfo{EPSG: 32649, Warning: "results reprojected from EPSG:32649"},
	}
	require.NoError(t, fx.session.LoadResult(context.Background(), "job-a", result, 2010))

	fx.mu.Lock()
	defer fx.mu.Unlock()
	require.NotEmpty(t, fx.statuses)
	assert.Contains(t, fx.statuses[len(fx.statuses)-1], "EPSG:32649")
}

func TestSessionLoadJobResumesCompleted(t *testing.T) {
	fx := newSessionFixture(t)
	b := testBounds()
	fx.jobs.detail = &api.JobDetail{
		JobID:     "job-old",
		Status:    api.JobStatusCompleted,
		StartYear: 2012,
		Bounds:    &b,
	}

	require.NoError(t, fx.session.LoadJob(context.Background(), "job-old"))
	assert.Equal(t, 6, fx.engine.attachedCount())

	err := fx.session.HandleClick(context.Background(), geo.EnginePoint{X: 110.5, Y: 35.5, SRID: geo.SRIDWGS84})
	require.NoError(t, err)
	assert.Equal(t, 2012, fx.fetcher.calls[0].StartYear)
}

func TestSessionLoadJobRejectsIncomplete(t *testing.T) {
	fx := newSessionFixture(t)
	fx.jobs.detail = &api.JobDetail{JobID: "job-old", Status: api.JobStatusRunning}

	err := fx.session.LoadJob(context.Background(), "job-old")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Zero(t, fx.engine.attachedCount())
}

func TestSessionVectorLoadFailureIsNonFatal(t *testing.T) {
	fx := newSessionFixture(t)
	fx.loadResult(t, "job-a")

	set := fx.session.Layers().Current()
	require.NotNil(t, set)
	vectors := set.Vectors()
	vectors[0].Handle.(*fakeHandle).finishLoad(nil)
	vectors[1].Handle.(*fakeHandle).finishLoad(assertAnError())
	vectors[2].Handle.(*fakeHandle).finishLoad(nil)

	require.Eventually(t, func() bool {
		return fx.lastLevel() == StatusWarning
	}, 2*time.Second, 10*time.Millisecond)

	// The failed layer does not unwind the rest of the result.
	assert.Equal(t, 6, fx.engine.attachedCount())
}

func TestSessionTeardown(t *testing.T) {
	fx := newSessionFixture(t)
	fx.loadResult(t, "job-a")

	err := fx.session.HandleClick(context.Background(), geo.EnginePoint{X: 110.5, Y: 35.5, SRID: geo.SRIDWGS84})
	require.NoError(t, err)

	fx.session.Teardown()

	fx.charts.mu.Lock()
	live := fx.charts.live
	fx.charts.mu.Unlock()
	assert.Zero(t, live)
	assert.Zero(t, fx.engine.attachedCount())
	assert.True(t, fx.engine.destroyed)

	err = fx.session.HandleClick(context.Background(), geo.EnginePoint{X: 110.5, Y: 35.5, SRID: geo.SRIDWGS84})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoActiveJob))
}
