package view

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
)

func armedPipeline(fetcher *fakeFetcher) (*QueryPipeline, *recordSink) {
	sink := &recordSink{}
	p := NewQueryPipeline(fetcher, sink)
	p.SetActiveJob("job-a", testBounds(), 2010)
	return p, sink
}

func TestClickInsideBoundsQueriesOnce(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, sink := armedPipeline(fetcher)

	err := p.HandleClick(context.Background(), geo.Point{Lon: 110.5, Lat: 35.5})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.callCount())
	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, "job-a", fetcher.calls[0].JobID)
	assert.Equal(t, 110.5, fetcher.calls[0].Lon)
	assert.Equal(t, 2010, fetcher.calls[0].StartYear)
	assert.Equal(t, 1, sink.resultCount())
}

func TestClickOutsideBoundsNeverQueries(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, sink := armedPipeline(fetcher)

	err := p.HandleClick(context.Background(), geo.Point{Lon: 120.0, Lat: 35.5})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))

	assert.Zero(t, fetcher.callCount())
	assert.Zero(t, sink.resultCount())
	require.NotEmpty(t, sink.levels)
	assert.Equal(t, StatusWarning, sink.levels[len(sink.levels)-1])
}

func TestBoundaryClickIsInside(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, _ := armedPipeline(fetcher)

	// Exactly on the western edge counts as inside.
	err := p.HandleClick(context.Background(), geo.Point{Lon: 110.0, Lat: 35.5})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestClickWithoutActiveJob(t *testing.T) {
	fetcher := &fakeFetcher{}
	sink := &recordSink{}
	p := NewQueryPipeline(fetcher, sink)

	err := p.HandleClick(context.Background(), geo.Point{Lon: 110.5, Lat: 35.5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoActiveJob))
	assert.Zero(t, fetcher.callCount())
}

func TestLastInitiatedWins(t *testing.T) {
	// Q1 is initiated first but responds last; Q2's result must stand and
	// Q1's must be dropped.
	q1Release := make(chan struct{})
	q2Done := make(chan struct{})

	fetcher := &fakeFetcher{}
	fetcher.respond = func(q api.TimeseriesQuery) (*api.Timeseries, error) {
		if fetcher.callCount() == 1 {
			<-q1Release
		}
		v := q.Lon
		return &api.Timeseries{Lon: q.Lon, Lat: q.Lat, Years: []int{2010}, NDVI: []*float64{&v}}, nil
	}

	p, sink := armedPipeline(fetcher)

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)
	go func() {
		defer wg.Done()
		errs[0] = p.HandleClick(context.Background(), geo.Point{Lon: 110.1, Lat: 35.5})
	}()

	// Ensure Q1 registered before Q2 starts.
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, time.Millisecond)

	go func() {
		defer wg.Done()
		errs[1] = p.HandleClick(context.Background(), geo.Point{Lon: 110.2, Lat: 35.5})
		close(q2Done)
	}()

	<-q2Done
	close(q1Release)
	wg.Wait()

	require.Error(t, errs[0])
	assert.True(t, errors.IsStale(errs[0]))
	require.NoError(t, errs[1])

	require.Equal(t, 1, sink.resultCount())
	assert.Equal(t, 110.2, sink.lastResult().Lon)
}

func TestSlowResponseNeverOverwritesAppliedResult(t *testing.T) {
	// Q2's result is already on screen when Q1's response finally lands;
	// the late apply must be rejected, not shown after the newer one.
	q1Release := make(chan struct{})

	fetcher := &fakeFetcher{}
	fetcher.respond = func(q api.TimeseriesQuery) (*api.Timeseries, error) {
		if q.Lon == 110.1 {
			<-q1Release
		}
		return &api.Timeseries{Lon: q.Lon, Lat: q.Lat}, nil
	}

	p, sink := armedPipeline(fetcher)

	q1Err := make(chan error, 1)
	go func() {
		q1Err <- p.HandleClick(context.Background(), geo.Point{Lon: 110.1, Lat: 35.5})
	}()
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, time.Millisecond)

	// Q2 runs start to finish while Q1 is still in flight.
	require.NoError(t, p.HandleClick(context.Background(), geo.Point{Lon: 110.2, Lat: 35.5}))
	require.Equal(t, 1, sink.resultCount())

	close(q1Release)
	err := <-q1Err
	require.Error(t, err)
	assert.True(t, errors.IsStale(err))

	// The applied result still belongs to the later click.
	assert.Equal(t, 1, sink.resultCount())
	assert.Equal(t, 110.2, sink.lastResult().Lon)
}

func TestTransportFailureShowsErrorNotice(t *testing.T) {
	fetcher := &fakeFetcher{
		respond: func(q api.TimeseriesQuery) (*api.Timeseries, error) {
			return nil, errors.WrapTransport(errors.New("backend down"), "point query")
		},
	}
	p, sink := armedPipeline(fetcher)

	err := p.HandleClick(context.Background(), geo.Point{Lon: 110.5, Lat: 35.5})
	require.Error(t, err)
	assert.True(t, errors.IsTransportError(err))
	require.NotEmpty(t, sink.levels)
	assert.Equal(t, StatusError, sink.levels[len(sink.levels)-1])
	assert.Zero(t, sink.resultCount())
}

func TestClearActiveJobDisarms(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, _ := armedPipeline(fetcher)
	p.ClearActiveJob()

	err := p.HandleClick(context.Background(), geo.Point{Lon: 110.5, Lat: 35.5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoActiveJob))
	assert.Empty(t, p.ActiveJob())
}
