package view

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
	"github.com/kestrelgeo/landview/logger"
)

// StatusLevel classifies a user-facing status notice.
type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

// Sink receives the outcomes of the point-query pipeline: transient
// status notices and completed time-series results.
type Sink interface {
	ShowStatus(level StatusLevel, message string)
	ShowResult(point geo.Point, ts *api.Timeseries)
}

// TimeseriesFetcher fetches an NDVI time series at a point. *api.Client
// satisfies this.
type TimeseriesFetcher interface {
	Timeseries(ctx context.Context, q api.TimeseriesQuery) (*api.Timeseries, error)
}

// QueryPipeline turns map clicks into NDVI point queries. Queries are
// validated against the active job's result bounds, fetched
// concurrently, and applied with last-initiated-wins ordering: each
// click takes a monotonically increasing token, and a response is shown
// only while its token is still the newest. A stale response is dropped
// silently, so a slow early query can never overwrite a later one.
type QueryPipeline struct {
	fetcher TimeseriesFetcher
	sink    Sink

	token atomic.Uint64

	mu        sync.Mutex
	jobID     string
	bounds    geo.Bounds
	startYear int
}

// NewQueryPipeline wires a pipeline to its fetcher and sink.
func NewQueryPipeline(fetcher TimeseriesFetcher, sink Sink) *QueryPipeline {
	return &QueryPipeline{fetcher: fetcher, sink: sink}
}

// SetActiveJob arms the pipeline for a job's results. Clicks outside
// the given bounds are rejected without a backend round trip.
func (p *QueryPipeline) SetActiveJob(jobID string, bounds geo.Bounds, startYear int) {
	p.mu.Lock()
	p.jobID = jobID
	p.bounds = bounds
	p.startYear = startYear
	p.mu.Unlock()
	// Any in-flight responses for the previous job are now stale.
	p.token.Add(1)
}

// ClearActiveJob disarms the pipeline. Subsequent clicks report that no
// results are loaded.
func (p *QueryPipeline) ClearActiveJob() {
	p.mu.Lock()
	p.jobID = ""
	p.bounds = geo.Bounds{}
	p.mu.Unlock()
	p.token.Add(1)
}

// ActiveJob returns the job the pipeline is armed for, or "".
func (p *QueryPipeline) ActiveJob() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// HandleClick runs one point query to completion. Validation failures
// surface as a status notice and a validation error; no backend request
// is made. Transport failures surface as an error notice. A response
// superseded by a later click returns ErrStaleResult and shows nothing.
func (p *QueryPipeline) HandleClick(ctx context.Context, point geo.Point) error {
	p.mu.Lock()
	jobID := p.jobID
	bounds := p.bounds
	startYear := p.startYear
	p.mu.Unlock()

	if jobID == "" {
		p.sink.ShowStatus(StatusWarning, "No detection results loaded. Run a detection first.")
		return errors.Wrap(errors.ErrNoActiveJob, "point query rejected")
	}
	if !bounds.Contains(point) {
		p.sink.ShowStatus(StatusWarning, "Selected point is outside the analysis area.")
		return errors.Wrapf(errors.ErrOutOfBounds, "point (%.6f, %.6f) outside job %s bounds", point.Lon, point.Lat, jobID)
	}

	token := p.token.Add(1)
	p.sink.ShowStatus(StatusInfo, "Loading NDVI time series...")

	ts, err := p.fetcher.Timeseries(ctx, api.TimeseriesQuery{
		JobID:     jobID,
		Lon:       point.Lon,
		Lat:       point.Lat,
		StartYear: startYear,
	})
	if err != nil {
		if p.token.Load() == token {
			p.sink.ShowStatus(StatusError, "Failed to load NDVI time series.")
		}
		return errors.Wrapf(err, "time series query failed for job %s", jobID)
	}

	// The token re-check and the apply must be one atomic step: two
	// responses racing here could otherwise both pass the check and land
	// in initiation order instead of last-initiated order.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token.Load() != token {
		logger.Debugw("Dropping superseded time series response",
			"job_id", jobID,
			"lon", point.Lon,
			"lat", point.Lat,
		)
		return errors.Wrap(errors.ErrStaleResult, "time series response superseded")
	}

	p.sink.ShowResult(point, ts)
	return nil
}
