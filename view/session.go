package view

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/geo"
	"github.com/kestrelgeo/landview/logger"
)

// StatusFunc delivers a status notice to the user interface.
type StatusFunc func(level StatusLevel, message string)

// JobFetcher fetches a job's detail record. *api.Client satisfies this.
type JobFetcher interface {
	Job(ctx context.Context, jobID string) (*api.JobDetail, error)
}

// Session is one user's live map session. It owns the layer set
// manager, display mode controller, and point-query pipeline, and keeps
// the chart discipline: at most one chart exists, and the old one is
// destroyed before its replacement renders.
type Session struct {
	engine Engine
	gate   *Gate
	layers *LayerSetManager
	mode   *ModeController
	charts ChartFactory
	jobs   JobFetcher
	status StatusFunc

	pipeline *QueryPipeline

	mu    sync.Mutex
	chart Chart
}

// SessionConfig carries the collaborators a Session needs.
type SessionConfig struct {
	Engine       Engine
	Gate         *Gate
	Source       LayerSource
	Fetcher      TimeseriesFetcher
	Jobs         JobFetcher
	ChartFactory ChartFactory
	Status       StatusFunc
}

// NewSession assembles a session from its collaborators.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		engine: cfg.Engine,
		gate:   cfg.Gate,
		layers: NewLayerSetManager(cfg.Engine, cfg.Gate, cfg.Source),
		mode:   NewModeController(),
		charts: cfg.ChartFactory,
		jobs:   cfg.Jobs,
		status: cfg.Status,
	}
	s.pipeline = NewQueryPipeline(cfg.Fetcher, s)
	return s
}

// Gate exposes the session's readiness gate.
func (s *Session) Gate() *Gate { return s.gate }

// Layers exposes the session's layer set manager.
func (s *Session) Layers() *LayerSetManager { return s.layers }

// Mode returns the active display mode.
func (s *Session) Mode() DisplayMode { return s.mode.Mode() }

// SetDisplayMode switches between vector and raster rendering.
func (s *Session) SetDisplayMode(mode DisplayMode) { s.mode.Apply(mode) }

// HandleClick runs the point-query pipeline for a map click. The click
// arrives in the engine's spatial reference and is transformed to
// geographic coordinates before validation. Clicks on a degraded map are
// rejected with a warning.
func (s *Session) HandleClick(ctx context.Context, p geo.EnginePoint) error {
	if s.gate.Err() != nil {
		s.ShowStatus(StatusWarning, "The map failed to initialize; point queries are unavailable.")
		return errors.Wrap(s.gate.Err(), "point query rejected")
	}

	point, err := p.ToGeographic()
	if err != nil {
		s.ShowStatus(StatusWarning, "Could not resolve the clicked location.")
		return errors.Wrap(err, "click transform failed")
	}
	return s.pipeline.HandleClick(ctx, point)
}

// LoadResult replaces the map content with a completed run's layers:
// the previous job's layers are disposed, the new set is built and
// framed, the display mode re-applies, and the query pipeline re-arms
// for the new bounds. Vector load completion is awaited in the
// background; a layer that fails to load is reported but does not block
// the rest of the result.
func (s *Session) LoadResult(ctx context.Context, jobID string, result *api.RunResult, startYear int) error {
	set, err := s.layers.ReplaceForJob(jobID, result.Bounds)
	if err != nil {
		if errors.IsStale(err) {
			return err
		}
		return errors.Wrapf(err, "failed to load layers for job %s", jobID)
	}

	s.mode.SetLayers(set)
	s.pipeline.SetActiveJob(jobID, result.Bounds, startYear)

	if result.CRS.Warning != "" {
		s.ShowStatus(StatusWarning, result.CRS.Warning)
	}

	go func() {
		loadCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.layers.AwaitAllVectorLoaded(loadCtx, set); err != nil {
			if errors.IsStale(err) {
				return
			}
			logger.Warnw("Vector layer load incomplete", "job_id", jobID, "error", err)
			s.ShowStatus(StatusWarning, "Some result layers failed to load.")
		}
	}()

	return nil
}

// LoadJob resumes a previously completed job from the backend's record:
// fetch its detail, then load its layers as if the run had just
// finished. Only completed jobs with known bounds can resume.
func (s *Session) LoadJob(ctx context.Context, jobID string) error {
	detail, err := s.jobs.Job(ctx, jobID)
	if err != nil {
		s.ShowStatus(StatusError, "Failed to load the selected job.")
		return err
	}
	if detail.Status != api.JobStatusCompleted {
		s.ShowStatus(StatusWarning, "That job has no results to display yet.")
		return errors.NewValidationError("job %s is %s, not completed", jobID, detail.Status)
	}
	if detail.Bounds == nil || !detail.Bounds.Valid() {
		s.ShowStatus(StatusError, "The selected job has no usable result bounds.")
		return errors.NewValidationError("job %s has no bounds", jobID)
	}

	result := &api.RunResult{
		Outputs: api.Products,
		Bounds:  *detail.Bounds,
	}
	if detail.CRS != nil {
		result.CRS = *detail.CRS
	}
	return s.LoadResult(ctx, jobID, result, detail.StartYear)
}

// ShowStatus forwards a notice to the UI. Part of the Sink contract.
func (s *Session) ShowStatus(level StatusLevel, message string) {
	if s.status != nil {
		s.status(level, message)
	}
}

// ShowResult renders a completed point query: the popup opens at the
// clicked location and the time-series chart replaces any previous one.
// Part of the Sink contract.
func (s *Session) ShowResult(point geo.Point, ts *api.Timeseries) {
	s.engine.OpenPopup(BuildPopup(point, ts))

	spec := BuildChartSpec(ts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chart != nil {
		s.chart.Destroy()
		s.chart = nil
	}
	if s.charts != nil {
		s.chart = s.charts.New(spec)
	}
}

// Teardown releases the session's UI resources: the chart goes first,
// then the layers, then the engine itself.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.chart != nil {
		s.chart.Destroy()
		s.chart = nil
	}
	s.mu.Unlock()

	s.pipeline.ClearActiveJob()
	s.layers.Teardown()
	s.engine.Destroy()
}
