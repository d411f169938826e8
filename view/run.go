package view

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/logger"
)

// RunBackend is the backend surface the run orchestrator needs.
// *api.Client satisfies this.
type RunBackend interface {
	Upload(ctx context.Context, r io.Reader, filename, kind, jobID string) (string, error)
	Run(ctx context.Context, jobID string, startYear int) (*api.RunResult, error)
}

// ResultLoader turns a completed run into map layers. The Session
// satisfies this.
type ResultLoader interface {
	LoadResult(ctx context.Context, jobID string, result *api.RunResult, startYear int) error
}

// RunRecorder persists a completed run for later resume.
type RunRecorder interface {
	RecordRun(jobID string, startYear int, result *api.RunResult) error
}

// RunRequest carries the two datasets of one detection run.
type RunRequest struct {
	NDVI         io.Reader
	NDVIFilename string
	Coal         io.Reader
	CoalFilename string
	StartYear    int
}

// Runner drives a detection run end to end: upload the NDVI stack,
// upload the coal lease mask, trigger the detection, and load the
// resulting layers onto the map. The steps run strictly in order; a
// failure at any step aborts the rest and reports which step broke.
//
// Only one run may be in flight at a time. A second submission while a
// run is active is rejected immediately with a busy notice rather than
// queued.
type Runner struct {
	backend  RunBackend
	loader   ResultLoader
	recorder RunRecorder
	sink     Sink

	busy atomic.Bool
}

// NewRunner wires a run orchestrator. recorder may be nil, in which case
// completed runs are not persisted locally.
func NewRunner(backend RunBackend, loader ResultLoader, recorder RunRecorder, sink Sink) *Runner {
	return &Runner{backend: backend, loader: loader, recorder: recorder, sink: sink}
}

// InFlight reports whether a run is currently executing.
func (r *Runner) InFlight() bool { return r.busy.Load() }

// Execute performs one detection run. Returns the job id on success.
func (r *Runner) Execute(ctx context.Context, req RunRequest) (string, error) {
	if !r.busy.CompareAndSwap(false, true) {
		r.sink.ShowStatus(StatusWarning, "A detection run is already in progress.")
		return "", errors.Wrap(errors.ErrRunInFlight, "run rejected")
	}
	defer r.busy.Store(false)

	if req.NDVI == nil || req.Coal == nil {
		return "", errors.NewValidationError("both NDVI and coal datasets are required")
	}

	jobID, err := r.step(1, "Uploading NDVI dataset", func() (string, error) {
		return r.backend.Upload(ctx, req.NDVI, req.NDVIFilename, api.KindNDVI, "")
	})
	if err != nil {
		return "", err
	}

	if _, err := r.step(2, "Uploading coal lease mask", func() (string, error) {
		return r.backend.Upload(ctx, req.Coal, req.CoalFilename, api.KindCoal, jobID)
	}); err != nil {
		return "", err
	}

	var result *api.RunResult
	if _, err := r.step(3, "Running disturbance detection", func() (string, error) {
		res, err := r.backend.Run(ctx, jobID, req.StartYear)
		result = res
		return jobID, err
	}); err != nil {
		return "", err
	}

	if _, err := r.step(4, "Loading result layers", func() (string, error) {
		return jobID, r.loader.LoadResult(ctx, jobID, result, req.StartYear)
	}); err != nil {
		return "", err
	}

	if r.recorder != nil {
		if err := r.recorder.RecordRun(jobID, req.StartYear, result); err != nil {
			// Local history is best effort; the run itself succeeded.
			logger.Warnw("Failed to record run in local history", "job_id", jobID, "error", err)
		}
	}

	r.sink.ShowStatus(StatusInfo, "Detection complete.")
	logger.Infow("Detection run finished", "job_id", jobID, "start_year", req.StartYear)
	return jobID, nil
}

func (r *Runner) step(n int, label string, fn func() (string, error)) (string, error) {
	r.sink.ShowStatus(StatusInfo, fmt.Sprintf("%s... (%d/4)", label, n))
	out, err := fn()
	if err != nil {
		r.sink.ShowStatus(StatusError, fmt.Sprintf("%s failed.", label))
		return "", errors.Wrapf(err, "step %d/4 (%s)", n, label)
	}
	return out, nil
}
