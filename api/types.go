package api

import (
	"github.com/kestrelgeo/landview/geo"
)

// Dataset kinds accepted by the upload endpoint.
const (
	KindNDVI = "ndvi"
	KindCoal = "coal"
)

// Products rendered from a completed detection job. The order here is the
// layer build order on the map.
var Products = []string{
	ProductDisturbanceMask,
	ProductDisturbanceYear,
	ProductRecoveryYear,
}

const (
	ProductDisturbanceMask = "disturbance_mask"
	ProductDisturbanceYear = "disturbance_year"
	ProductRecoveryYear    = "recovery_year"
)

// JobStatus is the backend lifecycle of a detection job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// CRSInfo describes the source coordinate system of the uploaded rasters
// and any reprojection caveat the backend wants surfaced.
type CRSInfo struct {
	EPSG      int    `json:"epsg,omitempty"`
	CRSString string `json:"crs_string,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// RunResult is the response to a detection run: which products were
// generated, where they sit, and what coordinate system they came from.
type RunResult struct {
	Outputs []string   `json:"outputs"`
	Bounds  geo.Bounds `json:"bounds"`
	CRS     CRSInfo    `json:"crs_info"`
}

// TimeseriesQuery identifies one pixel of one job.
type TimeseriesQuery struct {
	JobID     string
	Lon       float64
	Lat       float64
	StartYear int
}

// Timeseries is the per-pixel NDVI profile returned by the point query.
// NDVI[i] corresponds to Years[i]; nil marks a missing sample (for
// example a cloud-masked year).
type Timeseries struct {
	Lon             float64    `json:"lon"`
	Lat             float64    `json:"lat"`
	Years           []int      `json:"years"`
	NDVI            []*float64 `json:"ndvi"`
	DisturbanceYear *int       `json:"disturbance_year"`
	RecoveryYear    *int       `json:"recovery_year"`
}

// JobDetail is the job record used for history resume.
type JobDetail struct {
	JobID     string      `json:"job_id"`
	Status    JobStatus   `json:"status"`
	StartYear int         `json:"startyear"`
	Bounds    *geo.Bounds `json:"bounds,omitempty"`
	CRS       *CRSInfo    `json:"crs_info,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
}

// JobPage is one page of the job history listing.
type JobPage struct {
	Jobs  []JobDetail `json:"jobs"`
	Page  int         `json:"page"`
	Pages int         `json:"pages"`
	Total int         `json:"total"`
}

// JobFile is one downloadable artifact of a completed job.
type JobFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size,omitempty"`
}

type uploadResponse struct {
	JobID string `json:"job_id"`
}

type jobFilesResponse struct {
	JobID string    `json:"job_id"`
	Files []JobFile `json:"files"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}
