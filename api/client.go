// Package api is the HTTP client for the detection backend. It covers the
// full REST surface the map pipeline needs: dataset upload, detection
// runs, per-pixel NDVI queries, job detail/listing for history resume,
// and URL construction for the engine's GeoJSON and tile layer sources.
//
// Every request carries a bearer token; a 401 triggers one transparent
// token refresh followed by a single replay of the original request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/logger"
)

// Client talks to the detection backend.
type Client struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokens sets the bearer tokens used for authentication.
func WithTokens(access, refresh string) Option {
	return func(c *Client) {
		c.accessToken = access
		c.refreshToken = refresh
	}
}

// NewClient creates a backend client. The timeout applies per request and
// should be generous: detection runs hold the connection while the
// backend computes.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends one dataset to the backend. kind is "ndvi" or "coal";
// jobID is empty for the first upload of a run and the backend mints one,
// subsequent uploads pass it to join the same job. Returns the job id.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename, kind, jobID string) (string, error) {
	if kind != KindNDVI && kind != KindCoal {
		return "", errors.NewValidationError("unknown dataset kind %q", kind)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "failed to build multipart body")
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", errors.Wrapf(err, "failed to read dataset %s", filename)
	}
	if err := w.WriteField("kind", kind); err != nil {
		return "", errors.Wrap(err, "failed to write kind field")
	}
	if jobID != "" {
		if err := w.WriteField("job_id", jobID); err != nil {
			return "", errors.Wrap(err, "failed to write job_id field")
		}
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finalize multipart body")
	}

	var resp uploadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/upload", w.FormDataContentType(), body.Bytes(), &resp); err != nil {
		return "", errors.WrapTransport(err, fmt.Sprintf("upload %s (%s)", filename, kind))
	}
	if resp.JobID == "" {
		return "", errors.WrapTransport(errors.New("backend returned no job_id"), "upload")
	}
	return resp.JobID, nil
}

// Run triggers the detection algorithm for an uploaded job. Blocks until
// the backend finishes; there is no cancel once submitted.
func (c *Client) Run(ctx context.Context, jobID string, startYear int) (*RunResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"job_id":    jobID,
		"startyear": startYear,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal run request")
	}

	var result RunResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/run", "application/json", payload, &result); err != nil {
		return nil, errors.WrapTransport(err, fmt.Sprintf("run detection for job %s", jobID))
	}
	if !result.Bounds.Valid() {
		return nil, errors.WrapTransport(
			errors.Newf("backend returned degenerate bounds %+v", result.Bounds), "run detection")
	}
	return &result, nil
}

// Timeseries fetches the NDVI profile for one pixel.
func (c *Client) Timeseries(ctx context.Context, q TimeseriesQuery) (*Timeseries, error) {
	path := "/api/ndvi-timeseries?" + url.Values{
		"job_id":    {q.JobID},
		"lon":       {strconv.FormatFloat(q.Lon, 'f', -1, 64)},
		"lat":       {strconv.FormatFloat(q.Lat, 'f', -1, 64)},
		"startyear": {strconv.Itoa(q.StartYear)},
	}.Encode()

	var ts Timeseries
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &ts); err != nil {
		return nil, errors.WrapTransport(err, "point query")
	}
	if len(ts.Years) != len(ts.NDVI) {
		return nil, errors.WrapTransport(
			errors.Newf("malformed timeseries: %d years but %d samples", len(ts.Years), len(ts.NDVI)),
			"point query")
	}
	return &ts, nil
}

// Job fetches one job's detail record (history resume).
func (c *Client) Job(ctx context.Context, jobID string) (*JobDetail, error) {
	var detail JobDetail
	if err := c.doJSON(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), "", nil, &detail); err != nil {
		return nil, errors.WrapTransport(err, fmt.Sprintf("fetch job %s", jobID))
	}
	return &detail, nil
}

// Jobs lists the caller's jobs, newest first.
func (c *Client) Jobs(ctx context.Context, page, perPage int) (*JobPage, error) {
	path := "/api/jobs?" + url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}.Encode()

	var jp JobPage
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &jp); err != nil {
		return nil, errors.WrapTransport(err, "list jobs")
	}
	return &jp, nil
}

// JobFiles lists the downloadable artifacts of a job. Server-side files
// outlive any layer replacement on the map.
func (c *Client) JobFiles(ctx context.Context, jobID string) ([]JobFile, error) {
	var resp jobFilesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/job-files/"+url.PathEscape(jobID), "", nil, &resp); err != nil {
		return nil, errors.WrapTransport(err, fmt.Sprintf("list files for job %s", jobID))
	}
	return resp.Files, nil
}

// GeoJSONURL returns the vector source URL for one product of a job.
func (c *Client) GeoJSONURL(jobID, product string) string {
	return fmt.Sprintf("%s/api/result-geojson/%s/%s", c.baseURL, url.PathEscape(jobID), product)
}

// TileURLTemplate returns the raster tile URL template for one product.
// {level}/{col}/{row} placeholders are filled by the map engine.
func (c *Client) TileURLTemplate(jobID, product string) string {
	return fmt.Sprintf("%s/api/tiles/%s/%s/{level}/{col}/{row}.png", c.baseURL, url.PathEscape(jobID), product)
}

// doJSON performs a request, decodes a JSON response into out, and
// retries exactly once through a token refresh on 401.
func (c *Client) doJSON(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := c.refresh(ctx); err != nil {
			return errors.Wrap(err, "token refresh failed")
		}
		resp, err = c.do(ctx, method, path, contentType, body)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s %s", method, path)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	return resp, nil
}

// refresh exchanges the refresh token for a new access token.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		return errors.New("no refresh token configured")
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return errors.Wrap(err, "failed to marshal refresh request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build refresh request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "refresh request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return errors.Wrap(err, "failed to decode refresh response")
	}
	if rr.AccessToken == "" {
		return errors.New("refresh returned empty access token")
	}

	c.mu.Lock()
	c.accessToken = rr.AccessToken
	c.mu.Unlock()

	logger.Debugw("Access token refreshed")
	return nil
}

// statusError turns a non-2xx response into an error, preferring the
// backend's own error message when it sent one.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return errors.Newf("%s: %s", resp.Status, er.Error)
	}
	return errors.Newf("%s", resp.Status)
}
