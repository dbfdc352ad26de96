// Package api talks to the processing server's REST endpoints: uploads,
// batch status, results and PDF reports.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client is a thin REST client rooted at <server>/api.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the server at base.
func New(base *url.URL, opts ...Option) *Client {
	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: 5 * time.Minute},
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// endpoint joins escaped path segments under /api.
func (c *Client) endpoint(segments ...string) string {
	u := *c.base
	parts := []string{strings.TrimSuffix(u.Path, "/"), "api"}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	u.RawPath = strings.Join(parts, "/")
	p, err := url.PathUnescape(u.RawPath)
	if err != nil {
		p = u.RawPath
	}
	u.Path = p
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Results fetches the analysis results for jobID as raw JSON.
func (c *Client) Results(ctx context.Context, jobID string) (json.RawMessage, error) {
	return c.getJSON(ctx, c.endpoint("results", jobID))
}

// BatchStatus fetches the status document of a batch.
func (c *Client) BatchStatus(ctx context.Context, batchID string) (json.RawMessage, error) {
	return c.getJSON(ctx, c.endpoint("batch", batchID))
}

// ReportFileName is the default file name for a job's PDF report.
func ReportFileName(jobID string) string {
	return fmt.Sprintf("forensic-report-%s.pdf", jobID)
}

// DownloadReport streams the PDF report for jobID into w.
func (c *Client) DownloadReport(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("report", jobID+".pdf"), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download report: %w", err)
	}
	c.logger.Debug("Report downloaded", zap.String("job_id", jobID), zap.Int64("bytes", n))
	return n, nil
}

// Ping checks that the server answers HTTP at all. Any response counts.
func (c *Client) Ping(ctx context.Context) error {
	u := *c.base
	u.Path = "/"
	u.RawPath = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) getJSON(ctx context.Context, target string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("read %s: response is not JSON", target)
	}
	return body, nil
}

// do sends req and converts non-2xx responses into *APIError. The caller
// owns the body of a successful response.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.Debug("API request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, errorFromResponse(resp)
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			apiErr.Message = payload.Message
		case payload.Detail != "":
			apiErr.Message = payload.Detail
		case payload.Error != "":
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}
