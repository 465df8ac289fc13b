// Package client calls a running risk server's JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/predlog"
)

// maxResponseBytes caps how much of a reply is read.
const maxResponseBytes = 4 * 1024 * 1024

// Prediction is the server's answer to one submission.
type Prediction struct {
	Prediction   int                `json:"prediction"`
	RiskScore    float64            `json:"risk_score"`
	Label        string             `json:"label"`
	Result       string             `json:"result"`
	Timestamp    string             `json:"timestamp"`
	ModelVersion string             `json:"model_version"`
	Input        features.Input     `json:"input"`
	Features     map[string]float64 `json:"features"`
	Logged       bool               `json:"logged"`
	LogError     string             `json:"log_error,omitempty"`
}

// ServerConfig is what /api/config reports.
type ServerConfig struct {
	Version      string  `json:"version"`
	GitSHA       string  `json:"git_sha"`
	BuildTime    string  `json:"build_time"`
	ModelVersion string  `json:"model_version"`
	SchemaWidth  int     `json:"schema_width"`
	Encoding     string  `json:"encoding"`
	Sink         string  `json:"sink"`
	Threshold    float64 `json:"threshold"`
	HistoryLimit int     `json:"history_limit"`
}

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int
	Message    string   `json:"error"`
	Problems   []string `json:"problems"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if len(e.Problems) > 0 {
		msg += " (" + strings.Join(e.Problems, "; ") + ")"
	}
	return msg
}

type Client struct {
	base *url.URL
	http httputil.HTTPClient
}

// New returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func New(baseURL string, hc httputil.HTTPClient) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: u, http: hc}, nil
}

// Predict submits in to /api/predict.
func (c *Client) Predict(ctx context.Context, in features.Input) (*Prediction, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	var p Prediction
	if err := c.do(ctx, http.MethodPost, "/api/predict", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Recent returns up to limit of the most recently logged entries.
func (c *Client) Recent(ctx context.Context, limit int) ([]predlog.Entry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Predictions []predlog.Entry `json:"predictions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/predictions", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// Config fetches the server's build and model information.
func (c *Client) Config(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = q.Encode()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
