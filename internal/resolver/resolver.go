package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RateLimitCode is the error code the resolution API reports when throttling.
const RateLimitCode = "error.api.rate_exceeded"

// maxDiagnosticBytes caps how much of a response body is kept as a diagnostic.
const maxDiagnosticBytes = 4096

// Kind tags a resolution Outcome.
type Kind int

const (
	Failed Kind = iota
	Resolved
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "Resolved"
	case RateLimited:
		return "RateLimited"
	default:
		return "Failed"
	}
}

// Outcome is the answer for exactly one resolution attempt.
type Outcome struct {
	Kind       Kind
	Link       string
	Filename   string
	Diagnostic string
}

// request is the JSON body sent to the resolution endpoint.
type request struct {
	URL string `json:"url"`
}

// response covers the fields we read from success and error bodies.
type response struct {
	Status   string `json:"status"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Error    *struct {
		Code string `json:"code"`
	} `json:"error,omitempty"`
}

// Client resolves identifiers into short-lived tunnel links.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Client for endpoint. A zero timeout means no client-side timeout.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "resolver"),
	}
}

// Resolve sends one request for identifier. Transport errors become a Failed outcome.
func (c *Client) Resolve(ctx context.Context, identifier string) Outcome {
	payload, err := json.Marshal(request{URL: identifier})
	if err != nil {
		return failed("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return failed("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("resolution request failed", "identifier", identifier, "error", err)
		return failed("request %s: %v", c.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failed("read response: %v", err)
	}

	var parsed response
	decodeErr := json.Unmarshal(body, &parsed)
	rateCode := decodeErr == nil && parsed.Error != nil && parsed.Error.Code == RateLimitCode

	if resp.StatusCode == http.StatusTooManyRequests || rateCode {
		c.logger.Info("rate limit exceeded", "identifier", identifier, "status", resp.StatusCode)
		return Outcome{Kind: RateLimited}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("resolution rejected", "identifier", identifier, "status", resp.StatusCode, "body", truncate(body))
		return failed("status %d: %s", resp.StatusCode, truncate(body))
	}
	if decodeErr != nil {
		return failed("decode response: %v: %s", decodeErr, truncate(body))
	}
	if parsed.URL == "" || parsed.Filename == "" {
		return failed("response missing url or filename: %s", truncate(body))
	}

	return Outcome{Kind: Resolved, Link: parsed.URL, Filename: parsed.Filename}
}

func failed(format string, args ...any) Outcome {
	return Outcome{Kind: Failed, Diagnostic: fmt.Sprintf(format, args...)}
}

func truncate(b []byte) string {
	if len(b) > maxDiagnosticBytes {
		return string(b[:maxDiagnosticBytes]) + "..."
	}
	return string(b)
}
