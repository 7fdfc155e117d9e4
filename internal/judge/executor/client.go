// Package executor is the HTTP client for the external sandboxed compiler
// service that runs submitted code.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"courseoj/pkg/utils/logger"
)

// ExitStatus reports how a sandbox run finished.
type ExitStatus string

const (
	StatusSuccess      ExitStatus = "SUCCESS"
	StatusCompileError ExitStatus = "COMPILE_ERROR"
	StatusRuntimeError ExitStatus = "RUNTIME_ERROR"
	StatusTimeout      ExitStatus = "TIMEOUT"
	StatusCantConnect  ExitStatus = "CANT_CONNECT_TO_COMPILER"
)

// RunRequest is the wire request for one sandbox execution.
type RunRequest struct {
	Input   string `json:"input"`
	Code    string `json:"code"`
	Timeout int    `json:"timeout"` // milliseconds
}

// RunResult is the wire response for one sandbox execution.
type RunResult struct {
	Output     string     `json:"output"`
	ExitCode   int        `json:"exit_code"`
	ExitStatus ExitStatus `json:"exit_status"`
	UsedTime   int64      `json:"used_time"` // milliseconds, -1 when unknown
}

// CantConnectResult is the sentinel returned when the sandbox is
// unreachable. Callers branch on ExitStatus, never on a Go error.
func CantConnectResult() RunResult {
	return RunResult{
		Output:     "",
		ExitCode:   1,
		ExitStatus: StatusCantConnect,
		UsedTime:   -1,
	}
}

// Client runs code in the sandbox. Run never returns a Go error: transport
// failures degrade to the CANT_CONNECT_TO_COMPILER sentinel so judging can
// treat them as a per-case failure.
type Client interface {
	Run(ctx context.Context, req RunRequest) RunResult
}

// Config holds HTTP client settings for the sandbox service.
type Config struct {
	BaseURL     string
	AccessToken string

	// TransportMargin is added to the per-run timeout to allow for
	// compile and network time. Default 10 seconds.
	TransportMargin time.Duration
}

// HTTPClient implements Client over the sandbox's /judge endpoint.
type HTTPClient struct {
	baseURL     string
	accessToken string
	margin      time.Duration
	client      *http.Client
}

// NewHTTPClient creates a sandbox client.
func NewHTTPClient(cfg Config) *HTTPClient {
	margin := cfg.TransportMargin
	if margin <= 0 {
		margin = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		margin:      margin,
		client:      &http.Client{},
	}
}

// Run executes one request against the sandbox. The round trip is bounded
// by the run timeout plus the transport margin; a response that does not
// arrive in time is reported as CANT_CONNECT_TO_COMPILER.
func (c *HTTPClient) Run(ctx context.Context, req RunRequest) RunResult {
	if req.Timeout <= 0 {
		req.Timeout = 100
	}
	deadline := time.Duration(req.Timeout)*time.Millisecond + c.margin
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		logger.Error(ctx, "marshal sandbox request", zap.Error(err))
		return CantConnectResult()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/judge", bytes.NewReader(payload))
	if err != nil {
		logger.Error(ctx, "build sandbox request", zap.Error(err))
		return CantConnectResult()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		httpReq.Header.Set("Access-Token", c.accessToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		logger.Warn(ctx, "sandbox unreachable", zap.Error(err))
		return CantConnectResult()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn(ctx, "sandbox returned non-200", zap.Int("status", resp.StatusCode))
		return CantConnectResult()
	}

	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Warn(ctx, "decode sandbox response", zap.Error(err))
		return CantConnectResult()
	}
	return result
}

var _ Client = (*HTTPClient)(nil)
