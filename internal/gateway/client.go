package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/repolens-dev/repolens/internal/conversation"
)

// Client talks HTTP+JSON to the analysis backend. Transient failures are
// retried at the transport layer (retryablehttp); callers see only the
// final outcome.
type Client struct {
	http *resty.Client
}

// ClientOptions configures the HTTP client.
type ClientOptions struct {
	Timeout  time.Duration // per-call budget, including retries
	RetryMax int
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.Logger = nil

	rc := resty.NewWithClient(retryClient.StandardClient())
	rc.SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "repolens")

	return &Client{http: rc}
}

// --- Wire types ---

type estimateRequest struct {
	Task     string `json:"task"`
	RepoPath string `json:"repoPath"`
	Confirm  bool   `json:"confirm"`
}

type confirmRequest struct {
	RequestID string `json:"requestId"`
}

type askRequest struct {
	Question  string `json:"question"`
	RequestID string `json:"requestId"`
}

type estimateWire struct {
	NeedsConfirmation bool     `json:"needsConfirmation"`
	RequestID         string   `json:"requestId"`
	EstimatedTokens   int      `json:"estimatedTokens"`
	EstimatedCost     float64  `json:"estimatedCost"`
	Files             []string `json:"files"`
	Recommendations   string   `json:"recommendations"`
}

type resultWire struct {
	Files           []string `json:"files"`
	Recommendations string   `json:"recommendations"`
}

type askWire struct {
	Response string `json:"response"`
}

type errorWire struct {
	Error string `json:"error"`
}

// Estimate implements Gateway.
func (c *Client) Estimate(ctx context.Context, task, repoPath string) (*EstimateResponse, error) {
	var out estimateWire
	var apiErr errorWire

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(estimateRequest{Task: task, RepoPath: repoPath, Confirm: false}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/analyze")
	if err != nil {
		return nil, fmt.Errorf("estimate request: %w", err)
	}
	if resp.IsError() {
		return nil, backendError("estimate", resp.StatusCode(), apiErr.Error)
	}

	// Validate the payload at the boundary so a malformed success never
	// produces an inconsistent conversation.
	if out.RequestID == "" {
		return nil, fmt.Errorf("estimate response missing requestId")
	}
	est := &EstimateResponse{
		NeedsConfirmation: out.NeedsConfirmation,
		RequestID:         out.RequestID,
		EstimatedTokens:   out.EstimatedTokens,
		EstimatedCost:     out.EstimatedCost,
	}
	if !out.NeedsConfirmation {
		res, err := toResult(resultWire{Files: out.Files, Recommendations: out.Recommendations})
		if err != nil {
			return nil, fmt.Errorf("estimate: %w", err)
		}
		est.Result = res
	}
	return est, nil
}

// Confirm implements Gateway. A 400 from the backend means the request id
// is unknown or expired and maps to ErrUnknownRequest.
func (c *Client) Confirm(ctx context.Context, requestID string) (*conversation.Result, error) {
	var out resultWire
	var apiErr errorWire

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(confirmRequest{RequestID: requestID}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/confirm")
	if err != nil {
		return nil, fmt.Errorf("confirm request: %w", err)
	}
	if resp.StatusCode() == http.StatusBadRequest {
		return nil, fmt.Errorf("confirm %s: %w", requestID, ErrUnknownRequest)
	}
	if resp.IsError() {
		return nil, backendError("confirm", resp.StatusCode(), apiErr.Error)
	}

	res, err := toResult(out)
	if err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}
	return res, nil
}

// Ask implements Gateway.
func (c *Client) Ask(ctx context.Context, question, requestID string) (string, error) {
	var out askWire
	var apiErr errorWire

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(askRequest{Question: question, RequestID: requestID}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/ask")
	if err != nil {
		return "", fmt.Errorf("ask request: %w", err)
	}
	if resp.StatusCode() == http.StatusBadRequest {
		return "", fmt.Errorf("ask %s: %w", requestID, ErrUnknownRequest)
	}
	if resp.IsError() {
		return "", backendError("ask", resp.StatusCode(), apiErr.Error)
	}

	if out.Response == "" {
		return "", fmt.Errorf("ask response missing answer")
	}
	return out.Response, nil
}

// toResult validates a result payload: a success body carrying neither
// files nor recommendations is malformed.
func toResult(w resultWire) (*conversation.Result, error) {
	if len(w.Files) == 0 && w.Recommendations == "" {
		return nil, fmt.Errorf("response missing analysis result")
	}
	return &conversation.Result{
		Files:           w.Files,
		Recommendations: w.Recommendations,
	}, nil
}

func backendError(op string, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%s failed (HTTP %d): %s", op, status, msg)
}
