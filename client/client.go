// Package client calls a remote analysis server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"yukti-backend/prompts"
)

type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{httpClient: httpClient, logger: logger}
}

// AnalyzeRequest mirrors the multipart form of POST /analyze.
type AnalyzeRequest struct {
	Mode            prompts.Mode
	FileName        string
	File            []byte
	ClinicalContext string
	HistoryContext  string
}

type AnalyzeResponse struct {
	Result    json.RawMessage `json:"result"`
	ModelUsed string          `json:"modelUsed"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details"`
	Raw     string `json:"raw"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Analyze uploads a document, or requests a summary, and returns the server's answer.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = prompts.ModeDocument
	}
	form := map[string]string{"mode": string(mode)}
	if req.ClinicalContext != "" {
		form["clinicalContext"] = req.ClinicalContext
	}
	if req.HistoryContext != "" {
		form["historyContext"] = req.HistoryContext
	}

	var (
		out    AnalyzeResponse
		apiErr APIError
	)
	r := c.httpClient.R().
		SetContext(ctx).
		SetMultipartFormData(form).
		SetResult(&out).
		SetError(&apiErr)
	if len(req.File) > 0 {
		r.SetFileReader("file", req.FileName, bytes.NewReader(req.File))
	}

	resp, err := r.Post("/analyze")
	if err != nil {
		c.logger.Error("analyze call failed", zap.Error(err))
		return nil, fmt.Errorf("call analyze: %w", err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		c.logger.Warn("analyze rejected", zap.Int("status", apiErr.Status), zap.String("error", apiErr.Message))
		return nil, &apiErr
	}
	c.logger.Info("analyze completed", zap.String("tier", out.ModelUsed), zap.Int("bytes", len(out.Result)))
	return &out, nil
}

// Health reports whether the server answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/health")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Message: resp.String()}
	}
	return nil
}
