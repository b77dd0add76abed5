package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const (
	chatPath   = "/chat"
	streamPath = "/chat/stream"

	maxErrorBody    = 4 << 10
	maxResponseBody = 1 << 20
)

// Chat sends one synchronous request to /chat.
func (c *Client) Chat(ctx context.Context, req Request) (*Response, error) {
	body, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	return c.chat(ctx, req, body)
}

func (c *Client) prepare(req Request) ([]byte, error) {
	if c.cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	return buildBody(req)
}

func (c *Client) chat(ctx context.Context, req Request, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(req))
	defer cancel()

	requestID := uuid.NewString()
	httpReq, err := c.newRequest(ctx, chatPath, requestID, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var decoded wireResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	out, err := decoded.toResponse()
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = requestID
	}
	c.log().Debug("gateway chat completed",
		"request_id", requestID,
		"tool_calls", len(out.ToolCalls),
		"text_len", len(out.Text),
	)
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, path, requestID string, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerRequestID, requestID)
	if c.cfg.APIKey != "" {
		httpReq.Header.Set(headerAPIKey, c.cfg.APIKey)
	}
	return httpReq, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
}
