// Package gateway talks to the remote language-model proxy over HTTP.
// It offers a synchronous chat call and an SSE stream that falls back to the
// synchronous endpoint when the stream cannot be used.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/finassist/finassist/internal/tools"
)

const (
	defaultChatTimeout      = 30 * time.Second
	defaultFirstCallTimeout = 90 * time.Second

	headerAPIKey    = "X-Api-Key"
	headerRequestID = "X-Request-Id"
)

var (
	// ErrToolsWithResults is returned when a request carries both the tool catalog and tool results.
	ErrToolsWithResults = errors.New("tool catalog and tool results are mutually exclusive")
	// ErrNotConfigured is returned when no backend URL is set.
	ErrNotConfigured = errors.New("gateway url is not configured")
)

// Config holds every gateway setting; it is built once and passed to New.
type Config struct {
	// BaseURL is the backend root, e.g. http://llm-proxy:8080.
	BaseURL string
	// APIKey is sent in the X-Api-Key header.
	APIKey string
	// Streaming enables /chat/stream; when false Stream replays /chat.
	Streaming bool
	// ChatTimeout bounds follow-up and classification calls.
	ChatTimeout time.Duration
	// FirstCallTimeout bounds calls that carry the tool catalog.
	FirstCallTimeout time.Duration
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// Gateway is the model backend as seen by the orchestrator and the categorizer.
type Gateway interface {
	// Chat performs one synchronous round trip.
	Chat(ctx context.Context, req Request) (*Response, error)
	// Stream returns events for one round trip. The channel closes after Done or Error.
	Stream(ctx context.Context, req Request) (<-chan Event, error)
}

// Message is one prior chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one gateway round trip. Tools and ToolResults must not both be set.
type Request struct {
	// Message is the user prompt.
	Message string
	// Instructions is the system prompt.
	Instructions string
	// Tools is the catalog offered on a first call.
	Tools []tools.Definition
	// ToolResults carries executed calls on a follow-up.
	ToolResults []tools.Result
	// History is the windowed chat history, oldest first.
	History []Message
	// PreviousResponseID links a follow-up to the first call.
	PreviousResponseID string
	// Buffered means the caller holds stream output back until Done, so a
	// stream that breaks after emitting output may still be replayed after an
	// EventReset.
	Buffered bool
}

// Usage reports token counts when the backend provides them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Response is the outcome of one round trip.
type Response struct {
	// ID identifies the backend response.
	ID string
	// Text is the full assistant text.
	Text string
	// ToolCalls lists requested function calls.
	ToolCalls []tools.Request
	// Usage holds token counts, if any.
	Usage *Usage
}

// EventKind enumerates stream events.
type EventKind int

const (
	EventTextDelta EventKind = iota + 1
	EventToolCalls
	EventDone
	EventError
	// EventReset drops everything emitted so far; a replay follows.
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventToolCalls:
		return "tool_calls"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one item on a stream channel.
type Event struct {
	Kind EventKind
	// Text is set on EventTextDelta.
	Text string
	// ToolCalls is set on EventToolCalls.
	ToolCalls []tools.Request
	// Response is set on EventDone and carries the accumulated text and tool calls.
	Response *Response
	// Err is set on EventError.
	Err error
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ Gateway = (*Client)(nil)

// New builds a Client from cfg.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = defaultChatTimeout
	}
	if cfg.FirstCallTimeout <= 0 {
		cfg.FirstCallTimeout = defaultFirstCallTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, http: client, logger: logger}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) timeoutFor(req Request) time.Duration {
	if len(req.Tools) > 0 {
		return c.cfg.FirstCallTimeout
	}
	return c.cfg.ChatTimeout
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
