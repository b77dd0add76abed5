package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

const (
	sseDelta    = "delta"
	sseToolCall = "tool_call"
	sseDone     = "done"
	sseError    = "error"
)

var errStreamIncomplete = errors.New("stream ended before done")

// BackendError is an error event reported by the backend inside a stream.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return "gateway stream error"
	}
	return "gateway stream error: " + e.Message
}

// MalformedStreamError wraps an undecodable stream frame.
type MalformedStreamError struct {
	Event string
	Err   error
}

func (e *MalformedStreamError) Error() string {
	return fmt.Sprintf("malformed %s event: %v", e.Event, e.Err)
}

func (e *MalformedStreamError) Unwrap() error {
	return e.Err
}

// Stream starts one round trip and returns its events. Request validation
// errors are returned directly; transport failures arrive as events after the
// synchronous fallback has been tried. Once output has been emitted, the
// fallback runs only for Buffered requests and is preceded by EventReset.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	body, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	events := make(chan Event)
	go c.run(ctx, req, body, events)
	return events, nil
}

// emitter tracks whether anything reached the consumer, which decides if a
// synchronous replay is still safe.
type emitter struct {
	ctx  context.Context
	out  chan<- Event
	sent bool
}

func (e *emitter) emit(ev Event) bool {
	select {
	case e.out <- ev:
		e.sent = true
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (c *Client) run(ctx context.Context, req Request, body []byte, out chan<- Event) {
	defer close(out)
	em := &emitter{ctx: ctx, out: out}

	if !c.cfg.Streaming {
		c.replay(ctx, req, body, em)
		return
	}
	err := c.stream(ctx, req, body, em)
	if err == nil || ctx.Err() != nil {
		return
	}
	if em.sent {
		if !req.Buffered {
			c.log().Warn("gateway stream failed after output was forwarded", "error", err)
			em.emit(Event{Kind: EventError, Err: err})
			return
		}
		if !em.emit(Event{Kind: EventReset}) {
			return
		}
	}
	c.log().Warn("gateway stream failed, falling back to chat", "error", err)
	c.replay(ctx, req, body, em)
}

// replay performs /chat and presents its response as stream events.
func (c *Client) replay(ctx context.Context, req Request, body []byte, em *emitter) {
	resp, err := c.chat(ctx, req, body)
	if err != nil {
		em.emit(Event{Kind: EventError, Err: err})
		return
	}
	if resp.Text != "" && !em.emit(Event{Kind: EventTextDelta, Text: resp.Text}) {
		return
	}
	if len(resp.ToolCalls) > 0 && !em.emit(Event{Kind: EventToolCalls, ToolCalls: resp.ToolCalls}) {
		return
	}
	em.emit(Event{Kind: EventDone, Response: resp})
}

// stream reads /chat/stream until the first done frame. A nil error means the
// consumer saw Done or went away.
func (c *Client) stream(ctx context.Context, req Request, body []byte, em *emitter) error {
	streamCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(req))
	defer cancel()

	requestID := uuid.NewString()
	httpReq, err := c.newRequest(streamCtx, streamPath, requestID, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	acc := &Response{ID: requestID}
	var text strings.Builder
	reader := newSSEReader(resp.Body)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return errStreamIncomplete
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}

		switch frame.event {
		case sseDelta:
			var payload struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(frame.data, &payload); err != nil {
				return &MalformedStreamError{Event: frame.event, Err: err}
			}
			if payload.Content == "" {
				continue
			}
			text.WriteString(payload.Content)
			if !em.emit(Event{Kind: EventTextDelta, Text: payload.Content}) {
				return nil
			}
		case sseToolCall:
			var payload struct {
				ToolCalls []wireToolCall `json:"tool_calls"`
			}
			if err := json.Unmarshal(frame.data, &payload); err != nil {
				return &MalformedStreamError{Event: frame.event, Err: err}
			}
			calls, err := decodeToolCalls(payload.ToolCalls)
			if err != nil {
				return &MalformedStreamError{Event: frame.event, Err: err}
			}
			if len(calls) == 0 {
				continue
			}
			acc.ToolCalls = append(acc.ToolCalls, calls...)
			if !em.emit(Event{Kind: EventToolCalls, ToolCalls: calls}) {
				return nil
			}
		case sseDone:
			var payload struct {
				RequestID string `json:"request_id"`
				Usage     *Usage `json:"usage"`
			}
			if len(frame.data) > 0 {
				if err := json.Unmarshal(frame.data, &payload); err != nil {
					return &MalformedStreamError{Event: frame.event, Err: err}
				}
			}
			if payload.RequestID != "" {
				acc.ID = payload.RequestID
			}
			acc.Text = text.String()
			acc.Usage = payload.Usage
			c.log().Debug("gateway stream completed",
				"request_id", acc.ID,
				"tool_calls", len(acc.ToolCalls),
				"text_len", len(acc.Text),
			)
			// Frames after the first done are never read.
			em.emit(Event{Kind: EventDone, Response: acc})
			return nil
		case sseError:
			var payload struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(frame.data, &payload)
			return &BackendError{Message: payload.Message}
		}
	}
}
