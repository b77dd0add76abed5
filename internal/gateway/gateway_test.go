package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finassist/finassist/internal/tools"
)

// newLocalServerOrSkip skips the test when the sandbox forbids binding a local listener.
func newLocalServerOrSkip(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("skipping test: unable to start local HTTP server: %v", r)
		}
	}()
	return httptest.NewServer(handler)
}

type backend struct {
	streamBody   string
	streamStatus int
	chatBody     string
	chatStatus   int
	chatCalls    atomic.Int32
	streamCalls  atomic.Int32
	lastBody     atomic.Value
	lastHeaders  atomic.Value
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	b.lastBody.Store(raw)
	b.lastHeaders.Store(r.Header.Clone())
	switch r.URL.Path {
	case "/chat/stream":
		b.streamCalls.Add(1)
		if b.streamStatus != 0 {
			http.Error(w, "unavailable", b.streamStatus)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, b.streamBody)
	case "/chat":
		b.chatCalls.Add(1)
		if b.chatStatus != 0 {
			http.Error(w, "chat down", b.chatStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, b.chatBody)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, b *backend, streaming bool) *Client {
	t.Helper()
	srv := newLocalServerOrSkip(t, b)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL + "/",
		APIKey:      "secret-key",
		Streaming:   streaming,
		ChatTimeout: 2 * time.Second,
		HTTPClient:  srv.Client(),
	}, nil)
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func sse(frames ...string) string {
	return strings.Join(frames, "\n\n") + "\n\n"
}

func TestBuildBodyNeverCarriesCatalogAndResults(t *testing.T) {
	catalog := tools.DefaultCatalog().All()
	results := []tools.Result{{CallID: "c1", Name: "get_loans", Output: map[string]any{"ok": true}}}

	cases := []Request{
		{Message: "hi"},
		{Message: "hi", Tools: catalog},
		{Message: "hi", ToolResults: results},
		{Message: "hi", Tools: catalog, ToolResults: results},
	}
	for _, req := range cases {
		body, err := buildBody(req)
		if len(req.Tools) > 0 && len(req.ToolResults) > 0 {
			require.ErrorIs(t, err, ErrToolsWithResults)
			continue
		}
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(body, &decoded))
		_, hasTools := decoded["available_tools"]
		_, hasResults := decoded["tool_results"]
		assert.False(t, hasTools && hasResults)
		assert.Equal(t, []any{}, decoded["chat_history"])
	}
}

func TestBuildBodyToolResultShape(t *testing.T) {
	body, err := buildBody(Request{
		Message:     "how much did I spend",
		History:     []Message{{Role: "user", Content: "hello"}},
		ToolResults: []tools.Result{{CallID: "c1", Name: "get_loans", Arguments: map[string]any{}, Output: tools.ErrorOutput{Error: "boom"}, ThoughtSignature: "sig"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"message": "how much did I spend",
		"chat_history": [{"role": "user", "content": "hello"}],
		"tool_results": [{"call_id": "c1", "name": "get_loans", "arguments": {}, "output": {"error": "boom"}, "thought_signature": "sig"}]
	}`, string(body))
}

func TestChatDecodesToolCalls(t *testing.T) {
	b := &backend{chatBody: `{
		"type": "tool_call",
		"request_id": "resp-1",
		"tool_calls": [
			{"id": "c1", "name": "get_spending_analysis", "arguments": {"period": "last_month"}},
			{"id": "c2", "name": "calculate_prepayment", "arguments": "{\"amount\": 50000}"},
			{"id": "c3", "name": "get_loans"}
		],
		"usage": {"total_tokens": 42}
	}`}
	c := newTestClient(t, b, false)

	resp, err := c.Chat(context.Background(), Request{Message: "q", Tools: tools.DefaultCatalog().All()})
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	require.Len(t, resp.ToolCalls, 3)
	assert.Equal(t, map[string]any{"period": "last_month"}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, map[string]any{"amount": float64(50000)}, resp.ToolCalls[1].Arguments)
	assert.Equal(t, map[string]any{}, resp.ToolCalls[2].Arguments)
	assert.Equal(t, 42, resp.Usage.TotalTokens)

	headers := b.lastHeaders.Load().(http.Header)
	assert.Equal(t, "secret-key", headers.Get("X-Api-Key"))
	_, err = uuid.Parse(headers.Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestChatStatusError(t *testing.T) {
	b := &backend{chatStatus: http.StatusBadGateway}
	c := newTestClient(t, b, false)
	_, err := c.Chat(context.Background(), Request{Message: "q"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestChatRequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, nil).Chat(context.Background(), Request{Message: "q"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStreamRejectsCatalogWithResults(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Streaming: true}, nil)
	_, err := c.Stream(context.Background(), Request{
		Tools:       tools.DefaultCatalog().All(),
		ToolResults: []tools.Result{{CallID: "c"}},
	})
	assert.ErrorIs(t, err, ErrToolsWithResults)
}

func TestStreamEmitsDoneOnce(t *testing.T) {
	b := &backend{streamBody: sse(
		": keep-alive",
		"event: delta\ndata: {\"content\":\"Hel\"}",
		"event: delta\ndata: {\"content\":\"lo\"}",
		"event: done\ndata: {\"request_id\":\"r-1\",\"usage\":{\"total_tokens\":5}}",
		"event: done\ndata: {\"request_id\":\"r-2\",\"usage\":{\"total_tokens\":99}}",
		"event: delta\ndata: {\"content\":\" again\"}",
	)}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi", Tools: tools.DefaultCatalog().All()})
	require.NoError(t, err)
	events := collect(t, ch)

	assert.Equal(t, []EventKind{EventTextDelta, EventTextDelta, EventDone}, kinds(events))
	done := events[2].Response
	assert.Equal(t, "r-1", done.ID)
	assert.Equal(t, "Hello", done.Text)
	assert.Equal(t, 5, done.Usage.TotalTokens)
	assert.Equal(t, int32(0), b.chatCalls.Load())
	assert.Equal(t, "text/event-stream", b.lastHeaders.Load().(http.Header).Get("Accept"))
}

func TestStreamAnnouncesToolCalls(t *testing.T) {
	b := &backend{streamBody: sse(
		"event: delta\ndata: {\"content\":\"Let me check...\"}",
		"event: tool_call\ndata: {\"tool_calls\":[{\"id\":\"c1\",\"name\":\"get_transactions\",\"arguments\":{\"period\":\"this_month\"}}]}",
		"event: done\ndata: {}",
	)}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []EventKind{EventTextDelta, EventToolCalls, EventDone}, kinds(events))
	assert.Equal(t, "get_transactions", events[1].ToolCalls[0].Name)
	require.Len(t, events[2].Response.ToolCalls, 1)
	assert.Equal(t, "c1", events[2].Response.ToolCalls[0].CallID)
	assert.NotEmpty(t, events[2].Response.ID)
}

func TestStreamFallsBackOnStatus(t *testing.T) {
	b := &backend{
		streamStatus: http.StatusServiceUnavailable,
		chatBody:     `{"type":"message","request_id":"sync-1","content":"fallback answer"}`,
	}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []EventKind{EventTextDelta, EventDone}, kinds(events))
	assert.Equal(t, "fallback answer", events[0].Text)
	assert.Equal(t, "sync-1", events[1].Response.ID)
	assert.Equal(t, "fallback answer", events[1].Response.Text)
	assert.Equal(t, int32(1), b.chatCalls.Load())
}

func TestStreamFallsBackOnMalformedFrame(t *testing.T) {
	b := &backend{
		streamBody: sse("event: delta\ndata: {not json"),
		chatBody:   `{"type":"message","content":"recovered"}`,
	}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []EventKind{EventTextDelta, EventDone}, kinds(events))
	assert.Equal(t, "recovered", events[0].Text)
}

func TestStreamFallsBackOnBackendErrorEvent(t *testing.T) {
	b := &backend{
		streamBody: sse("event: error\ndata: {\"message\":\"model overloaded\"}"),
		chatBody:   `{"type":"message","content":"ok"}`,
	}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []EventKind{EventTextDelta, EventDone}, kinds(events))
}

func TestStreamFailureAfterOutputDoesNotReplay(t *testing.T) {
	b := &backend{
		streamBody: sse("event: delta\ndata: {\"content\":\"partial\"}"),
		chatBody:   `{"type":"message","content":"should not appear"}`,
	}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []EventKind{EventTextDelta, EventError}, kinds(events))
	assert.True(t, errors.Is(events[1].Err, errStreamIncomplete))
	assert.Equal(t, int32(0), b.chatCalls.Load())
}

type failingStreamTransport struct {
	next http.RoundTripper
}

func (f failingStreamTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if strings.HasSuffix(r.URL.Path, "/chat/stream") {
		return nil, errors.New("connection refused")
	}
	return f.next.RoundTrip(r)
}

func TestStreamFallsBackOnConnectionFailure(t *testing.T) {
	b := &backend{chatBody: `{"type":"message","content":"sync"}`}
	srv := newLocalServerOrSkip(t, b)
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:    srv.URL,
		Streaming:  true,
		HTTPClient: &http.Client{Transport: failingStreamTransport{next: srv.Client().Transport}},
	}, nil)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []EventKind{EventTextDelta, EventDone}, kinds(events))
	assert.Equal(t, "sync", events[1].Response.Text)
	assert.Equal(t, int32(0), b.streamCalls.Load())
}

func TestStreamSurfacesSingleErrorWhenFallbackFails(t *testing.T) {
	b := &backend{streamStatus: http.StatusInternalServerError, chatStatus: http.StatusInternalServerError}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []EventKind{EventError}, kinds(events))
	var statusErr *StatusError
	assert.ErrorAs(t, events[0].Err, &statusErr)
}

func TestStreamingDisabledReplaysChat(t *testing.T) {
	b := &backend{chatBody: `{"type":"tool_call","tool_calls":[{"id":"c1","name":"get_loans","arguments":{}}]}`}
	c := newTestClient(t, b, false)

	ch, err := c.Stream(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []EventKind{EventToolCalls, EventDone}, kinds(events))
	assert.Equal(t, int32(0), b.streamCalls.Load())
	assert.Len(t, events[1].Response.ToolCalls, 1)
}

func TestSSEReaderJoinsDataLines(t *testing.T) {
	r := newSSEReader(strings.NewReader("event: delta\ndata: a\ndata: b\n\nevent: done\ndata: {}"))
	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "delta", frame.event)
	assert.Equal(t, "a\nb", string(frame.data))

	frame, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "done", frame.event)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBufferedStreamResetsAndReplaysAfterPartialOutput(t *testing.T) {
	b := &backend{
		streamBody: sse(
			"event: delta\ndata: {\"content\":\"Let me check\"}",
			"event: delta\ndata: {not json",
		),
		chatBody: `{"type":"message","request_id":"resp-sync","content":"You spent 12000."}`,
	}
	c := newTestClient(t, b, true)

	ch, err := c.Stream(context.Background(), Request{Message: "hi", Buffered: true})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []EventKind{EventTextDelta, EventReset, EventTextDelta, EventDone}, kinds(events))
	assert.Equal(t, "Let me check", events[0].Text)
	assert.Equal(t, "You spent 12000.", events[2].Text)
	assert.Equal(t, "resp-sync", events[3].Response.ID)
	assert.Equal(t, int32(1), b.chatCalls.Load())
}

func TestChatRejectsOversizedResponse(t *testing.T) {
	b := &backend{
		chatBody: `{"type":"message","content":"` + strings.Repeat("a", maxResponseBody) + `"}`,
	}
	c := newTestClient(t, b, false)

	_, err := c.Chat(context.Background(), Request{Message: "hi"})
	assert.ErrorContains(t, err, "failed to decode chat response")
}
