package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/gateway"
	"github.com/finassist/finassist/internal/tools"
)

var family = finance.Family{ID: "fam-1", Currency: "INR"}

// scriptedGateway replays one prepared event list per Stream call.
type scriptedGateway struct {
	mu        sync.Mutex
	rounds    [][]gateway.Event
	streamErr error
	requests  []gateway.Request
}

func (g *scriptedGateway) Chat(context.Context, gateway.Request) (*gateway.Response, error) {
	return nil, errors.New("chat not expected")
}

func (g *scriptedGateway) Stream(_ context.Context, req gateway.Request) (<-chan gateway.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.streamErr != nil {
		return nil, g.streamErr
	}
	if len(g.rounds) == 0 {
		return nil, errors.New("unexpected gateway call")
	}
	events := g.rounds[0]
	g.rounds = g.rounds[1:]
	ch := make(chan gateway.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (g *scriptedGateway) calls() []gateway.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.Request(nil), g.requests...)
}

type recordingRunner struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingRunner) Execute(_ context.Context, _ finance.Family, req tools.Request) tools.Result {
	r.mu.Lock()
	r.names = append(r.names, req.Name)
	r.mu.Unlock()
	if req.Name == "explode" {
		return tools.Result{CallID: req.CallID, Name: req.Name, Output: tools.ErrorOutput{Error: "unknown function explode"}}
	}
	return tools.Result{CallID: req.CallID, Name: req.Name, Arguments: req.Arguments, Output: map[string]any{"total": "12000"}}
}

func delta(text string) gateway.Event {
	return gateway.Event{Kind: gateway.EventTextDelta, Text: text}
}

func done(id string, calls ...tools.Request) gateway.Event {
	return gateway.Event{Kind: gateway.EventDone, Response: &gateway.Response{ID: id, ToolCalls: calls}}
}

func newOrchestrator(g gateway.Gateway, runner ToolRunner) *Orchestrator {
	return &Orchestrator{
		Gateway:      g,
		Tools:        runner,
		Catalog:      tools.DefaultCatalog(),
		Instructions: func(f finance.Family) string { return "answer in " + f.Currency },
	}
}

func respond(t *testing.T, o *Orchestrator, req TurnRequest) Turn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return Collect(o.Respond(ctx, family, req))
}

func TestToolTurnSurfacesOnlyFollowUpText(t *testing.T) {
	g := &scriptedGateway{rounds: [][]gateway.Event{
		{
			delta("Let me check..."),
			{Kind: gateway.EventToolCalls, ToolCalls: []tools.Request{{CallID: "c1", Name: "get_spending_analysis"}}},
			done("resp-1", tools.Request{CallID: "c1", Name: "get_spending_analysis", Arguments: map[string]any{"period": "this_month"}}),
		},
		{delta("You spent "), delta("₹12,000."), done("resp-2")},
	}}
	runner := &recordingRunner{}
	turn := respond(t, newOrchestrator(g, runner), TurnRequest{Message: "How much did I spend?"})

	require.NoError(t, turn.Err)
	assert.Equal(t, "You spent ₹12,000.", turn.Text)
	assert.Equal(t, []string{"You spent ", "₹12,000."}, turn.Fragments)
	assert.Equal(t, Complete, turn.State)
	assert.Equal(t, "resp-2", turn.ResponseID)
	assert.NotEmpty(t, turn.ID)
	require.Len(t, turn.ToolResults, 1)
	assert.Equal(t, "c1", turn.ToolResults[0].CallID)

	calls := g.calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[0].Tools, 7)
	assert.Empty(t, calls[0].ToolResults)
	assert.Equal(t, "answer in INR", calls[0].Instructions)
	assert.Empty(t, calls[1].Tools)
	require.Len(t, calls[1].ToolResults, 1)
	assert.Equal(t, "resp-1", calls[1].PreviousResponseID)
	assert.Equal(t, "How much did I spend?", calls[1].Message)
}

func TestPlainTurnFlushesBufferedText(t *testing.T) {
	g := &scriptedGateway{rounds: [][]gateway.Event{
		{delta("Hello"), delta(" there"), done("resp-1")},
	}}
	o := newOrchestrator(g, &recordingRunner{})
	events := o.Respond(context.Background(), family, TurnRequest{Message: "hi"})

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, EventDelta, got[0].Kind)
	assert.Equal(t, "Hello there", got[0].Text)
	assert.Equal(t, EventComplete, got[1].Kind)
	assert.Equal(t, "Hello there", got[1].Completion.Text)
	assert.Empty(t, got[1].Completion.ToolResults)
	assert.Len(t, g.calls(), 1)
}

func TestPlainTurnUsesDoneTextWhenNothingStreamed(t *testing.T) {
	g := &scriptedGateway{rounds: [][]gateway.Event{
		{{Kind: gateway.EventDone, Response: &gateway.Response{ID: "r", Text: "only in done"}}},
	}}
	turn := respond(t, newOrchestrator(g, &recordingRunner{}), TurnRequest{Message: "hi"})
	assert.Equal(t, "only in done", turn.Text)
}

func TestToolsRunSequentiallyInOrder(t *testing.T) {
	g := &scriptedGateway{rounds: [][]gateway.Event{
		{done("r1",
			tools.Request{CallID: "a", Name: "get_loans"},
			tools.Request{CallID: "b", Name: "explode"},
			tools.Request{CallID: "c", Name: "get_investments"},
		)},
		{delta("done"), done("r2")},
	}}
	runner := &recordingRunner{}
	turn := respond(t, newOrchestrator(g, runner), TurnRequest{Message: "q"})

	require.NoError(t, turn.Err)
	assert.Equal(t, []string{"get_loans", "explode", "get_investments"}, runner.names)
	require.Len(t, turn.ToolResults, 3)
	assert.Equal(t, "a", turn.ToolResults[0].CallID)
	assert.True(t, turn.ToolResults[1].IsError())
	assert.Equal(t, "c", turn.ToolResults[2].CallID)
	assert.Len(t, g.calls()[1].ToolResults, 3)
}

func TestGatewayErrorYieldsSingleErrorEvent(t *testing.T) {
	boom := errors.New("backend unreachable")
	g := &scriptedGateway{rounds: [][]gateway.Event{
		{delta("partial"), {Kind: gateway.EventError, Err: boom}},
	}}
	o := newOrchestrator(g, &recordingRunner{})

	var got []Event
	for ev := range o.Respond(context.Background(), family, TurnRequest{Message: "q"}) {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, EventError, got[0].Kind)
	assert.ErrorIs(t, got[0].Err, boom)
	assert.Len(t, g.calls(), 1)
}

func TestFollowUpFailureFailsTurn(t *testing.T) {
	g := &scriptedGateway{rounds: [][]gateway.Event{
		{done("r1", tools.Request{CallID: "a", Name: "get_loans"})},
		{},
	}}
	turn := respond(t, newOrchestrator(g, &recordingRunner{}), TurnRequest{Message: "q"})
	assert.Equal(t, Failed, turn.State)
	assert.ErrorIs(t, turn.Err, errNoDone)
	assert.Len(t, turn.ToolResults, 1)
	assert.Empty(t, turn.Text)
}

func TestStreamStartErrorFailsTurn(t *testing.T) {
	g := &scriptedGateway{streamErr: gateway.ErrToolsWithResults}
	turn := respond(t, newOrchestrator(g, &recordingRunner{}), TurnRequest{Message: "q"})
	assert.ErrorIs(t, turn.Err, gateway.ErrToolsWithResults)
	assert.Equal(t, Failed, turn.State)
}

func TestFollowUpToolCallsAreIgnored(t *testing.T) {
	g := &scriptedGateway{rounds: [][]gateway.Event{
		{done("r1", tools.Request{CallID: "a", Name: "get_loans"})},
		{delta("Your EMI is ₹25,000."), done("r2", tools.Request{CallID: "b", Name: "get_loans"})},
	}}
	runner := &recordingRunner{}
	turn := respond(t, newOrchestrator(g, runner), TurnRequest{Message: "q"})
	require.NoError(t, turn.Err)
	assert.Equal(t, []string{"get_loans"}, runner.names)
	assert.Len(t, g.calls(), 2)
	assert.Equal(t, "Your EMI is ₹25,000.", turn.Text)
}

func TestHistoryIsWindowed(t *testing.T) {
	var history []gateway.Message
	for i := 0; i < 30; i++ {
		history = append(history, gateway.Message{Role: "user", Content: string(rune('a' + i%26))})
	}
	history = append(history, gateway.Message{Role: "assistant", Content: "  "})

	g := &scriptedGateway{rounds: [][]gateway.Event{{delta("ok"), done("r")}}}
	o := newOrchestrator(g, &recordingRunner{})
	o.HistoryLimit = 5
	respond(t, o, TurnRequest{Message: "q", History: history})

	sent := g.calls()[0].History
	require.Len(t, sent, 5)
	assert.Equal(t, history[25].Content, sent[0].Content)
	assert.Equal(t, history[29].Content, sent[4].Content)
}

func TestWindow(t *testing.T) {
	history := []gateway.Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: ""},
		{Role: "user", Content: "two"},
		{Role: "assistant", Content: "three"},
	}
	assert.Equal(t, []gateway.Message{{Role: "user", Content: "two"}, {Role: "assistant", Content: "three"}}, Window(history, 2))
	assert.Len(t, Window(history, 20), 3)
	assert.Empty(t, Window(history, 0))
	assert.Empty(t, Window(nil, 20))
}
