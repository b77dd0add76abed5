// Package assistant drives one conversation turn across the gateway and the tool executor.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/gateway"
	"github.com/finassist/finassist/internal/tools"
)

// DefaultHistoryLimit is the number of prior messages sent with each call.
const DefaultHistoryLimit = 20

var errNoDone = errors.New("gateway stream closed without a done event")

// State is the orchestrator state of a turn.
type State int

const (
	AwaitingFirstResponse State = iota
	ExecutingTools
	AwaitingFollowUp
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingFirstResponse:
		return "awaiting_first_response"
	case ExecutingTools:
		return "executing_tools"
	case AwaitingFollowUp:
		return "awaiting_follow_up"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind enumerates what a turn emits to its caller.
type EventKind int

const (
	EventDelta EventKind = iota + 1
	EventToolResult
	EventComplete
	EventError
)

// Event is one item on the channel returned by Respond.
type Event struct {
	Kind EventKind
	// Text is set on EventDelta.
	Text string
	// ToolResult is set on EventToolResult.
	ToolResult *tools.Result
	// Completion is set on EventComplete.
	Completion *Completion
	// Err is set on EventError.
	Err error
}

// Completion closes a successful turn. Text repeats what was streamed and is
// meant for persistence, not for display.
type Completion struct {
	TurnID      string
	ResponseID  string
	Text        string
	ToolResults []tools.Result
	State       State
}

// TurnRequest is the caller input for one turn.
type TurnRequest struct {
	// Message is the user question.
	Message string
	// History is the full prior conversation, oldest first.
	History []gateway.Message
	// PreviousResponseID links to the previous turn, if any.
	PreviousResponseID string
}

// ToolRunner executes tool calls. *tools.Executor implements it.
type ToolRunner interface {
	Execute(ctx context.Context, fam finance.Family, req tools.Request) tools.Result
}

// Orchestrator runs turns. It holds no per-turn state and may be shared.
type Orchestrator struct {
	// Gateway is the model backend.
	Gateway gateway.Gateway
	// Tools executes requested calls.
	Tools ToolRunner
	// Catalog is offered on the first call of every turn.
	Catalog *tools.Catalog
	// Instructions renders the system prompt for a family.
	Instructions func(finance.Family) string
	// HistoryLimit caps the history window; zero means DefaultHistoryLimit.
	HistoryLimit int
	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Respond starts a turn. The channel carries deltas and tool results, then
// exactly one Complete or Error event, and is closed afterwards.
func (o *Orchestrator) Respond(ctx context.Context, fam finance.Family, req TurnRequest) <-chan Event {
	out := make(chan Event)
	t := &turn{
		o:     o,
		id:    uuid.NewString(),
		fam:   fam,
		req:   req,
		ctx:   ctx,
		out:   out,
		state: AwaitingFirstResponse,
	}
	go t.run()
	return out
}

type turn struct {
	o     *Orchestrator
	id    string
	fam   finance.Family
	req   TurnRequest
	ctx   context.Context
	out   chan<- Event
	state State
}

func (t *turn) run() {
	defer close(t.out)
	if t.o.Gateway == nil {
		t.fail(errors.New("no gateway configured"))
		return
	}
	logger := t.logger()
	history := Window(t.req.History, t.o.historyLimit())
	instructions := ""
	if t.o.Instructions != nil {
		instructions = t.o.Instructions(t.fam)
	}

	first := gateway.Request{
		Message:            t.req.Message,
		Instructions:       instructions,
		History:            history,
		PreviousResponseID: t.req.PreviousResponseID,
		Buffered:           true,
	}
	if t.o.Catalog != nil {
		first.Tools = t.o.Catalog.All()
	}
	resp, buffered, err := t.round(first, false)
	if err != nil {
		t.fail(err)
		return
	}

	if len(resp.ToolCalls) == 0 {
		if buffered == "" {
			buffered = resp.Text
		}
		if buffered != "" && !t.emit(Event{Kind: EventDelta, Text: buffered}) {
			return
		}
		t.complete(resp.ID, buffered, nil)
		return
	}

	if buffered != "" {
		logger.Debug("discarding first-round text", "turn_id", t.id, "chars", len(buffered))
	}
	t.state = ExecutingTools
	results := make([]tools.Result, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		result := t.execute(call)
		results = append(results, result)
		if !t.emit(Event{Kind: EventToolResult, ToolResult: &result}) {
			return
		}
	}

	t.state = AwaitingFollowUp
	follow := gateway.Request{
		Message:            t.req.Message,
		Instructions:       instructions,
		ToolResults:        results,
		History:            history,
		PreviousResponseID: resp.ID,
	}
	final, streamed, err := t.round(follow, true)
	if err != nil {
		t.fail(err)
		return
	}
	if len(final.ToolCalls) > 0 {
		logger.Warn("ignoring tool calls requested in follow-up", "turn_id", t.id, "count", len(final.ToolCalls))
	}
	if streamed == "" && final.Text != "" {
		streamed = final.Text
		if !t.emit(Event{Kind: EventDelta, Text: streamed}) {
			return
		}
	}
	t.complete(final.ID, streamed, results)
}

// round consumes one gateway stream. With forward set, text deltas go to the
// caller as they arrive; otherwise they are only accumulated.
func (t *turn) round(req gateway.Request, forward bool) (*gateway.Response, string, error) {
	ctx, cancel := context.WithCancel(t.ctx)
	defer cancel()

	events, err := t.o.Gateway.Stream(ctx, req)
	if err != nil {
		return nil, "", err
	}
	var (
		text      strings.Builder
		announced []tools.Request
	)
	for ev := range events {
		switch ev.Kind {
		case gateway.EventTextDelta:
			text.WriteString(ev.Text)
			if forward && !t.emit(Event{Kind: EventDelta, Text: ev.Text}) {
				return nil, "", t.ctx.Err()
			}
		case gateway.EventToolCalls:
			announced = append(announced, ev.ToolCalls...)
		case gateway.EventReset:
			text.Reset()
			announced = nil
		case gateway.EventDone:
			resp := ev.Response
			if resp == nil {
				resp = &gateway.Response{}
			}
			if len(resp.ToolCalls) == 0 && len(announced) > 0 {
				resp.ToolCalls = announced
			}
			return resp, text.String(), nil
		case gateway.EventError:
			return nil, "", ev.Err
		}
	}
	if err := t.ctx.Err(); err != nil {
		return nil, "", err
	}
	return nil, "", errNoDone
}

func (t *turn) execute(call tools.Request) tools.Result {
	if t.o.Tools == nil {
		return tools.Result{CallID: call.CallID, Name: call.Name, Arguments: call.Arguments, Output: tools.ErrorOutput{Error: "tool execution is not configured"}}
	}
	return t.o.Tools.Execute(t.ctx, t.fam, call)
}

func (t *turn) complete(responseID, text string, results []tools.Result) {
	t.state = Complete
	t.logger().Info("turn complete", "turn_id", t.id, "family_id", t.fam.ID, "response_id", responseID, "tool_calls", len(results))
	t.emit(Event{Kind: EventComplete, Completion: &Completion{
		TurnID:      t.id,
		ResponseID:  responseID,
		Text:        text,
		ToolResults: results,
		State:       t.state,
	}})
}

func (t *turn) fail(err error) {
	previous := t.state
	t.state = Failed
	if t.ctx.Err() != nil {
		return
	}
	t.logger().Error("turn failed", "turn_id", t.id, "family_id", t.fam.ID, "state", previous.String(), "error", err)
	t.emit(Event{Kind: EventError, Err: err})
}

func (t *turn) emit(ev Event) bool {
	select {
	case t.out <- ev:
		return true
	case <-t.ctx.Done():
		return false
	}
}

func (t *turn) logger() *slog.Logger {
	if t.o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.o.Logger
}

func (o *Orchestrator) historyLimit() int {
	if o.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return o.HistoryLimit
}
