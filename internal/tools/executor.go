package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finassist/finassist/internal/audit"
	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/security"
)

// Request is a tool call emitted by the model.
type Request struct {
	// CallID correlates the result with the request.
	CallID string `json:"id"`
	// Name is the requested function.
	Name string `json:"name"`
	// Arguments are loosely typed and decoded lazily.
	Arguments map[string]any `json:"arguments"`
	// ThoughtSignature is an opaque backend token echoed into the result.
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

// Result is the outcome of a tool call. Failures are data, never errors.
type Result struct {
	// CallID echoes the request.
	CallID string `json:"call_id"`
	// Name is the function name.
	Name string `json:"name"`
	// Arguments are the raw arguments that were used.
	Arguments map[string]any `json:"arguments"`
	// Output is the success payload or an ErrorOutput.
	Output any `json:"output"`
	// ThoughtSignature is echoed back to backends that require it.
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

// ErrorOutput is the output shape of a failed call.
type ErrorOutput struct {
	Error string `json:"error"`
}

// IsError reports whether the call failed.
func (r Result) IsError() bool {
	_, ok := r.Output.(ErrorOutput)
	return ok
}

// ErrorMessage returns the failure message or an empty string.
func (r Result) ErrorMessage() string {
	if out, ok := r.Output.(ErrorOutput); ok {
		return out.Error
	}
	return ""
}

// Executor runs tool calls against the read-only data layer.
type Executor struct {
	// Catalog lists the callable tools.
	Catalog *Catalog
	// Data is the read-only data layer.
	Data finance.Reader
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records tool calls.
	Audit audit.Logger
	// Now overrides the clock.
	Now func() time.Time
}

// Execute runs req for fam. It never panics and never returns an error:
// every failure is reported as an ErrorOutput.
func (e *Executor) Execute(ctx context.Context, fam finance.Family, req Request) (result Result) {
	result = Result{CallID: req.CallID, Name: req.Name, Arguments: req.Arguments, ThoughtSignature: req.ThoughtSignature}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result.Output = ErrorOutput{Error: fmt.Sprintf("%s failed: internal error", req.Name)}
			if e.Logger != nil {
				e.Logger.Error("tool panicked", "tool", req.Name, "call_id", req.CallID, "panic", fmt.Sprint(r))
			}
		}
		e.record(ctx, fam, req, result, time.Since(started))
	}()

	if fam.ID == "" {
		result.Output = ErrorOutput{Error: "family context is required"}
		return result
	}
	def, ok := e.lookup(req.Name)
	if !ok {
		result.Output = ErrorOutput{Error: fmt.Sprintf("unknown function %s", req.Name)}
		return result
	}
	if missing := missingRequired(def, req.Arguments); missing != "" {
		result.Output = ErrorOutput{Error: fmt.Sprintf("missing required argument %q for %s", missing, req.Name)}
		return result
	}
	call, err := Decode(req.Name, req.Arguments)
	if err != nil {
		result.Output = ErrorOutput{Error: fmt.Sprintf("invalid arguments for %s: %v", req.Name, err)}
		return result
	}
	output, err := e.dispatch(ctx, fam, call)
	if err != nil {
		result.Output = ErrorOutput{Error: err.Error()}
		return result
	}
	result.Output = output
	return result
}

func (e *Executor) lookup(name string) (Definition, bool) {
	if e.Catalog == nil {
		return Definition{}, false
	}
	return e.Catalog.Lookup(name)
}

func (e *Executor) dispatch(ctx context.Context, fam finance.Family, call Call) (any, error) {
	if e.Data == nil {
		return nil, fmt.Errorf("data layer is not configured")
	}
	switch c := call.(type) {
	case BalanceSheetArgs:
		return e.balanceSheet(ctx, fam, c)
	case TransactionsArgs:
		return e.transactions(ctx, fam, c)
	case InvestmentsArgs:
		return e.investments(ctx, fam)
	case LoansArgs:
		return e.loans(ctx, fam)
	case UpcomingEMIsArgs:
		return e.upcomingEMIs(ctx, fam, c)
	case SpendingAnalysisArgs:
		return e.spendingAnalysis(ctx, fam, c)
	case PrepaymentArgs:
		return e.prepayment(ctx, fam, c)
	default:
		return nil, fmt.Errorf("unknown function %s", call.ToolName())
	}
}

func (e *Executor) now(fam finance.Family) time.Time {
	if e.Now != nil {
		return fam.In(e.Now())
	}
	return fam.Now()
}

func (e *Executor) record(ctx context.Context, fam finance.Family, req Request, result Result, elapsed time.Duration) {
	status := "ok"
	if result.IsError() {
		status = "error"
	}
	if e.Logger != nil {
		e.Logger.Info("tool call",
			"tool", req.Name,
			"call_id", req.CallID,
			"family_id", fam.ID,
			"status", status,
			"elapsed_ms", elapsed.Milliseconds(),
			"args", security.RedactArguments(req.Arguments),
		)
	}
	if e.Audit != nil {
		e.Audit.Record(ctx, audit.Event{
			Type:     "tool_call",
			Tool:     req.Name,
			CallID:   req.CallID,
			FamilyID: fam.ID,
			Status:   status,
			Reason:   result.ErrorMessage(),
		})
	}
}
