package assistant

import (
	"strings"

	"github.com/finassist/finassist/internal/gateway"
	"github.com/finassist/finassist/internal/tools"
)

// Window returns the last n non-empty messages, oldest first.
func Window(history []gateway.Message, n int) []gateway.Message {
	if n <= 0 {
		return []gateway.Message{}
	}
	kept := make([]gateway.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}

// Turn is the record of one finished turn.
type Turn struct {
	ID          string
	ResponseID  string
	Fragments   []string
	Text        string
	ToolResults []tools.Result
	State       State
	Err         error
}

// Collect drains a Respond channel into a Turn.
func Collect(events <-chan Event) Turn {
	var (
		out  = Turn{State: AwaitingFirstResponse}
		text strings.Builder
	)
	for ev := range events {
		switch ev.Kind {
		case EventDelta:
			out.Fragments = append(out.Fragments, ev.Text)
			text.WriteString(ev.Text)
		case EventToolResult:
			if ev.ToolResult != nil {
				out.ToolResults = append(out.ToolResults, *ev.ToolResult)
			}
		case EventComplete:
			if c := ev.Completion; c != nil {
				out.ID = c.TurnID
				out.ResponseID = c.ResponseID
				out.State = c.State
			}
		case EventError:
			out.Err = ev.Err
			out.State = Failed
		}
	}
	out.Text = text.String()
	return out
}
