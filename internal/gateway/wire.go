package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finassist/finassist/internal/tools"
)

// wireRequest is the JSON body of /chat and /chat/stream.
type wireRequest struct {
	Message            string             `json:"message"`
	ChatHistory        []Message          `json:"chat_history"`
	Instructions       string             `json:"instructions,omitempty"`
	AvailableTools     []tools.Definition `json:"available_tools,omitempty"`
	ToolResults        []tools.Result     `json:"tool_results,omitempty"`
	PreviousResponseID string             `json:"previous_response_id,omitempty"`
}

// buildBody encodes req, enforcing that the catalog and results never travel together.
func buildBody(req Request) ([]byte, error) {
	if len(req.Tools) > 0 && len(req.ToolResults) > 0 {
		return nil, ErrToolsWithResults
	}
	history := req.History
	if history == nil {
		history = []Message{}
	}
	body, err := json.Marshal(wireRequest{
		Message:            req.Message,
		ChatHistory:        history,
		Instructions:       req.Instructions,
		AvailableTools:     req.Tools,
		ToolResults:        req.ToolResults,
		PreviousResponseID: req.PreviousResponseID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return body, nil
}

const (
	responseMessage  = "message"
	responseToolCall = "tool_call"
)

type wireResponse struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
	Usage     *Usage         `json:"usage"`
}

type wireToolCall struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Arguments        json.RawMessage `json:"arguments"`
	ThoughtSignature string          `json:"thought_signature"`
}

func (w wireResponse) toResponse() (*Response, error) {
	calls, err := decodeToolCalls(w.ToolCalls)
	if err != nil {
		return nil, err
	}
	switch w.Type {
	case "", responseMessage, responseToolCall:
	default:
		return nil, fmt.Errorf("unknown response type %q", w.Type)
	}
	return &Response{ID: w.RequestID, Text: w.Content, ToolCalls: calls, Usage: w.Usage}, nil
}

// decodeToolCalls accepts arguments as a JSON object or as a JSON-encoded string.
func decodeToolCalls(in []wireToolCall) ([]tools.Request, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]tools.Request, 0, len(in))
	for _, call := range in {
		if strings.TrimSpace(call.Name) == "" {
			return nil, fmt.Errorf("tool call %q has no name", call.ID)
		}
		args, err := decodeArguments(call.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %s: %w", call.Name, err)
		}
		out = append(out, tools.Request{CallID: call.ID, Name: call.Name, Arguments: args, ThoughtSignature: call.ThoughtSignature})
	}
	return out, nil
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(encoded) == "" {
			return map[string]any{}, nil
		}
		raw = []byte(encoded)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
