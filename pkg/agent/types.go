package agent

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	"kischat/pkg/session"
)

// StopToolUse is the finalize reason indicating the model requested
// tool execution.
const StopToolUse = "tool_use"

// TurnRequest holds the parameters for one streaming model turn
type TurnRequest struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []session.Message
	Tools     []anthropic.ToolUnionParam
}

// Turn is the finalized, authoritative model message for one turn. The
// incremental delta stream is for UI responsiveness only; control
// decisions are made on the Turn.
type Turn struct {
	StopReason string
	Blocks     []session.ContentBlock
}

// TurnStreamer opens one streaming model turn. Incremental events
// (tool_start, text_delta) are pushed through emit in production order;
// emit returns false when the consumer is gone, at which point the
// streamer should stop. The finalized turn is returned after the stream
// completes.
type TurnStreamer interface {
	StreamTurn(ctx context.Context, req TurnRequest, emit func(Event) bool) (*Turn, error)
}

// ToolGateway is the tool-execution boundary the loop dispatches to
type ToolGateway interface {
	ToolParams() []anthropic.ToolUnionParam
	CallTool(ctx context.Context, name string, args map[string]interface{}) string
}
