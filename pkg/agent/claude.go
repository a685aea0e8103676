package agent

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"kischat/pkg/session"
)

// ClaudeStreamer implements TurnStreamer against the Anthropic API
type ClaudeStreamer struct {
	client anthropic.Client
}

// NewClaudeStreamer creates a streamer authenticated with the given key
func NewClaudeStreamer(apiKey string) *ClaudeStreamer {
	return &ClaudeStreamer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// StreamTurn opens one streaming turn, pushing deltas and tool-use
// block starts through emit as the model produces them, and returns the
// finalized message once the stream completes.
func (s *ClaudeStreamer) StreamTurn(ctx context.Context, req TurnRequest, emit func(Event) bool) (*Turn, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toMessageParams(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = req.Tools
	}

	stream := s.client.Messages.NewStreaming(ctx, params)
	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, err
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				if !emit(ToolStartEvent{ToolName: block.Name, ToolID: block.ID}) {
					return nil, ctx.Err()
				}
			}
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				if !emit(TextDeltaEvent{Text: delta.Text}) {
					return nil, ctx.Err()
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return finalizeTurn(&message), nil
}

// finalizeTurn converts the accumulated message into the authoritative
// block list the loop acts on
func finalizeTurn(message *anthropic.Message) *Turn {
	turn := &Turn{
		StopReason: string(message.StopReason),
	}

	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Blocks = append(turn.Blocks, session.ContentBlock{
				Type: session.BlockText,
				Text: b.Text,
			})
		case anthropic.ToolUseBlock:
			// Non-object inputs default to an empty map
			input := map[string]interface{}{}
			_ = json.Unmarshal([]byte(b.JSON.Input.Raw()), &input)
			turn.Blocks = append(turn.Blocks, session.ContentBlock{
				Type:  session.BlockToolUse,
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
		}
	}

	return turn
}

// toMessageParams translates session history into the Anthropic turn
// format
func toMessageParams(messages []session.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		if len(msg.Blocks) > 0 {
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
			for _, b := range msg.Blocks {
				switch b.Type {
				case session.BlockText:
					blocks = append(blocks, anthropic.NewTextBlock(b.Text))
				case session.BlockToolUse:
					blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, b.Input, b.Name))
				case session.BlockToolResult:
					blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, false))
				}
			}
			params = append(params, anthropic.MessageParam{
				Role:    anthropic.MessageParamRole(msg.Role),
				Content: blocks,
			})
			continue
		}

		if msg.Role == session.RoleUser {
			params = append(params, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		} else {
			params = append(params, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		}
	}

	return params
}
