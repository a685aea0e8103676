package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kischat/internal/settings"
	"kischat/pkg/session"
)

type scriptedTurn struct {
	events []Event
	turn   *Turn
	err    error
}

type fakeStreamer struct {
	turns []scriptedTurn
	calls []TurnRequest
}

func (f *fakeStreamer) StreamTurn(ctx context.Context, req TurnRequest, emit func(Event) bool) (*Turn, error) {
	f.calls = append(f.calls, req)
	if len(f.calls) > len(f.turns) {
		return nil, fmt.Errorf("no scripted turn %d", len(f.calls))
	}
	st := f.turns[len(f.calls)-1]
	for _, e := range st.events {
		if !emit(e) {
			return nil, ctx.Err()
		}
	}
	return st.turn, st.err
}

type fakeGateway struct {
	results map[string]string
	calls   []string
}

func (g *fakeGateway) ToolParams() []anthropic.ToolUnionParam { return nil }

func (g *fakeGateway) CallTool(ctx context.Context, name string, args map[string]interface{}) string {
	g.calls = append(g.calls, name)
	if result, ok := g.results[name]; ok {
		return result
	}
	return "ok"
}

type fakeSettings struct {
	s settings.Settings
}

func (f fakeSettings) Snapshot() settings.Settings { return f.s }

func demoSettings() fakeSettings {
	return fakeSettings{s: settings.Settings{
		TradingMode:     "demo",
		ClaudeModel:     "claude-sonnet-4-5-20250929",
		ClaudeMaxTokens: 4096,
	}}
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func kinds(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Kind()
	}
	return out
}

func TestLoop_PlainTurn(t *testing.T) {
	streamer := &fakeStreamer{turns: []scriptedTurn{
		{
			events: []Event{
				TextDeltaEvent{Text: "삼성전자 "},
				TextDeltaEvent{Text: "현재가입니다"},
			},
			turn: &Turn{
				StopReason: "end_turn",
				Blocks:     []session.ContentBlock{{Type: session.BlockText, Text: "삼성전자 현재가입니다"}},
			},
		},
	}}
	gateway := &fakeGateway{}
	loop := NewLoop(streamer, gateway, demoSettings(), zerolog.Nop())

	history := []session.Message{session.NewTextMessage("user", "삼성전자 현재가")}
	events := collect(loop.Run(context.Background(), history, "chat-1"))

	assert.Equal(t, []string{"text_delta", "text_delta", "done"}, kinds(events))
	assert.Empty(t, gateway.calls)

	// Model parameters and history come through unchanged
	require.Len(t, streamer.calls, 1)
	req := streamer.calls[0]
	assert.Equal(t, "claude-sonnet-4-5-20250929", req.Model)
	assert.Equal(t, 4096, req.MaxTokens)
	assert.Len(t, req.Messages, 1)
	assert.Contains(t, req.System, "모의투자(demo)")
}

func TestLoop_ToolTurn(t *testing.T) {
	toolBlocks := []session.ContentBlock{
		{Type: session.BlockText, Text: "조회하겠습니다"},
		{Type: session.BlockToolUse, ID: "tu_a", Name: "domestic_stock", Input: map[string]interface{}{"api_type": "inquire_price"}},
		{Type: session.BlockToolUse, ID: "tu_b", Name: "domestic_stock", Input: map[string]interface{}{"api_type": "inquire_balance"}},
		{Type: session.BlockToolUse, ID: "tu_c", Name: "overseas_stock", Input: nil},
	}
	streamer := &fakeStreamer{turns: []scriptedTurn{
		{
			events: []Event{
				TextDeltaEvent{Text: "조회하겠습니다"},
				ToolStartEvent{ToolName: "domestic_stock", ToolID: "tu_a"},
			},
			turn: &Turn{StopReason: StopToolUse, Blocks: toolBlocks},
		},
		{
			events: []Event{TextDeltaEvent{Text: "결과입니다"}},
			turn: &Turn{
				StopReason: "end_turn",
				Blocks:     []session.ContentBlock{{Type: session.BlockText, Text: "결과입니다"}},
			},
		},
	}}
	gateway := &fakeGateway{results: map[string]string{"domestic_stock": "시세 데이터"}}
	loop := NewLoop(streamer, gateway, demoSettings(), zerolog.Nop())

	history := []session.Message{session.NewTextMessage("user", "잔고 보여줘")}
	events := collect(loop.Run(context.Background(), history, "chat-1"))

	assert.Equal(t, []string{
		"text_delta", "tool_start",
		"tool_executing", "tool_result",
		"tool_executing", "tool_result",
		"tool_executing", "tool_result",
		"text_delta", "done",
	}, kinds(events))

	// Tool calls dispatched strictly in block order
	assert.Equal(t, []string{"domestic_stock", "domestic_stock", "overseas_stock"}, gateway.calls)

	// tool_executing/tool_result pairs carry matching ids in order
	var executing []ToolExecutingEvent
	var results []ToolResultEvent
	for _, e := range events {
		switch ev := e.(type) {
		case ToolExecutingEvent:
			executing = append(executing, ev)
		case ToolResultEvent:
			results = append(results, ev)
		}
	}
	require.Len(t, executing, 3)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"tu_a", "tu_b", "tu_c"}, []string{executing[0].ToolID, executing[1].ToolID, executing[2].ToolID})
	assert.Equal(t, []string{"tu_a", "tu_b", "tu_c"}, []string{results[0].ToolID, results[1].ToolID, results[2].ToolID})

	// Second request carries the mirrored assistant turn and one user
	// message with all tool results, in tool-call order
	require.Len(t, streamer.calls, 2)
	working := streamer.calls[1].Messages
	require.Len(t, working, 3)

	asst := working[1]
	assert.Equal(t, "assistant", asst.Role)
	require.Len(t, asst.Blocks, 4)
	assert.Equal(t, "조회하겠습니다", asst.Blocks[0].Text)
	// nil input defaults to an empty map
	assert.NotNil(t, asst.Blocks[3].Input)
	assert.Empty(t, asst.Blocks[3].Input)

	resultMsg := working[2]
	assert.Equal(t, "user", resultMsg.Role)
	require.Len(t, resultMsg.Blocks, 3)
	for i, wantID := range []string{"tu_a", "tu_b", "tu_c"} {
		assert.Equal(t, session.BlockToolResult, resultMsg.Blocks[i].Type)
		assert.Equal(t, wantID, resultMsg.Blocks[i].ToolUseID)
	}
	assert.Equal(t, "시세 데이터", resultMsg.Blocks[0].Content)
}

func TestLoop_APIError(t *testing.T) {
	streamer := &fakeStreamer{turns: []scriptedTurn{
		{err: fmt.Errorf("overloaded")},
	}}
	loop := NewLoop(streamer, &fakeGateway{}, demoSettings(), zerolog.Nop())

	events := collect(loop.Run(context.Background(), nil, "chat-1"))

	require.Len(t, events, 2)
	errEvent, ok := events[0].(ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, errEvent.Message, "Claude API error")
	assert.Contains(t, errEvent.Message, "overloaded")
	assert.Equal(t, "done", events[1].Kind())
}

func TestLoop_ErrorAfterToolTurn(t *testing.T) {
	streamer := &fakeStreamer{turns: []scriptedTurn{
		{
			turn: &Turn{StopReason: StopToolUse, Blocks: []session.ContentBlock{
				{Type: session.BlockToolUse, ID: "tu_1", Name: "domestic_stock", Input: map[string]interface{}{}},
			}},
		},
		{err: fmt.Errorf("rate limited")},
	}}
	loop := NewLoop(streamer, &fakeGateway{}, demoSettings(), zerolog.Nop())

	events := collect(loop.Run(context.Background(), nil, "chat-1"))

	// Exactly one terminal done, preceded by the error
	assert.Equal(t, []string{"tool_executing", "tool_result", "error", "done"}, kinds(events))
}

func TestLoop_Truncation(t *testing.T) {
	long := strings.Repeat("가", 12000)
	streamer := &fakeStreamer{turns: []scriptedTurn{
		{
			turn: &Turn{StopReason: StopToolUse, Blocks: []session.ContentBlock{
				{Type: session.BlockToolUse, ID: "tu_1", Name: "domestic_stock", Input: map[string]interface{}{}},
			}},
		},
		{
			turn: &Turn{StopReason: "end_turn"},
		},
	}}
	gateway := &fakeGateway{results: map[string]string{"domestic_stock": long}}
	loop := NewLoop(streamer, gateway, demoSettings(), zerolog.Nop())

	events := collect(loop.Run(context.Background(), nil, "chat-1"))

	var result ToolResultEvent
	for _, e := range events {
		if ev, ok := e.(ToolResultEvent); ok {
			result = ev
		}
	}
	assert.LessOrEqual(t, len([]rune(result.ResultPreview)), 500)

	// The stored result is bounded and carries the notice
	working := streamer.calls[1].Messages
	stored := working[len(working)-1].Blocks[0].Content
	assert.True(t, strings.HasSuffix(stored, truncationNotice))
	assert.Len(t, []rune(stored), 10000+len([]rune(truncationNotice)))
}

func TestLoop_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	streamer := &fakeStreamer{turns: []scriptedTurn{
		{
			events: []Event{TextDeltaEvent{Text: "첫"}},
			turn: &Turn{StopReason: StopToolUse, Blocks: []session.ContentBlock{
				{Type: session.BlockToolUse, ID: "tu_1", Name: "domestic_stock", Input: map[string]interface{}{}},
			}},
		},
	}}
	loop := NewLoop(streamer, &fakeGateway{}, demoSettings(), zerolog.Nop())

	ch := loop.Run(ctx, nil, "chat-1")
	<-ch // first delta
	cancel()

	// Channel closes without a terminal event reaching us
	for range ch {
	}
}

func TestTruncateResult(t *testing.T) {
	t.Run("short result unchanged", func(t *testing.T) {
		assert.Equal(t, "short", truncateResult("short"))
	})

	t.Run("exactly at the bound unchanged", func(t *testing.T) {
		s := strings.Repeat("a", 10000)
		assert.Equal(t, s, truncateResult(s))
	})

	t.Run("long result truncated with notice", func(t *testing.T) {
		s := strings.Repeat("a", 10001)
		got := truncateResult(s)
		assert.True(t, strings.HasSuffix(got, truncationNotice))
		assert.Len(t, []rune(got), 10000+len([]rune(truncationNotice)))
	})
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	assert.Len(t, []rune(preview(strings.Repeat("나", 600))), 500)
}
