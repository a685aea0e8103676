package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"kischat/internal/settings"
	"kischat/pkg/session"
)

const (
	// Tool results are bounded before they re-enter the context window
	maxToolResultRunes = 10000
	previewRunes       = 500

	truncationNotice = "\n... (결과가 너무 길어 일부만 표시합니다)"
)

// SettingsSource provides the runtime settings snapshot a run is
// resolved against
type SettingsSource interface {
	Snapshot() settings.Settings
}

// Loop drives the agentic conversation: stream a model turn, execute
// any requested tools, feed results back, repeat until the model stops
// asking for tools. It never writes to the conversation store; the
// endpoint layer owns history.
type Loop struct {
	streamer TurnStreamer
	gateway  ToolGateway
	settings SettingsSource
	logger   zerolog.Logger
}

// NewLoop creates an agent loop
func NewLoop(streamer TurnStreamer, gateway ToolGateway, settings SettingsSource, logger zerolog.Logger) *Loop {
	return &Loop{
		streamer: streamer,
		gateway:  gateway,
		settings: settings,
		logger:   logger,
	}
}

// Run executes the agentic loop over a session history snapshot and
// returns the event stream. The channel is closed after the terminal
// done event; cancelling ctx stops the producer at its next boundary.
func (l *Loop) Run(ctx context.Context, history []session.Message, sessionID string) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		l.run(ctx, history, sessionID, events)
	}()
	return events
}

func (l *Loop) run(ctx context.Context, history []session.Message, sessionID string, events chan<- Event) {
	logger := l.logger.With().Str("session_id", sessionID).Logger()

	emit := func(e Event) bool {
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Resolve model parameters and prompt once per run
	snap := l.settings.Snapshot()
	systemPrompt := SystemPrompt(snap.TradingMode)
	tools := l.gateway.ToolParams()

	working := make([]session.Message, len(history))
	copy(working, history)

	for {
		turn, err := l.streamer.StreamTurn(ctx, TurnRequest{
			Model:     snap.ClaudeModel,
			MaxTokens: snap.ClaudeMaxTokens,
			System:    systemPrompt,
			Messages:  working,
			Tools:     tools,
		}, emit)
		if err != nil {
			if ctx.Err() != nil {
				// Client is gone, nobody is listening
				return
			}
			logger.Error().Err(err).Msg("Claude request failed")
			emit(ErrorEvent{Message: fmt.Sprintf("Claude API error: %v", err)})
			emit(DoneEvent{})
			return
		}

		if turn.StopReason != StopToolUse {
			emit(DoneEvent{})
			return
		}

		// Mirror the finalized turn into the working history
		blocks := make([]session.ContentBlock, 0, len(turn.Blocks))
		for _, b := range turn.Blocks {
			if b.Type == session.BlockToolUse && b.Input == nil {
				b.Input = map[string]interface{}{}
			}
			blocks = append(blocks, b)
		}
		working = append(working, session.NewBlockMessage(session.RoleAssistant, blocks))

		// Execute tool calls sequentially, preserving block order.
		// Trading tools are order-sensitive; no parallel dispatch.
		results := make([]session.ContentBlock, 0)
		for _, b := range blocks {
			if b.Type != session.BlockToolUse {
				continue
			}

			if !emit(ToolExecutingEvent{ToolName: b.Name, ToolID: b.ID, Input: b.Input}) {
				return
			}

			result := truncateResult(l.gateway.CallTool(ctx, b.Name, b.Input))

			if !emit(ToolResultEvent{ToolName: b.Name, ToolID: b.ID, ResultPreview: preview(result)}) {
				return
			}

			results = append(results, session.ContentBlock{
				Type:      session.BlockToolResult,
				ToolUseID: b.ID,
				Content:   result,
			})
		}

		// One user message carries all results from this turn
		working = append(working, session.NewBlockMessage(session.RoleUser, results))
	}
}

// truncateResult bounds a tool result, appending a notice when content
// was dropped
func truncateResult(s string) string {
	r := []rune(s)
	if len(r) <= maxToolResultRunes {
		return s
	}
	return string(r[:maxToolResultRunes]) + truncationNotice
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes])
}
