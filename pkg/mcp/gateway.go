package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// errNotConnected is fed back to the model as tool output instead of
// failing the turn.
const errNotConnected = "Error: MCP server not connected"

// ModeSource reports the current trading mode. The settings store
// satisfies it.
type ModeSource interface {
	TradingMode() string
}

// Gateway maintains the connection to the KIS trading MCP server,
// caches its tool catalog and executes tool calls. Every call is forced
// into the current trading mode before dispatch.
type Gateway struct {
	client rpcClient
	mode   ModeSource
	logger zerolog.Logger

	mu        sync.RWMutex
	connected bool
	tools     []Tool
	schemas   map[string]*gojsonschema.Schema
}

// NewGateway creates a gateway that launches the MCP server as a child
// process speaking JSON-RPC over stdio
func NewGateway(command string, args []string, mode ModeSource, logger zerolog.Logger) *Gateway {
	return &Gateway{
		client: newStdioClient(command, args),
		mode:   mode,
		logger: logger,
	}
}

// newGatewayWithClient is used by tests to inject a fake transport
func newGatewayWithClient(client rpcClient, mode ModeSource, logger zerolog.Logger) *Gateway {
	return &Gateway{
		client: client,
		mode:   mode,
		logger: logger,
	}
}

// Connect establishes the MCP session and fetches the tool catalog.
// The caller decides whether a failure is fatal; the gateway itself
// stays usable in disconnected (degraded) state.
func (g *Gateway) Connect(ctx context.Context) error {
	if err := g.client.Start(ctx); err != nil {
		g.setConnected(false)
		return fmt.Errorf("failed to connect to MCP server: %w", err)
	}

	g.setConnected(true)

	if err := g.RefreshCatalog(ctx); err != nil {
		g.setConnected(false)
		return err
	}

	g.logger.Info().Int("tools", len(g.Tools())).Msg("Connected to MCP server")
	return nil
}

// Disconnect tears down the MCP session. Teardown errors are logged and
// swallowed; connected state and catalog are always cleared.
func (g *Gateway) Disconnect() {
	if err := g.client.Stop(); err != nil {
		g.logger.Warn().Err(err).Msg("Error disconnecting from MCP server")
	}

	g.mu.Lock()
	g.connected = false
	g.tools = nil
	g.schemas = nil
	g.mu.Unlock()
}

// RefreshCatalog replaces the cached tool catalog wholesale from the
// server's current listing
func (g *Gateway) RefreshCatalog(ctx context.Context) error {
	tools, err := g.client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list MCP tools: %w", err)
	}

	schemas := make(map[string]*gojsonschema.Schema, len(tools))
	for _, t := range tools {
		if len(t.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(t.InputSchema))
		if err != nil {
			g.logger.Warn().Err(err).Str("tool", t.Name).Msg("Unparseable tool input schema, skipping validation")
			continue
		}
		schemas[t.Name] = schema
	}

	g.mu.Lock()
	g.tools = tools
	g.schemas = schemas
	g.mu.Unlock()

	return nil
}

// Connected reports whether the MCP session is established
func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

func (g *Gateway) setConnected(v bool) {
	g.mu.Lock()
	g.connected = v
	g.mu.Unlock()
}

// Tools returns the cached tool catalog
func (g *Gateway) Tools() []Tool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Tool, len(g.tools))
	copy(out, g.tools)
	return out
}

// ToolNames returns the names of all cached tools
func (g *Gateway) ToolNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.tools))
	for _, t := range g.tools {
		names = append(names, t.Name)
	}
	return names
}

// ToolParams projects the cached catalog into the Claude tool format.
// Pure projection, no I/O.
func (g *Gateway) ToolParams() []anthropic.ToolUnionParam {
	g.mu.RLock()
	defer g.mu.RUnlock()

	params := make([]anthropic.ToolUnionParam, 0, len(g.tools))
	for _, t := range g.tools {
		var schema struct {
			Properties interface{} `json:"properties"`
			Required   []string    `json:"required"`
		}
		if len(t.InputSchema) > 0 {
			_ = json.Unmarshal(t.InputSchema, &schema)
		}

		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}
		params = append(params, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return params
}

// CallTool executes a tool and returns the result as a string. Failures
// are returned as error strings, never propagated: tool errors are
// conversational data the model is expected to react to.
func (g *Gateway) CallTool(ctx context.Context, name string, arguments map[string]interface{}) string {
	if !g.Connected() {
		return errNotConnected
	}

	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	// Safety: a demo-mode process must never place a live call, no
	// matter what parameters the model supplied.
	EnforceTradingMode(arguments, g.mode.TradingMode())

	if problems := g.validateArguments(name, arguments); len(problems) > 0 {
		return fmt.Sprintf("Error: invalid arguments for tool %s: %s", name, strings.Join(problems, "; "))
	}

	g.logger.Info().Str("tool", name).Interface("args", arguments).Msg("Calling MCP tool")

	result, err := g.client.CallTool(ctx, name, arguments)
	if err != nil {
		g.logger.Error().Err(err).Str("tool", name).Msg("MCP tool call failed")
		return fmt.Sprintf("Error calling tool %s: %v", name, err)
	}

	return flattenResult(result)
}

// EnforceTradingMode forces the env_dv call parameter into the current
// trading mode. In demo mode a "real" value is overridden to "demo" on
// every call, unconditionally; in real mode parameters pass through.
func EnforceTradingMode(arguments map[string]interface{}, mode string) {
	if mode != "demo" {
		return
	}
	params, ok := arguments["params"].(map[string]interface{})
	if !ok {
		return
	}
	if params["env_dv"] == "real" {
		params["env_dv"] = "demo"
	}
}

func (g *Gateway) validateArguments(name string, arguments map[string]interface{}) []string {
	g.mu.RLock()
	schema := g.schemas[name]
	g.mu.RUnlock()

	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(arguments))
	if err != nil {
		// Arguments that cannot even be loaded are left to the server
		return nil
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems
}

// flattenResult joins the textual content items of a tool result with
// newlines; a result without content is stringified directly.
func flattenResult(result *callToolResult) string {
	if result == nil {
		return ""
	}

	if len(result.Content) > 0 {
		parts := make([]string, 0, len(result.Content))
		for _, item := range result.Content {
			if item.Text != "" {
				parts = append(parts, item.Text)
			} else {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
		}
		return strings.Join(parts, "\n")
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(raw)
}
