package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// JSON-RPC messages
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Tool is a tool descriptor as listed by the MCP server
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// callToolResult is the content-bearing result of tools/call
type callToolResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// rpcClient is the transport boundary between the gateway and the
// remote tool server
type rpcClient interface {
	Start(ctx context.Context) error
	Stop() error
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*callToolResult, error)
}

const requestTimeout = 30 * time.Second

// stdioClient speaks MCP JSON-RPC over the stdin/stdout of a spawned
// server process
type stdioClient struct {
	command string
	args    []string

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Scanner
	id      int
	pending map[int]chan *rpcResponse
}

func newStdioClient(command string, args []string) *stdioClient {
	return &stdioClient{
		command: command,
		args:    args,
		pending: make(map[int]chan *rpcResponse),
	}
}

// Start spawns the server process and performs the initialize handshake
func (c *stdioClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.process != nil {
		c.mu.Unlock()
		return nil
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.process = cmd
	c.stdin = stdin
	c.stdout = bufio.NewScanner(stdout)
	c.mu.Unlock()

	// Listen for responses separately
	go c.listen()

	return c.initialize(ctx)
}

func (c *stdioClient) listen() {
	for c.stdout.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(c.stdout.Bytes(), &resp); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal MCP response")
			continue
		}

		if id, ok := resp.ID.(float64); ok {
			c.mu.Lock()
			ch, exists := c.pending[int(id)]
			if exists {
				delete(c.pending, int(id))
				ch <- &resp
			}
			c.mu.Unlock()
		}
	}
}

func (c *stdioClient) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "kischat",
			"version": "0.1.0",
		},
	}
	_, err := c.call(ctx, "initialize", params)
	return err
}

func (c *stdioClient) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	if c.stdin == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("MCP client not started")
	}
	c.id++
	id := c.id
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	stdin := c.stdin
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	if _, err := io.WriteString(stdin, string(data)+"\n"); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error (%d): %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("MCP request timeout")
	}
}

// ListTools fetches the tool catalog from the MCP server
func (c *stdioClient) ListTools(ctx context.Context) ([]Tool, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var listResult struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listResult); err != nil {
		return nil, err
	}

	return listResult.Tools, nil
}

// CallTool executes a tool on the MCP server
func (c *stdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*callToolResult, error) {
	callParams := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}

	resp, err := c.call(ctx, "tools/call", callParams)
	if err != nil {
		return nil, err
	}

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Stop kills the server process
func (c *stdioClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.process != nil && c.process.Process != nil {
		err := c.process.Process.Kill()
		c.process = nil
		c.stdin = nil
		return err
	}
	return nil
}
