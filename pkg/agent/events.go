package agent

// Event is one unit of the server-to-client streaming protocol. The
// concrete type determines the SSE event kind; the struct itself is the
// JSON payload.
type Event interface {
	Kind() string
}

// TextDeltaEvent carries an incremental piece of assistant text
type TextDeltaEvent struct {
	Text string `json:"text"`
}

func (TextDeltaEvent) Kind() string { return "text_delta" }

// ToolStartEvent signals that the model opened a tool-use block
type ToolStartEvent struct {
	ToolName string `json:"tool_name"`
	ToolID   string `json:"tool_id"`
}

func (ToolStartEvent) Kind() string { return "tool_start" }

// ToolExecutingEvent signals that a tool call is being dispatched
type ToolExecutingEvent struct {
	ToolName string                 `json:"tool_name"`
	ToolID   string                 `json:"tool_id"`
	Input    map[string]interface{} `json:"input"`
}

func (ToolExecutingEvent) Kind() string { return "tool_executing" }

// ToolResultEvent carries a preview of a completed tool call
type ToolResultEvent struct {
	ToolName      string `json:"tool_name"`
	ToolID        string `json:"tool_id"`
	ResultPreview string `json:"result_preview"`
}

func (ToolResultEvent) Kind() string { return "tool_result" }

// ErrorEvent reports a fatal request-level model failure
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Kind() string { return "error" }

// DoneEvent terminates the stream. Every run emits exactly one.
type DoneEvent struct{}

func (DoneEvent) Kind() string { return "done" }
