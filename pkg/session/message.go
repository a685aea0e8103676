package session

import "time"

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types used inside tool-call turns. Plain turns carry a
// bare string content instead.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one element of a structured message body
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Message represents a single conversation turn. Content holds plain
// text; Blocks holds the structured form for turns that involve tool
// calls. Exactly one of the two is set.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	Blocks    []ContentBlock `json:"blocks,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewTextMessage creates a plain text message
func NewTextMessage(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewBlockMessage creates a structured message from content blocks
func NewBlockMessage(role string, blocks []ContentBlock) Message {
	return Message{
		Role:      role,
		Blocks:    blocks,
		Timestamp: time.Now(),
	}
}
