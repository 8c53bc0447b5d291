package types

import (
	"time"
)

// ToolResult is the outcome of one skill invocation, shaped for the composition prompt.
// Content is plain text: strings pass through, other values arrive JSON-encoded.
type ToolResult struct {
	ToolCallID string        `json:"tool_call_id"`
	Name       string        `json:"name"`
	Content    string        `json:"content,omitempty"`
	Error      string        `json:"error,omitempty"`
	Stage      string        `json:"stage,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ToMessage converts ToolResult to a Message.
func (tr ToolResult) ToMessage() Message {
	content := tr.Content
	if tr.Error != "" {
		content = "Error: " + tr.Error
		if tr.Stage != "" {
			content = "Error during " + tr.Stage + ": " + tr.Error
		}
	}
	return Message{
		Role:       RoleTool,
		Content:    content,
		Name:       tr.Name,
		ToolCallID: tr.ToolCallID,
	}
}

// IsError returns true if the tool execution failed.
func (tr ToolResult) IsError() bool {
	return tr.Error != ""
}
