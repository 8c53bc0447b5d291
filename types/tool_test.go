package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolResult_ToMessage(t *testing.T) {
	tests := []struct {
		name string
		tr   ToolResult
		want string
	}{
		{"plain text", ToolResult{Name: "slack", Content: "sent"}, "sent"},
		{"json content", ToolResult{Name: "calc", Content: `{"result":4}`}, `{"result":4}`},
		{"error", ToolResult{Name: "calc", Error: "boom"}, "Error: boom"},
		{"error with stage", ToolResult{Name: "calc", Error: "bad json", Stage: "bind"}, "Error during bind: bad json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.tr.ToMessage()
			assert.Equal(t, RoleTool, msg.Role)
			assert.Equal(t, tt.want, msg.Content)
			assert.Equal(t, tt.tr.Name, msg.Name)
			assert.Equal(t, tt.tr.IsError(), tt.tr.Error != "")
		})
	}
}

func TestToolResult_MarshalsNonJSONContent(t *testing.T) {
	tr := ToolResult{ToolCallID: "call_1", Name: "slack", Content: "sent"}
	data, err := json.Marshal(tr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content":"sent"`)
}
