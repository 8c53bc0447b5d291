package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/skillflow/llm"
	"github.com/BaSui01/skillflow/skills"
)

const bindSystemPrompt = `You extract arguments for a single tool call.
Reply with exactly one JSON object whose keys are the parameter names of the tool schema.
Omit parameters the request does not mention. Do not add keys that are not in the schema.
Do not wrap the object in prose or code fences.`

const composeSystemPrompt = `You are a helpful assistant. Answer the user's request.
Tool calls made on the user's behalf and their results follow the request.
Ground the answer in tool results when they are present, and say plainly when a tool failed.`

const noSkillNote = `No tool matched this request. Answer from your own knowledge, or say that you cannot help.`

// bindMessages 构造参数抽取提示词：system 指令 + 含技能 schema 与原始查询的 user 消息
func bindMessages(query string, skill *skills.Descriptor) []llm.Message {
	schema, _ := json.MarshalIndent(skill.Schema(), "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s\n", skill.Name)
	fmt.Fprintf(&b, "Description: %s\n", skill.Description)
	fmt.Fprintf(&b, "Parameter schema:\n%s\n\n", schema)
	fmt.Fprintf(&b, "User request:\n%s", query)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: bindSystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// failureNote 在所有技能都失败时附加到组合提示词
func failureNote(outcomes []Outcome) string {
	var b strings.Builder
	b.WriteString("Every tool call failed. Explain the failure to the user instead of inventing data.\nFailures:")
	for _, o := range outcomes {
		if o.Stage != "" {
			fmt.Fprintf(&b, "\n- %s (%s failed): %s", o.Skill, o.Stage, o.Error)
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s", o.Skill, o.Error)
	}
	return b.String()
}
