package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/skillflow/llm"
	"github.com/BaSui01/skillflow/llm/tokenizer"
	"github.com/BaSui01/skillflow/types"
	"github.com/google/uuid"
)

// OutcomeStatus 是单个技能单元的最终状态
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
	StatusTimeout OutcomeStatus = "timeout" // 请求结束时仍未完成，或单次调用超时
)

// Stage 标记技能单元失败在哪一步
type Stage string

const (
	StageBind   Stage = "bind"
	StageInvoke Stage = "invoke"
)

// Outcome 记录一个被选中技能的绑定与调用结果
type Outcome struct {
	ToolCallID string          `json:"tool_call_id"`
	Skill      string          `json:"skill"`
	Group      string          `json:"group,omitempty"`
	Rank       int             `json:"rank"`
	Distance   float64         `json:"distance"`
	Arguments  map[string]any  `json:"arguments,omitempty"`
	Result     any             `json:"result,omitempty"`
	Status     OutcomeStatus   `json:"status"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  types.ErrorCode `json:"error_code,omitempty"`
	Stage      Stage           `json:"stage,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// Failed 报告该技能是否没有产出结果
func (o Outcome) Failed() bool { return o.Status != StatusSuccess }

// TurnKind 是记录中一轮的类型
type TurnKind string

const (
	TurnUserQuery    TurnKind = "user_query"
	TurnSelection    TurnKind = "selection"
	TurnSkillOutcome TurnKind = "skill_outcome"
	TurnFinalAnswer  TurnKind = "final_answer"
)

// Turn 是记录中的一轮。Text 用于 user_query / final_answer，
// Skills 是 selection 的技能名（按名次），Outcome 仅 skill_outcome 有值。
type Turn struct {
	Kind    TurnKind `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Skills  []string `json:"skills,omitempty"`
	Outcome *Outcome `json:"outcome,omitempty"`
}

// Transcript 是一次请求的有序记录：查询、选择与绑定决策、调用结果、最终回答。
// Turns 按发生顺序排列；Outcomes 是其中技能结果的按名次视图。
type Transcript struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Mode      string        `json:"mode,omitempty"`
	Turns     []Turn        `json:"turns"`
	Outcomes  []Outcome     `json:"outcomes"`
	NoSkill   bool          `json:"no_skill,omitempty"`
	Answer    string        `json:"answer,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func newTranscript(query string) *Transcript {
	return &Transcript{
		ID:        uuid.NewString(),
		Query:     query,
		Turns:     []Turn{{Kind: TurnUserQuery, Text: query}},
		Outcomes:  []Outcome{},
		StartedAt: time.Now(),
	}
}

func (t *Transcript) recordSelection(names []string) {
	t.Turns = append(t.Turns, Turn{Kind: TurnSelection, Skills: names})
}

// recordOutcomes 设置 Outcomes 并按名次追加 skill_outcome 轮次
func (t *Transcript) recordOutcomes(outcomes []Outcome) {
	t.Outcomes = outcomes
	for i := range outcomes {
		o := outcomes[i]
		t.Turns = append(t.Turns, Turn{Kind: TurnSkillOutcome, Outcome: &o})
	}
}

func (t *Transcript) recordAnswer(answer string) {
	t.Answer = answer
	t.Turns = append(t.Turns, Turn{Kind: TurnFinalAnswer, Text: answer})
}

// AllFailed 报告是否至少尝试了一个技能且全部失败
func (t *Transcript) AllFailed() bool {
	if len(t.Outcomes) == 0 {
		return false
	}
	for _, o := range t.Outcomes {
		if !o.Failed() {
			return false
		}
	}
	return true
}

// Messages 把记录渲染为组合阶段的对话：
// system 指令、用户查询、携带全部 ToolCalls 的 assistant 消息、按名次排列的 tool 消息。
// 每条结果最多保留 maxResultTokens 个 token（<=0 表示不截断）。
func (t *Transcript) Messages(tok tokenizer.Tokenizer, maxResultTokens int) []llm.Message {
	system := composeSystemPrompt
	switch {
	case len(t.Outcomes) == 0:
		system += "\n\n" + noSkillNote
	case t.AllFailed():
		system += "\n\n" + failureNote(t.Outcomes)
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: t.Query},
	}
	if len(t.Outcomes) == 0 {
		return msgs
	}

	calls := make([]llm.ToolCall, len(t.Outcomes))
	for i, o := range t.Outcomes {
		args, err := json.Marshal(o.Arguments)
		if err != nil || o.Arguments == nil {
			args = []byte("{}")
		}
		calls[i] = llm.ToolCall{ID: o.ToolCallID, Name: o.Skill, Arguments: args}
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, ToolCalls: calls})

	for _, o := range t.Outcomes {
		tr := types.ToolResult{ToolCallID: o.ToolCallID, Name: o.Skill, Duration: o.Duration}
		if o.Failed() {
			tr.Error, tr.Stage = o.Error, string(o.Stage)
		} else {
			tr.Content = truncateResult(tok, renderResult(o.Result), maxResultTokens)
		}
		msgs = append(msgs, tr.ToMessage())
	}
	return msgs
}

// renderResult 字符串原样输出，其他值编码为 JSON
func renderResult(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func truncateResult(tok tokenizer.Tokenizer, s string, maxTokens int) string {
	if tok == nil || maxTokens <= 0 {
		return s
	}
	out, _, err := tok.Truncate(s, maxTokens)
	if err != nil {
		return s
	}
	return out
}
