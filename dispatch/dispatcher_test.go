package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/skillflow/llm"
	"github.com/BaSui01/skillflow/llm/tokenizer"
	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/testutil"
	"github.com/BaSui01/skillflow/testutil/mocks"
	"github.com/BaSui01/skillflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedModel 按阶段与技能返回预设回复
func scriptedModel(bind map[string]string, answer string) *mocks.MockProvider {
	return mocks.NewMockProvider().WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.Metadata["stage"] == "bind" {
			return testutil.ChatResponse(bind[req.Metadata["skill"]]), nil
		}
		return testutil.ChatResponse(answer), nil
	})
}

func composeRequest(t *testing.T, p *mocks.MockProvider) *llm.ChatRequest {
	t.Helper()
	for _, c := range p.Calls() {
		if c.Request.Metadata["stage"] == "compose" {
			return c.Request
		}
	}
	t.Fatal("no compose request recorded")
	return nil
}

func buildRegistry(t *testing.T, emb skills.Embedder, ds ...skills.Descriptor) *skills.Registry {
	t.Helper()
	reg, err := skills.NewFlatRegistry(context.Background(), emb, ds)
	require.NoError(t, err)
	return reg
}

func newDispatcher(t *testing.T, rt Runtime, cfg Config, opts ...Option) *Dispatcher {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	d, err := New(rt, cfg, opts...)
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Runtime{}, DefaultConfig())
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument))

	cfg := DefaultConfig()
	cfg.NoSkillPolicy = "shrug"
	_, err = New(Runtime{Model: mocks.NewMockProvider()}, cfg)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument))

	emb := mocks.NewStubEmbedder()
	reg := buildRegistry(t, emb, *slackSkill())
	_, err = New(Runtime{Model: mocks.NewMockProvider(), Registry: reg}, DefaultConfig())
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument), "非空注册表需要嵌入服务")
}

func TestHandle_SingleSkill(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	h := mocks.NewRecordingHandler(map[string]any{"ok": true})
	slack := *slackSkill()
	slack.Handler = h.Handle
	reg := buildRegistry(t, emb, slack, *calcSkill())

	model := scriptedModel(map[string]string{"send_slack_message": `{"message": "hello"}`}, "Message sent to #general.")
	cfg := DefaultConfig()
	cfg.TopK = 1
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg)

	res, err := d.HandleWithTranscript(testutil.TestContext(t), "send a slack message saying hello")
	require.NoError(t, err)
	assert.Equal(t, "Message sent to #general.", res.Answer)

	tr := res.Transcript
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "flat", tr.Mode)
	require.Len(t, tr.Outcomes, 1)
	o := tr.Outcomes[0]
	assert.Equal(t, "send_slack_message", o.Skill)
	assert.Equal(t, StatusSuccess, o.Status)
	assert.Equal(t, 1, o.Rank)
	assert.Equal(t, map[string]any{"message": "hello", "channel": "#general"}, o.Arguments)
	assert.Equal(t, res.Answer, tr.Answer)

	require.Len(t, tr.Turns, 4)
	assert.Equal(t, []TurnKind{TurnUserQuery, TurnSelection, TurnSkillOutcome, TurnFinalAnswer},
		[]TurnKind{tr.Turns[0].Kind, tr.Turns[1].Kind, tr.Turns[2].Kind, tr.Turns[3].Kind})
	assert.Equal(t, "send a slack message saying hello", tr.Turns[0].Text)
	assert.Equal(t, []string{"send_slack_message"}, tr.Turns[1].Skills)
	require.NotNil(t, tr.Turns[2].Outcome)
	assert.Equal(t, o.ToolCallID, tr.Turns[2].Outcome.ToolCallID)
	assert.Equal(t, res.Answer, tr.Turns[3].Text)

	require.Equal(t, 1, h.CallCount())
	assert.Equal(t, "hello", h.Calls()[0].Args["message"])

	req := composeRequest(t, model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, llm.RoleAssistant, req.Messages[2].Role)
	require.Len(t, req.Messages[2].ToolCalls, 1)
	assert.Equal(t, o.ToolCallID, req.Messages[2].ToolCalls[0].ID)
	assert.JSONEq(t, `{"message":"hello","channel":"#general"}`, string(req.Messages[2].ToolCalls[0].Arguments))
	assert.Equal(t, llm.RoleTool, req.Messages[3].Role)
	assert.Equal(t, o.ToolCallID, req.Messages[3].ToolCallID)
	assert.JSONEq(t, `{"ok":true}`, req.Messages[3].Content)
	assert.Equal(t, tr.ID, req.TraceID)
}

func TestHandle_MalformedBindingStillAnswers(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	h := mocks.NewRecordingHandler(5.0)
	calc := *calcSkill()
	calc.Description = "Solve math equations and arithmetic"
	calc.Handler = h.Handle
	reg := buildRegistry(t, emb, calc, *slackSkill())

	model := scriptedModel(map[string]string{"calculator": "the answer is probably two"}, "I could not work that out.")
	cfg := DefaultConfig()
	cfg.TopK = 1
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg)

	res, err := d.HandleWithTranscript(testutil.TestContext(t), "Solve 2x+3=7")
	require.NoError(t, err)
	assert.Equal(t, "I could not work that out.", res.Answer)

	require.Len(t, res.Transcript.Outcomes, 1)
	o := res.Transcript.Outcomes[0]
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, types.ErrMalformedModelResponse, o.ErrorCode)
	assert.Equal(t, StageBind, o.Stage)
	assert.Nil(t, o.Arguments)
	assert.Equal(t, 0, h.CallCount(), "绑定失败时不调用技能")

	req := composeRequest(t, model)
	assert.Contains(t, req.Messages[0].Content, "Every tool call failed")
	assert.Contains(t, req.Messages[0].Content, "calculator (bind failed)")
	tools := testutil.ToolMessages(req)
	require.Len(t, tools, 1)
	assert.True(t, strings.HasPrefix(tools[0].Content, "Error during bind: "), tools[0].Content)
}

func TestHandle_FailedSkillKeepsRankOrder(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	zapier := &skills.Descriptor{
		Name:        "trigger_zapier_webhook",
		Description: "Trigger a Zapier webhook",
		Handler:     mocks.NewRecordingHandler(nil).WithError(errors.New("zapier returned 500")).WithDelay(50 * time.Millisecond).Handle,
		Parameters:  []skills.Parameter{{Name: "event", Type: skills.ParamString, Required: true}},
	}
	slack := slackSkill()
	reg := buildRegistry(t, emb, *slack, *zapier, *calcSkill())

	model := scriptedModel(map[string]string{
		"trigger_zapier_webhook": `{"event": "deploy"}`,
		"send_slack_message":     "```json\n{\"message\": \"deployed\"}\n```",
	}, "Slack was notified, but the Zapier webhook failed.")
	cfg := DefaultConfig()
	cfg.TopK = 2
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg)

	res, err := d.HandleWithTranscript(testutil.TestContext(t), "trigger the zapier webhook and send a slack message")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Answer)

	outs := res.Transcript.Outcomes
	require.Len(t, outs, 2)
	assert.Equal(t, "trigger_zapier_webhook", outs[0].Skill)
	assert.Equal(t, StatusFailed, outs[0].Status)
	assert.Equal(t, types.ErrSkillInvocationFailed, outs[0].ErrorCode)
	assert.Equal(t, StageInvoke, outs[0].Stage)
	assert.Equal(t, map[string]any{"event": "deploy"}, outs[0].Arguments)
	assert.Equal(t, "send_slack_message", outs[1].Skill)
	assert.Equal(t, StatusSuccess, outs[1].Status)
	assert.Empty(t, outs[1].Stage)
	assert.Equal(t, []int{1, 2}, []int{outs[0].Rank, outs[1].Rank})

	req := composeRequest(t, model)
	assert.NotContains(t, req.Messages[0].Content, "Every tool call failed")
	tools := testutil.ToolMessages(req)
	require.Len(t, tools, 2)
	assert.Equal(t, "trigger_zapier_webhook", tools[0].Name)
	assert.True(t, strings.HasPrefix(tools[0].Content, "Error during invoke: "), tools[0].Content)
	assert.Contains(t, tools[0].Content, "zapier returned 500")
	assert.Equal(t, "send_slack_message", tools[1].Name)
	assert.Equal(t, "sent", tools[1].Content)
}

func TestHandle_NonPositiveTopKSkipsEmbedding(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	reg := buildRegistry(t, emb, *slackSkill())
	before := emb.TotalCalls()
	model := mocks.NewMockProvider()

	cfg := DefaultConfig()
	cfg.TopK = -1
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg)

	_, err := d.Handle(context.Background(), "send a slack message")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument))
	assert.Equal(t, before, emb.TotalCalls())
	assert.Equal(t, 0, model.CallCount())
}

func TestHandle_EmptyQuery(t *testing.T) {
	d := newDispatcher(t, Runtime{Model: mocks.NewMockProvider()}, DefaultConfig())
	_, err := d.Handle(context.Background(), "   ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument))
}

func TestHandle_EmbeddingUnavailableIsFatal(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	reg := buildRegistry(t, emb, *slackSkill())
	emb.WithError(errors.New("embedding service down"))
	model := mocks.NewMockProvider()

	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, DefaultConfig())
	_, err := d.Handle(context.Background(), "send a slack message")
	assert.True(t, types.IsErrorCode(err, types.ErrEmbeddingUnavailable))
	assert.Equal(t, 0, model.CallCount(), "选择失败不应被当作没有技能")
}

func TestHandle_NoSkillPolicies(t *testing.T) {
	t.Run("answer directly", func(t *testing.T) {
		model := mocks.NewSuccessProvider("Paris.")
		d := newDispatcher(t, Runtime{Model: model}, DefaultConfig())

		res, err := d.HandleWithTranscript(context.Background(), "capital of France?")
		require.NoError(t, err)
		assert.Equal(t, "Paris.", res.Answer)
		assert.True(t, res.Transcript.NoSkill)
		assert.Empty(t, res.Transcript.Outcomes)
		kinds := make([]TurnKind, 0, len(res.Transcript.Turns))
		for _, turn := range res.Transcript.Turns {
			kinds = append(kinds, turn.Kind)
		}
		assert.Equal(t, []TurnKind{TurnUserQuery, TurnSelection, TurnFinalAnswer}, kinds)
		assert.Empty(t, res.Transcript.Turns[1].Skills)

		req := model.LastRequest()
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[0].Content, noSkillNote)
		assert.Equal(t, "capital of France?", req.Messages[1].Content)
	})

	t.Run("cannot help", func(t *testing.T) {
		model := mocks.NewMockProvider()
		cfg := DefaultConfig()
		cfg.NoSkillPolicy = CannotHelp
		cfg.CannotHelpMessage = "no can do"
		d := newDispatcher(t, Runtime{Model: model}, cfg)

		answer, err := d.Handle(context.Background(), "capital of France?")
		require.NoError(t, err)
		assert.Equal(t, "no can do", answer)
		assert.Equal(t, 0, model.CallCount())
	})
}

func TestHandle_CompositionFailure(t *testing.T) {
	d := newDispatcher(t, Runtime{Model: mocks.NewErrorProvider(errors.New("connection reset"))}, DefaultConfig())
	_, err := d.Handle(context.Background(), "hello")
	assert.True(t, types.IsErrorCode(err, types.ErrLanguageModelUnavailable))

	d = newDispatcher(t, Runtime{Model: mocks.NewSuccessProvider("   ")}, DefaultConfig())
	_, err = d.Handle(context.Background(), "hello")
	assert.True(t, types.IsErrorCode(err, types.ErrLanguageModelUnavailable))
}

func clockSkill(name string, h skills.Handler) skills.Descriptor {
	return skills.Descriptor{Name: name, Description: "tell the time on a clock", Handler: h}
}

func TestHandle_CancellationComposesFromCompleted(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	slow := func(context.Context, map[string]any) (any, error) {
		<-block // 忽略 ctx，模拟不配合取消的技能
		return "late", nil
	}
	reg := buildRegistry(t, emb,
		clockSkill("fast_clock", mocks.NewRecordingHandler("12:00").Handle),
		clockSkill("slow_clock", slow),
	)

	model := mocks.NewSuccessProvider("It is noon.")
	cfg := DefaultConfig()
	cfg.TopK = 2
	cfg.InvocationTimeout = 0
	cfg.RequestTimeout = 150 * time.Millisecond
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg)

	res, err := d.HandleWithTranscript(context.Background(), "what time is it")
	require.NoError(t, err)
	assert.Equal(t, "It is noon.", res.Answer)

	outs := res.Transcript.Outcomes
	require.Len(t, outs, 2)
	assert.Equal(t, StatusSuccess, outs[0].Status)
	assert.Equal(t, StatusTimeout, outs[1].Status)
	assert.Equal(t, types.ErrTimeout, outs[1].ErrorCode)
}

func TestHandle_CancellationWithNothingCompleted(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	reg := buildRegistry(t, emb,
		clockSkill("slow_clock", mocks.NewRecordingHandler("late").WithDelay(5*time.Second).Handle))

	model := mocks.NewMockProvider()
	cfg := DefaultConfig()
	cfg.RequestTimeout = 100 * time.Millisecond
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg)

	_, err := d.Handle(context.Background(), "what time is it")
	assert.True(t, types.IsErrorCode(err, types.ErrTimeout), "%v", err)
	assert.Equal(t, 0, model.CallCount())
}

func TestHandle_PerSkillTimeoutAndPanic(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	stuck := clockSkill("stuck_clock", func(context.Context, map[string]any) (any, error) {
		<-block
		return nil, nil
	})
	stuck.Timeout = 50 * time.Millisecond
	broken := clockSkill("broken_clock", mocks.NewRecordingHandler(nil).WithPanic("gear slipped").Handle)
	reg := buildRegistry(t, emb, stuck, broken)

	cfg := DefaultConfig()
	cfg.TopK = 2
	d := newDispatcher(t, Runtime{Embedder: emb, Model: mocks.NewSuccessProvider("Both clocks failed.")}, cfg,
		WithSelector(skills.NewSelector(reg, emb)))

	res, err := d.HandleWithTranscript(testutil.TestContext(t), "what time is it")
	require.NoError(t, err)
	outs := res.Transcript.Outcomes
	require.Len(t, outs, 2)
	assert.Equal(t, StatusTimeout, outs[0].Status)
	assert.Contains(t, outs[0].Error, "timed out")
	assert.Equal(t, StatusFailed, outs[1].Status)
	assert.Equal(t, types.ErrSkillInvocationFailed, outs[1].ErrorCode)
	assert.Contains(t, outs[1].Error, "gear slipped")
	assert.True(t, res.Transcript.AllFailed())
}

func TestHandle_TruncatesLongResults(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	long := strings.Repeat("tick tock ", 200)
	reg := buildRegistry(t, emb, clockSkill("chatty_clock", mocks.NewRecordingHandler(long).Handle))

	model := mocks.NewSuccessProvider("ok")
	cfg := DefaultConfig()
	cfg.MaxResultTokens = 8
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg,
		WithTokenizer(tokenizer.NewEstimatorTokenizer()))

	res, err := d.HandleWithTranscript(context.Background(), "what time is it")
	require.NoError(t, err)
	assert.Equal(t, long, res.Transcript.Outcomes[0].Result, "记录保留完整结果")

	tools := testutil.ToolMessages(model.LastRequest())
	require.Len(t, tools, 1)
	assert.Less(t, len(tools[0].Content), len(long))
	assert.True(t, strings.HasSuffix(tools[0].Content, tokenizer.TruncationMarker))
}

func TestInvoke(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	h := mocks.NewRecordingHandler("sent")
	slack := *slackSkill()
	slack.Handler = h.Handle
	reg := buildRegistry(t, emb, slack, *calcSkill())
	model := mocks.NewMockProvider()
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, DefaultConfig())
	ctx := context.Background()

	res, err := d.Invoke(ctx, "SEND_SLACK_MESSAGE", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "sent", res)
	assert.Equal(t, "#general", h.Calls()[0].Args["channel"])

	_, err = d.Invoke(ctx, "send_slack_message", map[string]any{})
	assert.True(t, types.IsErrorCode(err, types.ErrMissingRequiredParameter))

	_, err = d.Invoke(ctx, "calculator", map[string]any{"a": "x", "b": 1, "operation": "add"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument))

	_, err = d.Invoke(ctx, "launch_rocket", nil)
	assert.True(t, types.IsErrorCode(err, types.ErrSkillNotFound))

	assert.Equal(t, 0, model.CallCount())
	assert.Equal(t, 0, emb.QueryCalls())
}

func TestInvoke_RateLimited(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	limited := clockSkill("clock", mocks.NewRecordingHandler("now").Handle)
	limited.RateLimit = 0.1 // 每 10 秒一次
	reg := buildRegistry(t, emb, limited)
	d := newDispatcher(t, Runtime{Embedder: emb, Model: mocks.NewMockProvider(), Registry: reg}, DefaultConfig())

	ctx := testutil.TestContextWithTimeout(t, time.Second)
	_, err := d.Invoke(ctx, "clock", nil)
	require.NoError(t, err)

	_, err = d.Invoke(ctx, "clock", nil)
	assert.True(t, types.IsErrorCode(err, types.ErrRateLimited), "%v", err)
}

type fakeRecorder struct {
	mu          sync.Mutex
	selections  []string
	bindings    []string
	invocations []string
	invokeTimes []time.Duration
	llmStages   []string
}

func (f *fakeRecorder) RecordSelection(mode, result string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selections = append(f.selections, mode+":"+result)
}

func (f *fakeRecorder) RecordBinding(skill, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings = append(f.bindings, skill+":"+result)
}

func (f *fakeRecorder) RecordInvocation(skill, status string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invocations = append(f.invocations, skill+":"+status)
	f.invokeTimes = append(f.invokeTimes, d)
}

func (f *fakeRecorder) RecordLLMRequest(_, _, stage, status string, _ time.Duration, _, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.llmStages = append(f.llmStages, stage+":"+status)
}

func TestHandle_RecordsMetrics(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	reg := buildRegistry(t, emb, *slackSkill())
	model := scriptedModel(map[string]string{"send_slack_message": `{"message": "hi"}`}, "done")
	rec := &fakeRecorder{}
	cfg := DefaultConfig()
	cfg.TopK = 1
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg, WithMetrics(rec))

	_, err := d.Handle(context.Background(), "send a slack message")
	require.NoError(t, err)

	assert.Equal(t, []string{"flat:hit"}, rec.selections)
	assert.Equal(t, []string{"send_slack_message:success"}, rec.bindings)
	assert.Equal(t, []string{"send_slack_message:success"}, rec.invocations)
	assert.Equal(t, []string{"bind:success", "compose:success"}, rec.llmStages)
}

func TestHandle_InvocationLatencyExcludesBinding(t *testing.T) {
	emb := mocks.NewStubEmbedder()
	reg := buildRegistry(t, emb, *slackSkill())
	const bindDelay = 100 * time.Millisecond
	model := mocks.NewMockProvider().WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.Metadata["stage"] == "bind" {
			time.Sleep(bindDelay)
			return testutil.ChatResponse(`{"message": "hi"}`), nil
		}
		return testutil.ChatResponse("done"), nil
	})
	rec := &fakeRecorder{}
	cfg := DefaultConfig()
	cfg.TopK = 1
	d := newDispatcher(t, Runtime{Embedder: emb, Model: model, Registry: reg}, cfg, WithMetrics(rec))

	res, err := d.HandleWithTranscript(context.Background(), "send a slack message")
	require.NoError(t, err)

	require.Len(t, rec.invokeTimes, 1)
	assert.Less(t, rec.invokeTimes[0], bindDelay)
	assert.GreaterOrEqual(t, res.Transcript.Outcomes[0].Duration, bindDelay, "单元耗时包含绑定")
}
