package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/skillflow/llm"
	"github.com/BaSui01/skillflow/llm/tokenizer"
	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "skillflow/dispatch"

// DefaultCannotHelpMessage 是 cannot_help 策略的默认回复
const DefaultCannotHelpMessage = "Sorry, none of my skills can help with that request."

// NoSkillPolicy 决定没有选中任何技能时的行为
type NoSkillPolicy string

const (
	AnswerDirectly NoSkillPolicy = "answer_directly" // 仅凭查询让模型作答
	CannotHelp     NoSkillPolicy = "cannot_help"     // 返回固定的无法帮助回复，不调用模型
)

// Runtime 是进程级的显式上下文，每个进程创建一次
type Runtime struct {
	Embedder skills.Embedder
	Model    llm.Provider
	Registry *skills.Registry
}

// Config 控制一次请求的选择、并发、超时与组合行为
type Config struct {
	TopK              int
	GroupTopK         int
	MaxConcurrency    int
	InvocationTimeout time.Duration // 技能未声明 Timeout 时使用，0 表示不限
	RequestTimeout    time.Duration // 整个请求的超时，0 表示只受调用方 ctx 约束
	CompositionGrace  time.Duration // 请求已结束但有结果时，组合阶段的宽限时间
	NoSkillPolicy     NoSkillPolicy
	CannotHelpMessage string
	MaxResultTokens   int

	// 组合阶段的模型参数
	Model       string
	Temperature float32
	MaxTokens   int

	// 参数绑定阶段的模型参数；Model 为空时沿用组合阶段的模型
	Binder BinderConfig
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		TopK:              3,
		GroupTopK:         1,
		MaxConcurrency:    4,
		InvocationTimeout: 30 * time.Second,
		RequestTimeout:    2 * time.Minute,
		CompositionGrace:  10 * time.Second,
		NoSkillPolicy:     AnswerDirectly,
		CannotHelpMessage: DefaultCannotHelpMessage,
		MaxResultTokens:   1024,
		Temperature:       0.3,
		MaxTokens:         1024,
		Binder:            BinderConfig{MaxTokens: 512},
	}
}

func (c Config) withDefaults() (Config, error) {
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.GroupTopK <= 0 {
		c.GroupTopK = 1
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.CompositionGrace <= 0 {
		c.CompositionGrace = 10 * time.Second
	}
	switch c.NoSkillPolicy {
	case "":
		c.NoSkillPolicy = AnswerDirectly
	case AnswerDirectly, CannotHelp:
	default:
		return c, types.Errorf(types.ErrInvalidArgument, "unknown no-skill policy %q", c.NoSkillPolicy)
	}
	if c.CannotHelpMessage == "" {
		c.CannotHelpMessage = DefaultCannotHelpMessage
	}
	if c.Binder.Model == "" {
		c.Binder.Model = c.Model
	}
	return c, nil
}

// Recorder 汇总调度过程的指标，由 metrics.Collector 实现
type Recorder interface {
	skills.SelectionRecorder
	LLMRecorder
	RecordBinding(skill, result string)
	RecordInvocation(skill, status string, duration time.Duration)
}

// Result 是 HandleWithTranscript 的返回值
type Result struct {
	Answer     string      `json:"answer"`
	Transcript *Transcript `json:"transcript"`
}

// Dispatcher 编排选择 → 绑定 → 调用 → 组合。构建后可被并发使用，请求之间不共享状态。
type Dispatcher struct {
	rt        Runtime
	cfg       Config
	logger    *zap.Logger
	metrics   Recorder
	tokenizer tokenizer.Tokenizer
	selector  *skills.Selector
	binder    *Binder
	limiters  *limiterSet
	tracer    trace.Tracer
}

// Option 配置 Dispatcher
type Option func(*Dispatcher)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(rec Recorder) Option {
	return func(d *Dispatcher) { d.metrics = rec }
}

// WithTokenizer 设置截断技能结果所用的分词器
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(d *Dispatcher) { d.tokenizer = t }
}

// WithBinder 替换默认的参数绑定器
func WithBinder(b *Binder) Option {
	return func(d *Dispatcher) { d.binder = b }
}

// WithSelector 替换默认的选择器；此时 Runtime.Registry 与 Runtime.Embedder 不再用于选择
func WithSelector(s *skills.Selector) Option {
	return func(d *Dispatcher) { d.selector = s }
}

// New 创建 Dispatcher
func New(rt Runtime, cfg Config, opts ...Option) (*Dispatcher, error) {
	if rt.Model == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "runtime language model is required")
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		rt:       rt,
		cfg:      cfg,
		logger:   zap.NewNop(),
		limiters: newLimiterSet(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("component", "dispatcher"))

	if d.selector == nil {
		if rt.Registry.Len() > 0 && rt.Embedder == nil {
			return nil, types.NewError(types.ErrInvalidArgument, "runtime embedder is required for a non-empty registry")
		}
		selOpts := []skills.SelectorOption{
			skills.WithGroupTopK(cfg.GroupTopK),
			skills.WithSelectorLogger(d.logger),
		}
		if d.metrics != nil {
			selOpts = append(selOpts, skills.WithSelectionRecorder(d.metrics))
		}
		d.selector = skills.NewSelector(rt.Registry, rt.Embedder, selOpts...)
	}
	if d.binder == nil {
		var binderOpts []BinderOption
		if d.metrics != nil {
			binderOpts = append(binderOpts, WithBinderRecorder(d.metrics))
		}
		d.binder = NewBinder(rt.Model, cfg.Binder, d.logger, binderOpts...)
	}
	if d.tokenizer == nil {
		d.tokenizer = tokenizer.GetTokenizerOrEstimator(cfg.Model)
	}
	return d, nil
}

// Registry 返回选择所用的注册表
func (d *Dispatcher) Registry() *skills.Registry { return d.selector.Registry() }

// Config 返回生效的配置
func (d *Dispatcher) Config() Config { return d.cfg }

// Handle 处理一次查询并返回最终回答
func (d *Dispatcher) Handle(ctx context.Context, query string) (string, error) {
	res, err := d.HandleWithTranscript(ctx, query)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// HandleWithTranscript 与 Handle 相同，同时返回完整的调度记录
func (d *Dispatcher) HandleWithTranscript(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "query must not be empty")
	}
	if d.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()
	}

	tr := newTranscript(query)
	tr.Mode = string(d.Registry().Mode())

	ctx, span := d.tracer.Start(ctx, "dispatch.handle", trace.WithAttributes(
		attribute.String("transcript.id", tr.ID),
		attribute.String("registry.mode", tr.Mode),
	))
	defer span.End()

	res, err := d.handle(ctx, tr)
	tr.Duration = time.Since(tr.StartedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("request failed",
			zap.String("transcript_id", tr.ID),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err),
			zap.Duration("duration", tr.Duration))
		return nil, err
	}

	d.logger.Info("request handled",
		zap.String("transcript_id", tr.ID),
		zap.Int("skills", len(tr.Outcomes)),
		zap.Bool("no_skill", tr.NoSkill),
		zap.Duration("duration", tr.Duration))
	return res, nil
}

func (d *Dispatcher) handle(ctx context.Context, tr *Transcript) (*Result, error) {
	matches, err := d.selectSkills(ctx, tr.Query)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Skill.Name
	}
	tr.recordSelection(names)

	if len(matches) == 0 {
		tr.NoSkill = true
		if d.cfg.NoSkillPolicy == CannotHelp {
			tr.recordAnswer(d.cfg.CannotHelpMessage)
			return &Result{Answer: tr.Answer, Transcript: tr}, nil
		}
	} else if completed := d.runUnits(ctx, tr, matches); completed == 0 && ctx.Err() != nil {
		return nil, types.WrapError(ctx.Err(), types.ErrTimeout, "request ended before any skill completed")
	}

	composeCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		composeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), d.cfg.CompositionGrace)
		defer cancel()
	}
	answer, err := d.compose(composeCtx, tr)
	if err != nil {
		return nil, err
	}
	tr.recordAnswer(answer)
	return &Result{Answer: answer, Transcript: tr}, nil
}

func (d *Dispatcher) selectSkills(ctx context.Context, query string) ([]skills.Match, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.select")
	defer span.End()

	matches, err := d.selector.SelectScored(ctx, query, d.cfg.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("skills.selected", len(matches)))
	return matches, nil
}

// runUnits 并发执行每个技能的「绑定 + 调用」单元，结果按名次写入 tr.Outcomes。
// ctx 结束时不再等待未完成的单元，它们保留 timeout 结果。返回已完成的单元数。
func (d *Dispatcher) runUnits(ctx context.Context, tr *Transcript, matches []skills.Match) int {
	var mu sync.Mutex
	outcomes := make([]Outcome, len(matches))
	finished := make([]bool, len(matches))
	for i, m := range matches {
		outcomes[i] = Outcome{
			ToolCallID: "call_" + uuid.NewString(),
			Skill:      m.Skill.Name,
			Group:      m.Group,
			Rank:       m.Rank,
			Distance:   m.Distance,
			Status:     StatusTimeout,
			Error:      "request ended before the skill finished",
			ErrorCode:  types.ErrTimeout,
		}
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.MaxConcurrency)
	allDone := make(chan struct{})
	go func() {
		defer close(allDone)
		for i := range matches {
			mu.Lock()
			pending := outcomes[i]
			mu.Unlock()
			g.Go(func() error {
				o, ok := d.runUnit(ctx, tr.Query, matches[i], pending)
				if ok {
					mu.Lock()
					outcomes[i], finished[i] = o, true
					mu.Unlock()
				}
				return nil // 单个技能失败不影响其他单元
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
		d.logger.Warn("request ended with skills in flight", zap.String("transcript_id", tr.ID))
	}

	mu.Lock()
	defer mu.Unlock()
	tr.recordOutcomes(append([]Outcome(nil), outcomes...))
	completed := 0
	for _, f := range finished {
		if f {
			completed++
		}
	}
	return completed
}

// runUnit 执行单个技能。返回 false 表示单元因请求结束而被放弃。
func (d *Dispatcher) runUnit(ctx context.Context, query string, m skills.Match, o Outcome) (Outcome, bool) {
	ctx, span := d.tracer.Start(ctx, "dispatch.skill", trace.WithAttributes(
		attribute.String("skill.name", m.Skill.Name),
		attribute.String("skill.group", m.Group),
		attribute.Int("skill.rank", m.Rank),
	))
	defer span.End()

	if ctx.Err() != nil {
		return o, false
	}

	start := time.Now()
	args, err := d.binder.Bind(ctx, query, m.Skill)
	d.recordBinding(m.Skill.Name, err)
	if err != nil {
		o.Stage = StageBind
	} else {
		o.Arguments = args
		invokeStart := time.Now()
		var result any
		result, err = d.invoke(ctx, m.Skill, args)
		d.recordInvocation(m.Skill.Name, err, time.Since(invokeStart))
		if err != nil {
			o.Stage = StageInvoke
		} else {
			o.Result = result
			o.Status, o.Error, o.ErrorCode = StatusSuccess, "", ""
		}
	}
	o.Duration = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return o, false
		}
		o.Status = StatusFailed
		if types.IsErrorCode(err, types.ErrTimeout) {
			o.Status = StatusTimeout
		}
		o.Error = err.Error()
		o.ErrorCode = types.GetErrorCode(err)
		d.logger.Warn("skill failed",
			zap.String("skill", m.Skill.Name),
			zap.Int("rank", m.Rank),
			zap.String("code", string(o.ErrorCode)),
			zap.Error(err))
	}
	span.SetAttributes(attribute.String("skill.status", string(o.Status)))
	return o, true
}

func (d *Dispatcher) compose(ctx context.Context, tr *Transcript) (string, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.compose")
	defer span.End()

	req := &llm.ChatRequest{
		TraceID:     tr.ID,
		Model:       d.cfg.Model,
		Messages:    tr.Messages(d.tokenizer, d.cfg.MaxResultTokens),
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
		Metadata:    map[string]string{"stage": "compose"},
	}

	start := time.Now()
	resp, err := d.rt.Model.Completion(ctx, req)
	d.recordLLM(req, resp, err, time.Since(start))
	if err == nil {
		var answer string
		if answer, err = resp.Content(); err == nil && answer != "" {
			return answer, nil
		}
		if err == nil {
			err = types.NewError(types.ErrLanguageModelUnavailable, "model returned an empty answer")
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if ctx.Err() != nil {
		return "", types.WrapError(err, types.ErrTimeout, "answer composition interrupted")
	}
	return "", types.WrapError(err, types.ErrLanguageModelUnavailable, "answer composition failed")
}

// Invoke 按名称（大小写不敏感）直接调用技能，跳过选择与模型绑定；参数仍按 schema 校验
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	skill, ok := d.Registry().Lookup(name)
	if !ok {
		return nil, types.Errorf(types.ErrSkillNotFound, "skill %q not found", name)
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.invoke", trace.WithAttributes(attribute.String("skill.name", skill.Name)))
	defer span.End()

	normalized, err := d.binder.Normalize(skill, args)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	start := time.Now()
	result, err := d.invoke(ctx, skill, normalized)
	d.recordInvocation(skill.Name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

// ====== 指标 ======

func (d *Dispatcher) recordBinding(skill string, err error) {
	if d.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = strings.ToLower(string(types.GetErrorCode(err)))
	}
	d.metrics.RecordBinding(skill, result)
}

func (d *Dispatcher) recordInvocation(skill string, err error, duration time.Duration) {
	if d.metrics == nil {
		return
	}
	status := string(StatusSuccess)
	switch {
	case types.IsErrorCode(err, types.ErrTimeout):
		status = string(StatusTimeout)
	case err != nil:
		status = string(StatusFailed)
	}
	d.metrics.RecordInvocation(skill, status, duration)
}

func (d *Dispatcher) recordLLM(req *llm.ChatRequest, resp *llm.ChatResponse, err error, duration time.Duration) {
	if d.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	var prompt, completion int
	if resp != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	d.metrics.RecordLLMRequest(d.rt.Model.Name(), req.Model, "compose", status, duration, prompt, completion)
}
