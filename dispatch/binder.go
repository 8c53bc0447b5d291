package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/skillflow/llm"
	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// LLMRecorder 记录模型调用指标，由 metrics.Collector 实现
type LLMRecorder interface {
	RecordLLMRequest(provider, model, stage, status string, duration time.Duration, promptTokens, completionTokens int)
}

// BinderConfig 控制参数抽取时的模型调用
type BinderConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Binder 借助语言模型把查询转换为符合技能参数 schema 的参数表。
// 模型输出一律经过结构化解码与 schema 校验，解析失败只会表现为 MalformedModelResponse。
type Binder struct {
	provider llm.Provider
	cfg      BinderConfig
	logger   *zap.Logger
	recorder LLMRecorder

	schemas sync.Map // *skills.Descriptor -> *jsonschema.Schema
}

// BinderOption 配置 Binder
type BinderOption func(*Binder)

// WithBinderRecorder 设置模型调用指标
func WithBinderRecorder(rec LLMRecorder) BinderOption {
	return func(b *Binder) { b.recorder = rec }
}

// NewBinder 创建 Binder
func NewBinder(provider llm.Provider, cfg BinderConfig, logger *zap.Logger, opts ...BinderOption) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Binder{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "argument_binder")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind 为 skill 抽取参数。没有参数的技能直接返回空参数表，不调用模型。
func (b *Binder) Bind(ctx context.Context, query string, skill *skills.Descriptor) (map[string]any, error) {
	if skill == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "skill is required")
	}
	if len(skill.Parameters) == 0 {
		return map[string]any{}, nil
	}
	if b.provider == nil {
		return nil, types.NewError(types.ErrLanguageModelUnavailable, "no language model configured").WithSkill(skill.Name)
	}

	req := &llm.ChatRequest{
		Model:          b.cfg.Model,
		Messages:       bindMessages(query, skill),
		MaxTokens:      b.cfg.MaxTokens,
		Temperature:    b.cfg.Temperature,
		ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
		Metadata:       map[string]string{"stage": "bind", "skill": skill.Name},
	}

	start := time.Now()
	resp, err := b.provider.Completion(ctx, req)
	b.record(req, resp, err, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.WrapError(err, types.ErrTimeout, "argument binding interrupted").WithSkill(skill.Name)
		}
		return nil, types.WrapError(err, types.ErrLanguageModelUnavailable, "argument binding request failed").WithSkill(skill.Name)
	}

	text, err := resp.Content()
	if err != nil {
		return nil, types.NewError(types.ErrMalformedModelResponse, "model returned no content").
			WithCause(err).WithSkill(skill.Name)
	}

	raw, err := extractObject(text)
	if err != nil {
		b.logger.Debug("unparseable binding reply",
			zap.String("skill", skill.Name),
			zap.Int("reply_len", len(text)),
			zap.Error(err))
		return nil, types.NewError(types.ErrMalformedModelResponse, "model reply is not a JSON object").
			WithCause(err).WithSkill(skill.Name)
	}

	return b.conform(skill, raw, types.ErrMalformedModelResponse)
}

// Normalize 对调用方直接提供的参数执行与 Bind 相同的整理与校验；schema 不符时返回 InvalidArgument
func (b *Binder) Normalize(skill *skills.Descriptor, args map[string]any) (map[string]any, error) {
	if skill == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "skill is required")
	}
	return b.conform(skill, args, types.ErrInvalidArgument)
}

// conform 只保留声明过的参数，补默认值，转换标量字符串，然后做 schema 校验
func (b *Binder) conform(skill *skills.Descriptor, raw map[string]any, violation types.ErrorCode) (map[string]any, error) {
	args := make(map[string]any, len(skill.Parameters))
	for _, p := range skill.Parameters {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.HasDefault() {
				args[p.Name] = p.Default
				continue
			}
			if p.Required {
				return nil, types.Errorf(types.ErrMissingRequiredParameter, "missing required parameter %q", p.Name).
					WithSkill(skill.Name)
			}
			continue
		}
		args[p.Name] = coerce(p.Type, v)
	}

	schema, err := b.compiled(skill)
	if err != nil {
		return nil, err
	}
	doc, err := toJSONValue(args)
	if err != nil {
		return nil, types.NewError(violation, "arguments are not JSON encodable").WithCause(err).WithSkill(skill.Name)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, types.NewError(violation, "arguments do not match the parameter schema").
			WithCause(err).WithSkill(skill.Name)
	}
	return args, nil
}

// compiled 返回缓存的已编译 schema，每个描述只编译一次
func (b *Binder) compiled(skill *skills.Descriptor) (*jsonschema.Schema, error) {
	if s, ok := b.schemas.Load(skill); ok {
		return s.(*jsonschema.Schema), nil
	}

	data, err := json.Marshal(skill.Schema())
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode parameter schema").WithCause(err).WithSkill(skill.Name)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://skillflow.local/skills/%s.schema.json", url.PathEscape(skill.Name))
	if err := c.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		return nil, types.NewError(types.ErrInternalError, "load parameter schema").WithCause(err).WithSkill(skill.Name)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "compile parameter schema").WithCause(err).WithSkill(skill.Name)
	}
	actual, _ := b.schemas.LoadOrStore(skill, compiled)
	return actual.(*jsonschema.Schema), nil
}

func (b *Binder) record(req *llm.ChatRequest, resp *llm.ChatResponse, err error, d time.Duration) {
	if b.recorder == nil || b.provider == nil {
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
	b.recorder.RecordLLMRequest(b.provider.Name(), req.Model, "bind", status, d, prompt, completion)
}

// extractObject 取第一个 '{' 到最后一个 '}' 之间的内容并解码为对象；代码围栏因此被一并去掉
func extractObject(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var v any
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("reply is %T, not an object", v)
	}
	return obj, nil
}

// coerce 把字符串形式的标量转换为声明的类型；无法转换时原样返回，交给 schema 校验报错
func coerce(t skills.ParamType, v any) any {
	switch t {
	case skills.ParamNumber:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case skills.ParamInteger:
		switch x := v.(type) {
		case string:
			s := strings.TrimSpace(x)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
				return int64(f)
			}
		case float64:
			if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
				return int64(x)
			}
		}
	case skills.ParamBoolean:
		if s, ok := v.(string); ok {
			if bv, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return bv
			}
		}
	}
	return v
}

// toJSONValue 把参数表转换为校验器接受的 JSON 值（数字为 json.Number）
func toJSONValue(args map[string]any) (any, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
