// =============================================================================
// Package quick: 从配置一次性组装 Dispatcher
// =============================================================================
// 组装顺序：语言模型（openaicompat + 重试）→ 嵌入服务（OpenAI + 重试 + 可选
// Redis 缓存）→ 技能清单 → 注册表 → Dispatcher。
//
// 包放在 quick/ 而不是根目录，以避免 root → cmd 之间的依赖缠绕。
//
// Usage:
//
//	cfg, _ := config.NewLoader().WithConfigPath("skillflow.yaml").Load()
//	eng, err := quick.New(ctx, cfg, quick.WithLogger(logger))
//	defer eng.Close()
//	answer, err := eng.Handle(ctx, "what is 17 times 23")
//
// =============================================================================
package quick

import (
	"context"
	"strings"

	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/dispatch"
	"github.com/BaSui01/skillflow/internal/cache"
	"github.com/BaSui01/skillflow/llm"
	"github.com/BaSui01/skillflow/llm/embedding"
	"github.com/BaSui01/skillflow/llm/providers/openaicompat"
	"github.com/BaSui01/skillflow/llm/retry"
	"github.com/BaSui01/skillflow/llm/tokenizer"
	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/skills/builtin"
	"github.com/BaSui01/skillflow/types"

	"go.uber.org/zap"
)

// Recorder 同时记录调度与缓存命中指标，*metrics.Collector 实现了它
type Recorder interface {
	dispatch.Recorder
	cache.HitRecorder
}

// Option configures the engine created by New.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	provider llm.Provider
	embedder skills.Embedder
	recorder Recorder
	manifest *skills.Manifest
	handlers skills.HandlerTable
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProvider 使用现成的语言模型，跳过 cfg.LLM
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithEmbedder 使用现成的嵌入服务，跳过 cfg.Embedding 与缓存
func WithEmbedder(e skills.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithMetrics 接入指标
func WithMetrics(rec Recorder) Option {
	return func(o *options) { o.recorder = rec }
}

// WithManifest 使用现成的清单，跳过 cfg.Skills.ManifestPath
func WithManifest(m *skills.Manifest) Option {
	return func(o *options) { o.manifest = m }
}

// WithHandlers 为清单文件提供处理器能力表，默认是内置技能
func WithHandlers(h skills.HandlerTable) Option {
	return func(o *options) { o.handlers = h }
}

// Engine 是组装完成的 Dispatcher 及其需要释放的资源
type Engine struct {
	*dispatch.Dispatcher

	provider llm.Provider
	cache    *cache.Manager
	logger   *zap.Logger
}

// Provider 返回语言模型，供就绪检查使用
func (e *Engine) Provider() llm.Provider { return e.provider }

// Close 释放缓存连接
func (e *Engine) Close() error {
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

// New 按配置组装 Engine。cfg 为 nil 时使用 config.DefaultConfig()。
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewError(types.ErrInvalidArgument, "invalid configuration").WithCause(err)
	}

	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	logger := o.logger

	eng := &Engine{logger: logger}

	provider := o.provider
	if provider == nil {
		provider = newProvider(cfg.LLM, logger)
	}
	eng.provider = provider

	embedder := o.embedder
	if embedder == nil {
		e, mgr, err := newEmbedder(cfg, o.recorder, logger)
		if err != nil {
			return nil, err
		}
		embedder, eng.cache = e, mgr
	}

	manifest, err := loadManifest(cfg, o)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	registry, err := manifest.Build(ctx, embedder, skills.WithRegistryLogger(logger))
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	dopts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithTokenizer(tokenizer.GetTokenizerOrEstimator(cfg.LLM.Model)),
	}
	if o.recorder != nil {
		dopts = append(dopts, dispatch.WithMetrics(o.recorder))
	}

	d, err := dispatch.New(dispatch.Runtime{
		Embedder: embedder,
		Model:    provider,
		Registry: registry,
	}, DispatchConfig(cfg), dopts...)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	eng.Dispatcher = d

	logger.Info("skillflow engine ready",
		zap.String("mode", string(registry.Mode())),
		zap.Int("skills", registry.Len()),
		zap.Int("dimension", registry.Dimension()),
		zap.String("provider", provider.Name()),
		zap.Bool("embedding_cache", eng.cache != nil))
	return eng, nil
}

// DispatchConfig 把配置文件中的调度与 LLM 段映射为 dispatch.Config
func DispatchConfig(cfg *config.Config) dispatch.Config {
	dc := dispatch.DefaultConfig()
	d := cfg.Dispatch

	dc.TopK = d.TopK
	dc.GroupTopK = d.GroupTopK
	dc.MaxConcurrency = d.MaxConcurrency
	dc.InvocationTimeout = d.InvocationTimeout
	dc.RequestTimeout = d.RequestTimeout
	dc.CompositionGrace = d.CompositionGrace
	dc.NoSkillPolicy = dispatch.NoSkillPolicy(strings.ToLower(d.NoSkillPolicy))
	if d.CannotHelpMessage != "" {
		dc.CannotHelpMessage = d.CannotHelpMessage
	}
	if d.MaxResultTokens > 0 {
		dc.MaxResultTokens = d.MaxResultTokens
	}

	dc.Model = cfg.LLM.Model
	dc.Temperature = float32(cfg.LLM.Temperature)
	if cfg.LLM.MaxTokens > 0 {
		dc.MaxTokens = cfg.LLM.MaxTokens
	}
	return dc
}

func newProvider(cfg config.LLMConfig, logger *zap.Logger) llm.Provider {
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	p := openaicompat.New(openaicompat.Config{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, logger)
	if cfg.MaxRetries <= 0 {
		return p
	}
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	return retry.WrapProvider(p, policy, logger)
}

// newEmbedder 嵌入服务未单独配置 API key / base URL 时沿用 LLM 段
func newEmbedder(cfg *config.Config, rec Recorder, logger *zap.Logger) (skills.Embedder, *cache.Manager, error) {
	ec := embedding.DefaultOpenAIConfig()
	ec.APIKey = firstNonEmpty(cfg.Embedding.APIKey, cfg.LLM.APIKey)
	ec.BaseURL = firstNonEmpty(cfg.Embedding.BaseURL, cfg.LLM.BaseURL, ec.BaseURL)
	ec.Model = cfg.Embedding.Model
	ec.Dimensions = cfg.Embedding.Dimensions
	if cfg.Embedding.Timeout > 0 {
		ec.Timeout = cfg.Embedding.Timeout
	}

	var embedder skills.Embedder = embedding.NewOpenAIProvider(ec)
	if cfg.Embedding.MaxRetries > 0 {
		policy := retry.DefaultPolicy()
		policy.MaxRetries = cfg.Embedding.MaxRetries
		embedder = retry.WrapEmbedder(embedder, policy, logger)
	}

	if !cfg.Cache.Enabled {
		return embedder, nil, nil
	}

	cc := cache.DefaultConfig()
	cc.Addr = cfg.Cache.Addr
	cc.Password = cfg.Cache.Password
	cc.DB = cfg.Cache.DB
	cc.KeyPrefix = cfg.Cache.KeyPrefix
	if cfg.Cache.TTL > 0 {
		cc.DefaultTTL = cfg.Cache.TTL
	}
	mgr, err := cache.NewManager(cc, logger)
	if err != nil {
		return nil, nil, types.NewError(types.ErrEmbeddingUnavailable, "embedding cache unavailable").WithCause(err)
	}

	copts := []cache.CachedEmbedderOption{cache.WithLogger(logger), cache.WithTTL(cc.DefaultTTL)}
	if rec != nil {
		copts = append(copts, cache.WithHitRecorder(rec))
	}
	return cache.NewCachedEmbedder(embedder, mgr, ec.Model, copts...), mgr, nil
}

func loadManifest(cfg *config.Config, o *options) (*skills.Manifest, error) {
	m := o.manifest
	if m == nil {
		var err error
		bcfg := builtin.Config{
			ZapierWebhookURL: cfg.Builtin.ZapierWebhookURL,
			SlackWebhookURL:  cfg.Builtin.SlackWebhookURL,
			DefaultChannel:   cfg.Builtin.DefaultChannel,
		}
		switch {
		case cfg.Skills.ManifestPath != "":
			handlers := o.handlers
			if handlers == nil {
				handlers = builtin.Handlers(bcfg)
			}
			m, err = skills.LoadManifest(cfg.Skills.ManifestPath, handlers)
		default:
			m, err = builtin.DefaultManifest(bcfg)
		}
		if err != nil {
			return nil, err
		}
	}
	return m.WithMode(skills.Mode(strings.ToLower(cfg.Skills.Mode)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
