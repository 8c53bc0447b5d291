package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Embedder 与 skills.Embedder 方法集一致
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// Store 是 CachedEmbedder 需要的缓存能力，*Manager 实现了它
type Store interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// HitRecorder 记录缓存命中率，由 metrics.Collector 实现
type HitRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const cacheType = "query_embedding"

// defaultFlightTimeout 限制合并后的上游调用时长，它不再受任何单个调用方的 ctx 约束
const defaultFlightTimeout = 30 * time.Second

// CachedEmbedder 缓存查询向量；描述向量只在注册表构建时计算一次，直接透传
type CachedEmbedder struct {
	inner    Embedder
	store    Store
	model    string
	ttl      time.Duration
	logger   *zap.Logger
	recorder HitRecorder
	group    singleflight.Group

	flightTimeout time.Duration
}

// CachedEmbedderOption 配置 CachedEmbedder
type CachedEmbedderOption func(*CachedEmbedder)

// WithTTL 设置缓存过期时间，0 表示使用 Manager 的默认值
func WithTTL(ttl time.Duration) CachedEmbedderOption {
	return func(c *CachedEmbedder) { c.ttl = ttl }
}

// WithFlightTimeout 设置合并调用的超时，<=0 使用默认值
func WithFlightTimeout(d time.Duration) CachedEmbedderOption {
	return func(c *CachedEmbedder) {
		if d > 0 {
			c.flightTimeout = d
		}
	}
}

// WithHitRecorder 设置命中率指标
func WithHitRecorder(rec HitRecorder) CachedEmbedderOption {
	return func(c *CachedEmbedder) { c.recorder = rec }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) CachedEmbedderOption {
	return func(c *CachedEmbedder) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedEmbedder 创建缓存装饰器。model 参与缓存键，换模型后旧向量自然失效。
func NewCachedEmbedder(inner Embedder, store Store, model string, opts ...CachedEmbedderOption) *CachedEmbedder {
	c := &CachedEmbedder{
		inner:  inner,
		store:  store,
		model:  model,
		logger: zap.NewNop(),

		flightTimeout: defaultFlightTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "embedding_cache"))
	return c
}

// QueryKey 返回查询文本的缓存键
func QueryKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	key := QueryKey(c.model, text)

	var cached []float64
	err := c.store.GetJSON(ctx, key, &cached)
	switch {
	case err == nil && len(cached) > 0:
		c.hit()
		return cached, nil
	case err != nil && !IsCacheMiss(err):
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}
	c.miss()

	// 合并调用不继承任何单个调用方的取消，每个调用方只等待自己的 ctx
	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()

		vec, err := c.inner.EmbedQuery(flightCtx, text)
		if err != nil {
			return nil, err
		}
		if err := c.store.SetJSON(flightCtx, key, vec, c.ttl); err != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(err))
		}
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		vec := res.Val.([]float64)
		if res.Shared {
			vec = append([]float64(nil), vec...)
		}
		return vec, nil
	}
}

func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	return c.inner.EmbedDocuments(ctx, texts)
}

// MaxBatchSize 透传上游的批量上限
func (c *CachedEmbedder) MaxBatchSize() int {
	if bs, ok := c.inner.(interface{ MaxBatchSize() int }); ok {
		return bs.MaxBatchSize()
	}
	return 0
}

func (c *CachedEmbedder) hit() {
	if c.recorder != nil {
		c.recorder.RecordCacheHit(cacheType)
	}
}

func (c *CachedEmbedder) miss() {
	if c.recorder != nil {
		c.recorder.RecordCacheMiss(cacheType)
	}
}
