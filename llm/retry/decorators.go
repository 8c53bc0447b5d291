package retry

import (
	"context"

	"github.com/BaSui01/skillflow/llm"
	"go.uber.org/zap"
)

// Embedder 与 skills.Embedder 结构一致；在此重新声明以避免 llm 依赖 skills。
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// RetryingEmbedder 对瞬时失败的嵌入调用按策略重试。
type RetryingEmbedder struct {
	inner Embedder
	r     Retryer
}

// WrapEmbedder 为嵌入服务加上重试。
func WrapEmbedder(inner Embedder, policy Policy, logger *zap.Logger) *RetryingEmbedder {
	return &RetryingEmbedder{inner: inner, r: NewBackoffRetryer(policy, logger)}
}

func (e *RetryingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return DoWithResult(ctx, e.r, func(ctx context.Context) ([]float64, error) {
		return e.inner.EmbedQuery(ctx, text)
	})
}

func (e *RetryingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	return DoWithResult(ctx, e.r, func(ctx context.Context) ([][]float64, error) {
		return e.inner.EmbedDocuments(ctx, texts)
	})
}

// MaxBatchSize 透传内层的批量上限，内层未声明时返回 0
func (e *RetryingEmbedder) MaxBatchSize() int {
	if b, ok := e.inner.(interface{ MaxBatchSize() int }); ok {
		return b.MaxBatchSize()
	}
	return 0
}

// RetryingProvider 对语言模型补全调用按策略重试。
type RetryingProvider struct {
	llm.Provider
	r Retryer
}

var _ llm.Provider = (*RetryingProvider)(nil)

// WrapProvider 为语言模型 Provider 加上重试。HealthCheck 与 Name 直接透传。
func WrapProvider(inner llm.Provider, policy Policy, logger *zap.Logger) *RetryingProvider {
	return &RetryingProvider{Provider: inner, r: NewBackoffRetryer(policy, logger)}
}

func (p *RetryingProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return DoWithResult(ctx, p.r, func(ctx context.Context) (*llm.ChatResponse, error) {
		return p.Provider.Completion(ctx, req)
	})
}
