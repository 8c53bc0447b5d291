// StubEmbedder 的确定性嵌入模拟实现。
//
// 每个关键词簇占一个维度，文本向量是各簇关键词的命中次数；
// 同一领域的文本因此聚在一起，适合验证语义选择。
package mocks

import (
	"context"
	"strings"
	"sync"
)

// Cluster 是一组同领域关键词
type Cluster struct {
	Name     string
	Keywords []string
}

// DefaultClusters 覆盖数学、自动化、消息、时间四个领域
func DefaultClusters() []Cluster {
	return []Cluster{
		{Name: "math", Keywords: []string{"math", "solve", "equation", "calculat", "arithmetic", "algebra", "wolfram", "sum", "multiply", "divide", "plus"}},
		{Name: "automation", Keywords: []string{"automat", "webhook", "zapier", "trigger", "workflow"}},
		{Name: "messaging", Keywords: []string{"slack", "message", "channel", "notify", "chat"}},
		{Name: "time", Keywords: []string{"time", "clock", "timezone", "date", "hour"}},
	}
}

// StubEmbedder 是 skills.Embedder 的确定性实现，并统计调用次数
type StubEmbedder struct {
	mu       sync.Mutex
	clusters []Cluster
	err      error
	maxBatch int

	queryCalls    int
	documentCalls int
	documentTexts int
}

// NewStubEmbedder 创建 StubEmbedder，未指定簇时使用 DefaultClusters
func NewStubEmbedder(clusters ...Cluster) *StubEmbedder {
	if len(clusters) == 0 {
		clusters = DefaultClusters()
	}
	return &StubEmbedder{clusters: clusters}
}

// WithError 让后续所有调用返回 err
func (s *StubEmbedder) WithError(err error) *StubEmbedder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithMaxBatch 设置 MaxBatchSize 的返回值
func (s *StubEmbedder) WithMaxBatch(n int) *StubEmbedder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBatch = n
	return s
}

// Dimension 返回向量维度：每簇一维，外加一个兜底维度
func (s *StubEmbedder) Dimension() int { return len(s.clusters) + 1 }

// MaxBatchSize 返回批量上限，0 表示不限
func (s *StubEmbedder) MaxBatchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxBatch
}

// Vector 计算文本向量，不计入调用次数
func (s *StubEmbedder) Vector(text string) []float64 {
	lower := strings.ToLower(text)
	v := make([]float64, len(s.clusters)+1)
	hit := false
	for i, c := range s.clusters {
		for _, kw := range c.Keywords {
			if n := strings.Count(lower, kw); n > 0 {
				v[i] += float64(n)
				hit = true
			}
		}
	}
	if !hit {
		v[len(s.clusters)] = 1
	}
	return v
}

func (s *StubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	s.mu.Lock()
	s.queryCalls++
	err := s.err
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Vector(text), nil
}

func (s *StubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	s.mu.Lock()
	s.documentCalls++
	s.documentTexts += len(texts)
	err := s.err
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = s.Vector(t)
	}
	return out, nil
}

// QueryCalls 返回 EmbedQuery 调用次数
func (s *StubEmbedder) QueryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls
}

// DocumentCalls 返回 EmbedDocuments 调用次数
func (s *StubEmbedder) DocumentCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentCalls
}

// TotalCalls 返回全部嵌入调用次数
func (s *StubEmbedder) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls + s.documentCalls
}
