package rag

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/BaSui01/skillflow/types"
)

// SearchResult 是一次近邻查询的单条结果
type SearchResult struct {
	Position int     // 插入位置，对应注册表中的平行切片下标
	Distance float64 // L2 距离，归一化后等价于余弦排序
}

// FlatIndex 固定维度的暴力 L2 索引。
// 向量在插入时归一化，位置即插入顺序，不支持删除与更新。
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float64
}

// NewFlatIndex 创建指定维度的空索引
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, "index dimension must be positive, got %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Dimension 返回索引维度
func (idx *FlatIndex) Dimension() int { return idx.dim }

// Size 返回已存向量数
func (idx *FlatIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Add 按给定顺序追加向量。任一向量维度不符时整批不写入。
func (idx *FlatIndex) Add(vectors ...[]float64) error {
	normalized := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != idx.dim {
			return types.Errorf(types.ErrInvalidDimension,
				"vector %d has dimension %d, index expects %d", i, len(v), idx.dim)
		}
		normalized[i] = NormalizeL2(v)
	}

	idx.mu.Lock()
	idx.vectors = append(idx.vectors, normalized...)
	idx.mu.Unlock()
	return nil
}

// Search 返回至多 k 个最近邻，按距离升序，距离相同时插入位置小者优先。
// 空索引返回空结果。
func (idx *FlatIndex) Search(query []float64, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, "k must be positive, got %d", k)
	}
	if len(query) != idx.dim {
		return nil, types.Errorf(types.ErrInvalidDimension,
			"query has dimension %d, index expects %d", len(query), idx.dim)
	}
	q := NormalizeL2(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return []SearchResult{}, nil
	}
	if k > len(idx.vectors) {
		k = len(idx.vectors)
	}

	// 大小为 k 的最大堆，堆顶是当前保留结果中最差的一个
	h := make(worstFirst, 0, k)
	for pos, v := range idx.vectors {
		r := SearchResult{Position: pos, Distance: L2Distance(q, v)}
		if h.Len() < k {
			heap.Push(&h, r)
			continue
		}
		if better(r, h[0]) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}

	out := []SearchResult(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out, nil
}

// better 定义结果全序：距离小者优先，其次位置小者优先
func better(a, b SearchResult) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Position < b.Position
}

type worstFirst []SearchResult

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) {
	*h = append(*h, x.(SearchResult))
}

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
