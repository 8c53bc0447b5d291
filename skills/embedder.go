package skills

import (
	"context"

	"github.com/BaSui01/skillflow/types"
)

// Embedder 把文本映射为固定维度的向量。
// 查询走 EmbedQuery，技能/分组描述走 EmbedDocuments，二者向量空间必须一致。
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// batchSizer 由支持批量上限的嵌入服务实现（embedding.Provider 即是）
type batchSizer interface {
	MaxBatchSize() int
}

// embedDocuments 分批嵌入并校验数量与维度。dim 为 0 时以第一条向量的维度为准。
func embedDocuments(ctx context.Context, e Embedder, texts []string, dim int) ([][]float64, int, error) {
	if len(texts) == 0 {
		return nil, dim, nil
	}
	if e == nil {
		return nil, dim, types.NewError(types.ErrEmbeddingUnavailable, "no embedder configured")
	}

	batch := len(texts)
	if bs, ok := e.(batchSizer); ok && bs.MaxBatchSize() > 0 && bs.MaxBatchSize() < batch {
		batch = bs.MaxBatchSize()
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vecs, err := e.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, dim, types.WrapError(err, types.ErrEmbeddingUnavailable, "embed descriptions")
		}
		if len(vecs) != end-start {
			return nil, dim, types.Errorf(types.ErrInvalidDimension,
				"embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}

	for i, v := range out {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return nil, dim, types.Errorf(types.ErrInvalidDimension,
				"embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return out, dim, nil
}

func embedQuery(ctx context.Context, e Embedder, query string) ([]float64, error) {
	if e == nil {
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "no embedder configured")
	}
	v, err := e.EmbedQuery(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.WrapError(err, types.ErrTimeout, "embed query: request ended")
		}
		return nil, types.WrapError(err, types.ErrEmbeddingUnavailable, "embed query")
	}
	return v, nil
}
