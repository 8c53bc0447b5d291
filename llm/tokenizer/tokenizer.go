package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Truncate 把文本裁剪到至多 maxTokens 个 token, 第二个返回值表示是否发生了裁剪.
	Truncate(text string, maxTokens int) (string, bool, error)

	// Name 返回分词器的名称.
	Name() string
}

// TruncationMarker 追加在被裁剪文本的末尾.
const TruncationMarker = " …[truncated]"

// 全局分词器注册表.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// RegisterTokenizer 为给定的模型名称注册分词器.
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// GetTokenizer 返回为给定模型注册的分词器。
// 精确匹配优先，其次取最长的前缀匹配（"gpt-4o" 匹配 "gpt-4o-2024-08-06"）。
func GetTokenizer(model string) (Tokenizer, bool) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, true
	}
	var (
		best    Tokenizer
		bestLen int
	)
	for prefix, t := range modelTokenizers {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	return best, best != nil
}

// GetTokenizerOrEstimator 返回该模型的注册分词器, 没有登记时回落到估算器。
func GetTokenizerOrEstimator(model string) Tokenizer {
	if t, ok := GetTokenizer(model); ok {
		return t
	}
	return NewEstimatorTokenizer()
}
