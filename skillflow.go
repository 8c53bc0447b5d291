// Package skillflow 根据自然语言查询选择并调用技能，再让语言模型组合最终回答。
//
// Usage:
//
//	import "github.com/BaSui01/skillflow"
//
//	eng, err := skillflow.New(ctx, cfg)
//	defer eng.Close()
//	answer, err := eng.Handle(ctx, "send a slack message to #ops saying deploy is done")
//
// 这是 [quick.New] 的薄封装，两者结果相同。
package skillflow

import (
	"context"

	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/quick"
)

// Option configures the engine created by [New].
type Option = quick.Option

// Engine 是组装完成的 Dispatcher
type Engine = quick.Engine

// New 按配置组装 Engine，cfg 为 nil 时使用默认配置
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	return quick.New(ctx, cfg, opts...)
}

// Re-export options so callers never need to import quick/.

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger

// WithProvider 使用现成的语言模型
var WithProvider = quick.WithProvider

// WithEmbedder 使用现成的嵌入服务
var WithEmbedder = quick.WithEmbedder

// WithManifest 使用现成的技能清单
var WithManifest = quick.WithManifest

// WithHandlers 为清单文件提供处理器能力表
var WithHandlers = quick.WithHandlers
