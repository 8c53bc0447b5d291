// Copyright (c) SkillFlow Authors.

/*
Package dispatch 编排一次技能请求的完整流水线。

# 概述

Dispatcher 把自由文本查询依次送过四个阶段：

	选择 (skills.Selector) → 参数绑定 (Binder) → 调用 (skills.Handler) → 组合回答 (llm.Provider)

被选中的技能各自作为独立单元执行「绑定 + 调用」，单元之间并发运行，
结果按选择名次写回 Transcript，与完成顺序无关。

# 错误传播

  - 选择阶段的 EmbeddingUnavailable / InvalidArgument 直接返回给调用方
  - 单个技能的绑定或调用失败只记录在该技能的 Outcome 中，不影响其他技能
  - 全部技能失败时，组合提示词会附带失败说明，由模型向用户解释
  - 组合阶段的模型失败返回 LanguageModelUnavailable

# 取消

请求上下文结束时，仍在执行的单元被放弃并记为 timeout；只要有一个单元已完成，
组合阶段会在 context.WithoutCancel 上继续执行，受 Config.CompositionGrace 约束。

# 快速开始

	d, err := dispatch.New(dispatch.Runtime{
		Embedder: embedder,
		Model:    provider,
		Registry: registry,
	}, dispatch.DefaultConfig(), dispatch.WithLogger(logger))
	answer, err := d.Handle(ctx, "Solve 2x+3=7")
*/
package dispatch
