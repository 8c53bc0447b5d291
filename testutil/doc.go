// Copyright (c) SkillFlow Authors.

/*
Package testutil 提供 SkillFlow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertEventuallyTrue / AssertErrorCode
  - 数据工具: MustJSON / ChatResponse / ToolMessages

# 子包

  - testutil/mocks: MockProvider（LLM Provider）、StubEmbedder（关键词簇嵌入）、
    RecordingHandler（技能处理器），均支持 Builder 模式与错误注入

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse("hello")
	embedder := mocks.NewStubEmbedder()
*/
package testutil
