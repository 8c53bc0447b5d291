// Copyright (c) SkillFlow Authors.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、技能选择与调用、LLM 与缓存。

# 概述

Collector 通过 promauto 注册到默认 Registry，所有指标按 namespace 隔离。
它同时实现 dispatch.Recorder 与 cache.HitRecorder，由 cmd/skillflow 注入。

# 指标

  - HTTP：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx
  - 选择：按 mode/result 计数与耗时（result: hit、empty、error）
  - 绑定：按 skill/result 计数
  - 调用：按 skill/status 计数与耗时
  - LLM：按 provider/model/stage/status 计数、耗时与 Token 用量
  - 缓存：按 cache_type 统计命中与未命中
*/
package metrics
