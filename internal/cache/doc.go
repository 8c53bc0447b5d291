// Copyright (c) SkillFlow Authors.

/*
包 cache 提供基于 Redis 的缓存管理能力，以及查询嵌入的缓存装饰器。

# 核心类型

  - Manager：持有 go-redis 客户端，提供带键前缀的 Get/Set/Delete/Exists，
    以及 GetJSON/SetJSON 便捷方法；后台定时 Ping 做健康检查。
  - CachedEmbedder：包装任意嵌入服务，按「模型 + 文本 sha256」缓存查询向量，
    同一键的并发请求经 singleflight 合并为一次上游调用。

# 降级

Redis 不可用时 CachedEmbedder 只记录告警并直接调用上游，不会让选择失败。
*/
package cache
