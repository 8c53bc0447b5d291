// Copyright (c) SkillFlow Authors.

/*
Package main 提供 skillflow 命令行入口。

# 子命令

  - ask      处理一条自然语言请求，输出回答；--transcript 额外输出 JSON 调度记录
  - invoke   按名称直接调用技能（大小写不敏感），参数为 JSON 对象
  - skills   列出注册表（表格或 --json）
  - serve    启动 HTTP 服务：API 端口与独立的 /metrics 端口
  - health   请求运行中服务的 /health
  - version  输出构建注入的版本信息

所有子命令都接受 --config 指定 YAML 配置，SKILLFLOW_* 环境变量覆盖文件中的值。
ask、invoke、skills 的日志写到 stderr，stdout 只留给结果。

# HTTP 路由

	POST /v1/ask
	GET  /v1/skills
	POST /v1/skills/{name}/invoke
	GET  /health  /healthz  /ready  /version

中间件顺序（外到内）：Recovery、RequestID、OTelTracing、SecurityHeaders、
RequestLogger、Metrics、CORS、RateLimiter（按 IP）。
*/
package main
