// Copyright (c) SkillFlow Authors.

/*
Package server 管理 HTTP 服务器的生命周期：非阻塞启动、等待、优雅关闭。

skillflow serve 用两个 Manager 分别承载 API（/v1/ask、/v1/skills、健康检查）
与 Prometheus /metrics 端口。信号处理由调用方通过 context 完成：

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_ = m.Start()
	err := m.Wait(ctx)
	_ = m.Shutdown(context.Background())
*/
package server
