// RecordingHandler 的技能处理器模拟实现。
package mocks

import (
	"context"
	"sync"
	"time"
)

// HandlerCall 记录单次技能调用
type HandlerCall struct {
	Args map[string]any
	At   time.Time
}

// RecordingHandler 记录调用参数并返回预设结果
type RecordingHandler struct {
	mu     sync.Mutex
	result any
	err    error
	delay  time.Duration
	panicV any
	calls  []HandlerCall
}

// NewRecordingHandler 创建返回 result 的处理器
func NewRecordingHandler(result any) *RecordingHandler {
	return &RecordingHandler{result: result}
}

// WithError 让处理器返回 err
func (h *RecordingHandler) WithError(err error) *RecordingHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	return h
}

// WithDelay 让处理器等待 d，期间响应 ctx 取消
func (h *RecordingHandler) WithDelay(d time.Duration) *RecordingHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delay = d
	return h
}

// WithPanic 让处理器 panic(v)
func (h *RecordingHandler) WithPanic(v any) *RecordingHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panicV = v
	return h
}

// Handle 的签名与 skills.Handler 一致，可直接赋值
func (h *RecordingHandler) Handle(ctx context.Context, args map[string]any) (any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, HandlerCall{Args: args, At: time.Now()})
	result, err, delay, panicV := h.result, h.err, h.delay, h.panicV
	h.mu.Unlock()

	if panicV != nil {
		panic(panicV)
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return result, err
}

// Calls 返回调用记录的副本
func (h *RecordingHandler) Calls() []HandlerCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HandlerCall(nil), h.calls...)
}

// CallCount 返回调用次数
func (h *RecordingHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}
