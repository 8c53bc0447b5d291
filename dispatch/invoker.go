package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterSet 为声明了 RateLimit 的技能维护进程级令牌桶
type limiterSet struct {
	mu       sync.Mutex
	limiters map[*skills.Descriptor]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{limiters: make(map[*skills.Descriptor]*rate.Limiter)}
}

func (s *limiterSet) get(skill *skills.Descriptor) *rate.Limiter {
	if skill.RateLimit <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[skill]
	if !ok {
		burst := max(1, int(math.Ceil(skill.RateLimit)))
		l = rate.NewLimiter(rate.Limit(skill.RateLimit), burst)
		s.limiters[skill] = l
	}
	return l
}

// wait 阻塞到令牌可用；等待超出 ctx 截止时间时返回 RateLimited
func (s *limiterSet) wait(ctx context.Context, skill *skills.Descriptor) error {
	l := s.get(skill)
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return types.WrapError(ctx.Err(), types.ErrTimeout, "request ended while waiting for rate limit").WithSkill(skill.Name)
		}
		return types.NewError(types.ErrRateLimited, "skill rate limit exceeded").WithCause(err).WithSkill(skill.Name)
	}
	return nil
}

type invocation struct {
	result any
	err    error
}

// invoke 在独立 goroutine 中执行 handler：
// panic 被恢复为 SkillInvocationFailed，超时后放弃等待（带缓冲的 channel 保证 goroutine 能退出）。
func (d *Dispatcher) invoke(ctx context.Context, skill *skills.Descriptor, args map[string]any) (any, error) {
	if err := d.limiters.wait(ctx, skill); err != nil {
		return nil, err
	}

	timeout := skill.Timeout
	if timeout <= 0 {
		timeout = d.cfg.InvocationTimeout
	}
	execCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("skill handler panicked",
					zap.String("skill", skill.Name),
					zap.Any("panic", r),
					zap.Stack("stack"))
				done <- invocation{err: types.Errorf(types.ErrSkillInvocationFailed, "skill panicked: %v", r).WithSkill(skill.Name)}
			}
		}()
		res, err := skill.Handler(execCtx, args)
		done <- invocation{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil {
			return out.result, nil
		}
		if types.IsErrorCode(out.err, types.ErrSkillInvocationFailed) {
			return nil, out.err
		}
		if execCtx.Err() != nil && errors.Is(out.err, execCtx.Err()) {
			return nil, timeoutError(ctx, skill, timeout, out.err)
		}
		return nil, types.NewError(types.ErrSkillInvocationFailed, "skill returned an error").
			WithCause(out.err).WithSkill(skill.Name)
	case <-execCtx.Done():
		return nil, timeoutError(ctx, skill, timeout, execCtx.Err())
	}
}

func timeoutError(parent context.Context, skill *skills.Descriptor, timeout time.Duration, cause error) error {
	if parent.Err() != nil {
		return types.WrapError(cause, types.ErrTimeout, "request ended before the skill finished").WithSkill(skill.Name)
	}
	return types.NewError(types.ErrTimeout, fmt.Sprintf("skill timed out after %s", timeout)).
		WithCause(cause).WithSkill(skill.Name)
}
