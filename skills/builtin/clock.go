package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/skillflow/skills"
)

// Clock 返回 timezone 参数指定时区的当前时间
func Clock(now func() time.Time) skills.Handler {
	return func(_ context.Context, args map[string]any) (any, error) {
		tz, _ := args["timezone"].(string)
		if tz == "" {
			tz = "UTC"
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", tz)
		}
		t := now().In(loc)
		return map[string]any{
			"timezone": tz,
			"time":     t.Format(time.RFC3339),
			"weekday":  t.Weekday().String(),
		}, nil
	}
}
