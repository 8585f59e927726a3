package health

import (
	"context"
	"time"

	"github.com/taoyao-code/isis-master/internal/show"
)

// PlayerChecker 播放器状态：发送失败不少于成功发送时降级
type PlayerChecker struct {
	status func() show.Status
}

func NewPlayerChecker(status func() show.Status) *PlayerChecker {
	return &PlayerChecker{status: status}
}

func (c *PlayerChecker) Name() string { return "player" }

func (c *PlayerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.status()
	res := CheckResult{
		Status:  StatusHealthy,
		Message: st.Player.State.String(),
		Details: map[string]any{
			"program":     st.Program,
			"emitted":     st.Player.Emitted,
			"bad_records": st.Player.BadRecords,
			"send_errors": st.Player.SendErrors,
		},
	}
	if st.Player.SendErrors > 0 && st.Player.SendErrors >= st.Player.Emitted {
		res.Status, res.Message = StatusDegraded, "transport failing"
	}
	res.Latency = time.Since(start)
	return res
}
