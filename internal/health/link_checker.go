package health

import (
	"context"
	"time"

	"github.com/taoyao-code/isis-master/internal/tcpserver"
	"github.com/taoyao-code/isis-master/internal/transport"
)

// LinkChecker 串口链路熔断状态：熔断即不健康
type LinkChecker struct {
	breaker *transport.Breaker
}

func NewLinkChecker(b *transport.Breaker) *LinkChecker { return &LinkChecker{breaker: b} }

func (c *LinkChecker) Name() string { return "serial" }

func (c *LinkChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.breaker.Stats()
	res := CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{"state": st.State, "failures": st.Failures, "trips": st.Trips},
	}
	switch c.breaker.State() {
	case transport.BreakerOpen:
		res.Status, res.Message = StatusUnhealthy, "link down"
	case transport.BreakerHalfOpen:
		res.Status, res.Message = StatusDegraded, "link recovering"
	}
	res.Latency = time.Since(start)
	return res
}

// BridgeChecker 桥接监听：无桥接连接时降级
type BridgeChecker struct {
	server *tcpserver.Server
}

func NewBridgeChecker(s *tcpserver.Server) *BridgeChecker { return &BridgeChecker{server: s} }

func (c *BridgeChecker) Name() string { return "bridge" }

func (c *BridgeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.server.Stats()
	res := CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{
			"active_connections": st.ActiveConnections,
			"max_connections":    st.MaxConnections,
			"rejected_total":     st.RejectedTotal,
		},
	}
	if c.server.Conns() == 0 {
		res.Status, res.Message = StatusDegraded, "no bridge connected"
	}
	res.Latency = time.Since(start)
	return res
}
