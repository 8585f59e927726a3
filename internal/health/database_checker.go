package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/isis-master/internal/show"
)

// DBPool *pgxpool.Pool 的能力子集
type DBPool interface {
	Ping(ctx context.Context) error
	Stat() *pgxpool.Stat
}

// DatabaseChecker 运行记录库（pgx 连接池）
type DatabaseChecker struct {
	pool DBPool
}

func NewDatabaseChecker(pool DBPool) *DatabaseChecker { return &DatabaseChecker{pool: pool} }

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: "ping failed: " + err.Error(), Latency: time.Since(start)}
	}
	st := c.pool.Stat()
	status, msg := poolUsage(st.AcquiredConns(), st.MaxConns())
	return CheckResult{
		Status:  status,
		Message: msg,
		Details: map[string]any{
			"total_conns":    st.TotalConns(),
			"acquired_conns": st.AcquiredConns(),
			"max_conns":      st.MaxConns(),
		},
		Latency: time.Since(start),
	}
}

// poolUsage 连接池占满为不健康，超过九成为降级
func poolUsage(acquired, max int32) (Status, string) {
	if max <= 0 {
		return StatusHealthy, "ok"
	}
	switch used := float64(acquired) / float64(max); {
	case used >= 1:
		return StatusUnhealthy, "connection pool exhausted"
	case used > 0.9:
		return StatusDegraded, fmt.Sprintf("connection pool at %.0f%%", used*100)
	}
	return StatusHealthy, "ok"
}

// StoreChecker 程序库可列举即健康
type StoreChecker struct {
	store show.ProgramStore
}

func NewStoreChecker(store show.ProgramStore) *StoreChecker { return &StoreChecker{store: store} }

func (c *StoreChecker) Name() string { return "programs" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	list, err := c.store.List(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Latency: time.Since(start)}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{"programs": len(list)},
		Latency: time.Since(start),
	}
}
