package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var ErrAdmissionRejected = errors.New("bridge connection rejected")

// Admission 桥接连接准入：并发上限（信号量）+ 接入速率（令牌桶）
type Admission struct {
	sem      chan struct{}
	limiter  *rate.Limiter
	timeout  time.Duration
	maxConn  int
	active   atomic.Int64
	rejected atomic.Int64
}

// NewAdmission maxConn<=0 时默认 8；ratePerSec<=0 时不限接入速率
func NewAdmission(maxConn, ratePerSec, burst int, timeout time.Duration) *Admission {
	if maxConn <= 0 {
		maxConn = 8
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	a := &Admission{sem: make(chan struct{}, maxConn), timeout: timeout, maxConn: maxConn}
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = ratePerSec * 2
		}
		a.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return a
}

// Acquire 获取一个连接许可；速率超限立即拒绝，并发超限最多等待 timeout
func (a *Admission) Acquire(ctx context.Context) error {
	if a.limiter != nil && !a.limiter.Allow() {
		a.rejected.Add(1)
		return fmt.Errorf("%w: accept rate exceeded", ErrAdmissionRejected)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	select {
	case a.sem <- struct{}{}:
		a.active.Add(1)
		return nil
	case <-ctx.Done():
		a.rejected.Add(1)
		return fmt.Errorf("%w: max=%d", ErrAdmissionRejected, a.maxConn)
	}
}

// Release 释放许可
func (a *Admission) Release() {
	select {
	case <-a.sem:
		a.active.Add(-1)
	default:
	}
}

// Stats 统计快照
func (a *Admission) Stats() AdmissionStats {
	active := int(a.active.Load())
	return AdmissionStats{
		MaxConnections:    a.maxConn,
		ActiveConnections: active,
		RejectedTotal:     a.rejected.Load(),
		Utilization:       float64(active) / float64(a.maxConn),
	}
}

// AdmissionStats 准入统计
type AdmissionStats struct {
	MaxConnections    int     `json:"max_connections"`
	ActiveConnections int     `json:"active_connections"`
	RejectedTotal     int64   `json:"rejected_total"`
	Utilization       float64 `json:"utilization"` // 0.0 - 1.0
}
