package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常发送
	BreakerOpen                         // 快速失败
	BreakerHalfOpen                     // 放行一帧试探
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrLinkDown 链路熔断期间发送直接失败
var ErrLinkDown = errors.New("link down: too many consecutive send failures")

// Breaker 连续发送失败达到阈值后熔断，openTimeout 后放行一帧试探；
// 试探成功恢复，失败重新熔断。避免串口拔出时每帧都阻塞到写超时。
type Breaker struct {
	next Transport

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
	trips       int64
	threshold   int
	openTimeout time.Duration
	now         func() time.Time

	onStateChange func(from, to BreakerState)
}

// NewBreaker threshold<=0 默认 5；openTimeout<=0 默认 5s
func NewBreaker(next Transport, threshold int, openTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openTimeout <= 0 {
		openTimeout = 5 * time.Second
	}
	return &Breaker{next: next, threshold: threshold, openTimeout: openTimeout, now: time.Now}
}

// SetStateChangeCallback 状态变化回调（同步调用，勿阻塞）
func (b *Breaker) SetStateChangeCallback(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

func (b *Breaker) Send(ctx context.Context, framed []byte) error {
	if err := b.before(); err != nil {
		return err
	}
	err := b.next.Send(ctx, framed)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.openTimeout {
			return ErrLinkDown
		}
		b.transition(BreakerHalfOpen)
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		b.transition(BreakerClosed)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.trips++
		}
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

// State 当前状态
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerStats 熔断器统计
type BreakerStats struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
	Trips    int64  `json:"trips"`
}

// Stats 统计快照
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{State: b.state.String(), Failures: b.failures, Trips: b.trips}
}
