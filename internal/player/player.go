package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/isis-master/internal/canned"
	"github.com/taoyao-code/isis-master/internal/protocol/isis"
	"github.com/taoyao-code/isis-master/internal/protocol/slip"
)

// Options 播放器参数
type Options struct {
	Tick              time.Duration // 一个 tick 的时长
	WaitMode          WaitMode
	MaxRecordsPerStep int // 每次 Step 最多处理的记录数，处理完即让出
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{Tick: 10 * time.Millisecond, WaitMode: WaitAbsolute, MaxRecordsPerStep: 64}
}

// Player 预置序列播放器。
// Step 在单个协作任务中调用；State/Status/Stop 可从其他 goroutine 调用。
type Player struct {
	mu        sync.Mutex
	opts      Options
	transport Transport
	console   Console
	clock     Clock
	logger    *zap.Logger

	state   State
	src     Source
	stopReq atomic.Bool

	epoch  time.Time // tick 纪元（开始或 RESET_TIME）
	wakeAt time.Time

	stats   Status
	lastErr error

	// 可选指标回调
	onSent      func(cmd isis.Command, n int)
	onBadRecord func()
	onState     func(State)
}

// New 创建播放器；clock 为 nil 时使用系统时钟
func New(t Transport, c Console, clock Clock, opts Options, logger *zap.Logger) *Player {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultOptions().Tick
	}
	if opts.MaxRecordsPerStep <= 0 {
		opts.MaxRecordsPerStep = DefaultOptions().MaxRecordsPerStep
	}
	if c == nil {
		c = ConsoleFunc(func(string) {})
	}
	return &Player{opts: opts, transport: t, console: c, clock: clock, logger: logger}
}

// SetMetricsCallbacks 设置指标回调
func (p *Player) SetMetricsCallbacks(onSent func(isis.Command, int), onBadRecord func(), onState func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSent, p.onBadRecord, p.onState = onSent, onBadRecord, onState
}

// Start 以新游标开始播放：Idle/Done -> Running
func (p *Player) Start(src Source) error {
	if src == nil {
		return errors.New("nil source")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning || p.state == StateWaiting {
		return ErrBusy
	}
	p.setState(StateIdle)
	now := p.clock.Now()
	p.src = src
	p.stopReq.Store(false)
	p.epoch, p.wakeAt = now, time.Time{}
	p.stats = Status{StartedAt: &now}
	p.lastErr = nil
	p.setState(StateRunning)
	p.logger.Info("playback started", zap.Duration("tick", p.opts.Tick))
	return nil
}

// Stop 请求停止；在下一次 Step 边界转入 Done，不打断正在进行的发送
func (p *Player) Stop() { p.stopReq.Store(true) }

// State 当前状态
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err 最近一次终止原因（正常结束为 nil）
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Status 诊断快照
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stats
	st.State = p.state
	if p.state == StateWaiting {
		w := p.wakeAt
		st.WakeAt = &w
	}
	if !p.epoch.IsZero() {
		e := p.epoch
		st.Epoch = &e
	}
	return st
}

// Step 执行一次协作调度：处理到 WAIT、终态或达到单次记录上限为止，从不阻塞等待
func (p *Player) Step(ctx context.Context) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopReq.Load() && (p.state == StateRunning || p.state == StateWaiting) {
		p.stopReq.Store(false)
		p.console.Write("playback stopped")
		p.finish(ErrStopped)
		return p.state
	}

	switch p.state {
	case StateWaiting:
		if p.clock.Now().Before(p.wakeAt) {
			return p.state
		}
		p.wakeAt = time.Time{}
		p.setState(StateRunning)
	case StateRunning:
	default:
		return p.state
	}

	for i := 0; i < p.opts.MaxRecordsPerStep && p.state == StateRunning; i++ {
		if ctx.Err() != nil {
			break
		}
		p.advance(ctx)
	}
	return p.state
}

// Run 以固定间隔驱动 Step，直到 ctx 结束
func (p *Player) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = p.opts.Tick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.Step(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Player) advance(ctx context.Context) {
	rec, err := p.src.Next()
	switch {
	case err == nil:
		p.stats.Records++
		p.handle(ctx, rec)
	case errors.Is(err, io.EOF):
		p.finish(nil)
	case errors.Is(err, ErrBadRecord):
		p.stats.Records++
		p.badRecord(err)
	default:
		if !errors.Is(err, ErrSourceExhausted) {
			err = fmt.Errorf("%w: %w", ErrSourceExhausted, err)
		}
		p.report("playback aborted", err)
		p.finish(err)
	}
}

func (p *Player) handle(ctx context.Context, rec canned.Record) {
	switch r := rec.(type) {
	case canned.PacketRecord:
		p.emit(ctx, r.Packet)
	case canned.MetaRecord:
		p.meta(r)
	default:
		p.badRecord(fmt.Errorf("%w: unsupported record %T", ErrBadRecord, rec))
	}
}

func (p *Player) emit(ctx context.Context, pkt isis.Packet) {
	raw, err := isis.Serialize(pkt)
	if err != nil {
		p.badRecord(fmt.Errorf("%w: %w", ErrBadRecord, err))
		return
	}
	framed := slip.Encode(raw)
	if p.transport != nil {
		if err := p.transport.Send(ctx, framed); err != nil {
			p.stats.SendErrors++
			p.report(fmt.Sprintf("send %s failed", pkt.Cmd()), err)
			return
		}
	}
	p.stats.Emitted++
	p.logger.Debug("packet sent",
		zap.Stringer("cmd", pkt.Cmd()),
		zap.Stringer("target", isis.ResolvePacket(pkt)),
		zap.Int("bytes", len(framed)),
	)
	if p.onSent != nil {
		p.onSent(pkt.Cmd(), len(framed))
	}
}

func (p *Player) meta(m canned.MetaRecord) {
	switch m.Command {
	case canned.MetaConsole:
		p.console.Write(m.Text())
	case canned.MetaWait:
		ticks, ok := m.Ticks()
		if !ok {
			p.badRecord(fmt.Errorf("%w: WAIT without duration", ErrBadRecord))
			return
		}
		// 相对模式以读到 WAIT 的时刻为基准
		now := p.clock.Now()
		base := now
		if p.opts.WaitMode == WaitAbsolute {
			base = p.epoch
		}
		wake := base.Add(time.Duration(ticks) * p.opts.Tick)
		if now.Before(wake) {
			p.wakeAt = wake
			p.setState(StateWaiting)
		}
	case canned.MetaResetTime:
		p.epoch = p.clock.Now()
	case canned.MetaEnds:
		if v, ok := m.Ticks(); ok {
			p.stats.EndTick = &v
		}
		p.finish(nil)
	default:
		p.badRecord(fmt.Errorf("%w: unknown meta command 0x%02X", ErrBadRecord, uint8(m.Command)))
	}
}

// badRecord 上报并跳过单条坏记录
func (p *Player) badRecord(err error) {
	p.stats.BadRecords++
	if p.onBadRecord != nil {
		p.onBadRecord()
	}
	p.report("skipped record", err)
}

// report 通过操作台上报错误，并记录日志
func (p *Player) report(msg string, err error) {
	p.stats.LastError = err.Error()
	p.console.Write(fmt.Sprintf("%s: %v", msg, err))
	p.logger.Warn(msg, zap.Error(err))
}

func (p *Player) finish(err error) {
	now := p.clock.Now()
	p.stats.FinishedAt = &now
	p.lastErr = err
	p.wakeAt = time.Time{}
	p.src = nil
	p.setState(StateDone)
	p.logger.Info("playback finished",
		zap.Int("emitted", p.stats.Emitted),
		zap.Int("bad_records", p.stats.BadRecords),
		zap.Error(err),
	)
}

func (p *Player) setState(s State) {
	if p.state == s {
		return
	}
	p.state = s
	if p.onState != nil {
		p.onState(s)
	}
}
