// Package show 演出控制：按名称加载程序、循环策略、播放记录与日志流
package show

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/isis-master/internal/canned"
	"github.com/taoyao-code/isis-master/internal/console"
	"github.com/taoyao-code/isis-master/internal/player"
)

// Options 控制器参数
type Options struct {
	Player       player.Options
	StepInterval time.Duration
}

// Status 演出状态
type Status struct {
	Program   string        `json:"program,omitempty"`
	RunID     string        `json:"run_id,omitempty"`
	Loop      bool          `json:"loop"`
	Iteration int           `json:"iteration"`
	NextStart *time.Time    `json:"next_start,omitempty"`
	Player    player.Status `json:"player"`
}

// Option 可选依赖
type Option func(*Controller)

func WithRunLog(l RunLog) Option        { return func(c *Controller) { c.runLog = l } }
func WithJournal(j Journal) Option      { return func(c *Controller) { c.journal = j } }
func WithClock(clk player.Clock) Option { return func(c *Controller) { c.clock = clk } }

// WithFinishHook 每轮播放结束回调（err 为终止原因）
func WithFinishHook(fn func(err error)) Option { return func(c *Controller) { c.onFinish = fn } }

// Controller 持有唯一的播放器。Tick 在单个任务中调用；其余方法可并发调用。
type Controller struct {
	player  *player.Player
	opts    Options
	store   ProgramStore
	runLog  RunLog
	journal Journal
	clock   player.Clock
	logger  *zap.Logger

	onFinish func(err error)
	runID    atomic.Value // string
	stepped  func()       // Step 返回 Done 之后、加锁之前调用（测试用）

	mu        sync.Mutex
	program   string
	data      []byte
	loop      bool
	iteration int
	run       *Run
	restartAt time.Time
}

// New 创建控制器，内部以 t 与 sink 构造播放器
func New(t player.Transport, sink console.Sink, store ProgramStore, opts Options, logger *zap.Logger, options ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{opts: opts, store: store, logger: logger, clock: player.SystemClock}
	for _, o := range options {
		o(c)
	}
	c.runID.Store("")
	if c.opts.Player.Tick <= 0 {
		c.opts.Player.Tick = player.DefaultOptions().Tick
	}
	if c.opts.StepInterval <= 0 {
		c.opts.StepInterval = c.opts.Player.Tick
	}
	c.player = player.New(c.journalTransport(t), c.journalConsole(sink), c.clock, c.opts.Player, logger.Named("player"))
	return c
}

// Player 底层播放器（用于挂接指标）
func (c *Controller) Player() *player.Player { return c.player }

// Play 从程序库加载并播放
func (c *Controller) Play(ctx context.Context, name string, loop bool) (Run, error) {
	if c.store == nil {
		return Run{}, errors.New("no program store configured")
	}
	data, err := c.store.Load(ctx, name)
	if err != nil {
		return Run{}, err
	}
	return c.PlayBytes(ctx, name, data, loop)
}

// PlayBytes 播放内存中的预置包字节
func (c *Controller) PlayBytes(ctx context.Context, name string, data []byte, loop bool) (Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.player.State(); s == player.StateRunning || s == player.StateWaiting {
		return Run{}, player.ErrBusy
	}
	if c.run != nil {
		// 上一轮已 Done 但尚未被 Tick 收尾
		c.finishRunLocked(ctx, c.player.Status(), c.player.Err())
	}
	c.program, c.data, c.loop = name, data, loop
	c.iteration = 0
	c.restartAt = time.Time{}
	if err := c.startLocked(ctx); err != nil {
		return Run{}, err
	}
	return *c.run, nil
}

// Stop 停止播放并取消循环
func (c *Controller) Stop() {
	c.mu.Lock()
	c.loop = false
	c.restartAt = time.Time{}
	c.mu.Unlock()
	c.player.Stop()
}

// Status 当前状态
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Program:   c.program,
		RunID:     c.runID.Load().(string),
		Loop:      c.loop,
		Iteration: c.iteration,
		Player:    c.player.Status(),
	}
	if !c.restartAt.IsZero() {
		t := c.restartAt
		st.NextStart = &t
	}
	return st
}

// Tick 驱动一次播放器，并在一轮结束时记录、按循环策略重新开始
func (c *Controller) Tick(ctx context.Context) player.State {
	if s := c.player.Step(ctx); s != player.StateDone {
		return s
	}
	if c.stepped != nil {
		c.stepped()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// 加锁前可能已由 PlayBytes 收尾并开始新一轮
	if s := c.player.State(); s != player.StateDone {
		return s
	}
	if c.run != nil {
		st, err := c.player.Status(), c.player.Err()
		c.finishRunLocked(ctx, st, err)
		if c.loop && err == nil && st.Records > 0 {
			c.restartAt = c.nextStart(st)
		} else {
			c.loop = false
		}
	}
	if c.loop && !c.restartAt.IsZero() && !c.clock.Now().Before(c.restartAt) {
		c.restartAt = time.Time{}
		if err := c.startLocked(ctx); err != nil {
			c.logger.Error("loop restart failed", zap.String("program", c.program), zap.Error(err))
			c.loop = false
		}
	}
	return c.player.State()
}

// nextStart 绝对时间模式下按 ENDS 携带的结束 tick 对齐下一轮；否则立即开始
func (c *Controller) nextStart(st player.Status) time.Time {
	if c.opts.Player.WaitMode == player.WaitAbsolute && st.EndTick != nil && st.Epoch != nil {
		return st.Epoch.Add(time.Duration(*st.EndTick) * c.opts.Player.Tick)
	}
	return c.clock.Now()
}

// Run 周期调用 Tick，直到 ctx 结束
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.StepInterval)
	defer ticker.Stop()
	c.logger.Info("show controller started", zap.Duration("step_interval", c.opts.StepInterval))
	for {
		c.Tick(ctx)
		select {
		case <-ctx.Done():
			c.logger.Info("show controller stopped")
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) startLocked(ctx context.Context) error {
	if err := c.player.Start(canned.NewBytesReader(c.data)); err != nil {
		return err
	}
	c.iteration++
	run := Run{
		ID:        uuid.New(),
		Program:   c.program,
		Loop:      c.loop,
		Iteration: c.iteration,
		StartedAt: c.clock.Now(),
	}
	c.run = &run
	c.runID.Store(run.ID.String())
	c.logger.Info("show started",
		zap.String("program", run.Program),
		zap.String("run_id", run.ID.String()),
		zap.Int("iteration", run.Iteration),
		zap.Bool("loop", run.Loop),
	)
	c.appendJournal("state", fmt.Sprintf("start %s #%d", run.Program, run.Iteration))
	if c.runLog != nil {
		if err := c.runLog.Begin(ctx, run); err != nil {
			c.logger.Warn("run log begin failed", zap.String("run_id", run.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (c *Controller) finishRunLocked(ctx context.Context, st player.Status, err error) {
	run := c.run
	c.run = nil
	result := "done"
	if err != nil {
		result = err.Error()
	}
	c.appendJournal("state", result)
	if c.runLog != nil {
		if lerr := c.runLog.Finish(ctx, run.ID, st, err); lerr != nil {
			c.logger.Warn("run log finish failed", zap.String("run_id", run.ID.String()), zap.Error(lerr))
		}
	}
	if c.onFinish != nil {
		c.onFinish(err)
	}
}

func (c *Controller) appendJournal(kind, text string) {
	if c.journal == nil {
		return
	}
	c.journal.Append(Entry{RunID: c.runID.Load().(string), Kind: kind, Text: text, At: c.clock.Now()})
}

func (c *Controller) journalConsole(sink console.Sink) player.Console {
	return console.Tee{sink, console.Func(func(text string) { c.appendJournal("console", text) })}
}

func (c *Controller) journalTransport(t player.Transport) player.Transport {
	return player.TransportFunc(func(ctx context.Context, framed []byte) error {
		if t == nil {
			return nil
		}
		if err := t.Send(ctx, framed); err != nil {
			return err
		}
		c.appendJournal("frame", hex.EncodeToString(framed))
		return nil
	})
}
