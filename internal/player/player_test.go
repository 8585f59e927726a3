package player

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/isis-master/internal/canned"
	"github.com/taoyao-code/isis-master/internal/protocol/isis"
	"github.com/taoyao-code/isis-master/internal/protocol/slip"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2015, 3, 26, 20, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu      sync.Mutex
	frames  [][]byte
	console []string
	failOn  isis.Command
	onSend  func() // 模拟发送耗时
}

func (r *recorder) Send(_ context.Context, framed []byte) error {
	if r.onSend != nil {
		r.onSend()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := slip.Decode(framed)
	if err != nil {
		return err
	}
	if r.failOn != 0 && isis.Command(raw[0]) == r.failOn {
		return errors.New("line busy")
	}
	r.frames = append(r.frames, raw)
	return nil
}

func (r *recorder) Write(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.console = append(r.console, text)
}

func (r *recorder) commands() []isis.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]isis.Command, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, isis.Command(f[0]))
	}
	return out
}

func wait(ticks uint16) []byte {
	return []byte{0xFF, byte(canned.MetaWait), byte(ticks), byte(ticks >> 8)}
}

var (
	ends      = []byte{0xFF, byte(canned.MetaEnds)}
	resetTime = []byte{0xFF, byte(canned.MetaResetTime)}
)

func console(text string) []byte {
	return append([]byte{0xFF, byte(canned.MetaConsole)}, text...)
}

func newTestPlayer(mode WaitMode) (*Player, *recorder, *fakeClock) {
	rec := &recorder{}
	clk := newFakeClock()
	p := New(rec, rec, clk, Options{Tick: time.Millisecond, WaitMode: mode, MaxRecordsPerStep: 16}, nil)
	return p, rec, clk
}

func TestPlayer_FillWaitRotateEnds(t *testing.T) {
	p, rec, clk := newTestPlayer(WaitRelative)
	ctx := context.Background()
	src := canned.NewRawSource(
		isis.MustSerialize(isis.FillRGB(isis.AddressAllCall, isis.Once, 255, 0, 0)),
		wait(100),
		isis.MustSerialize(isis.Rotate(isis.EntitySides, isis.Once, 1, 0)),
		ends,
		isis.MustSerialize(isis.Randomize(isis.AddressAllCall, isis.Once)),
	)
	assert.Equal(t, StateIdle, p.State())
	require.NoError(t, p.Start(src))
	assert.Equal(t, StateRunning, p.State())

	assert.Equal(t, StateWaiting, p.Step(ctx))
	assert.Equal(t, []isis.Command{isis.CmdFillRGB}, rec.commands())
	st := p.Status()
	require.NotNil(t, st.WakeAt)
	assert.Equal(t, clk.Now().Add(100*time.Millisecond), *st.WakeAt)

	clk.Advance(99 * time.Millisecond)
	assert.Equal(t, StateWaiting, p.Step(ctx))
	assert.Len(t, rec.commands(), 1)

	clk.Advance(time.Millisecond)
	assert.Equal(t, StateDone, p.Step(ctx))
	assert.Equal(t, []isis.Command{isis.CmdFillRGB, isis.CmdRotate}, rec.commands())

	// Done 为终态
	clk.Advance(time.Second)
	assert.Equal(t, StateDone, p.Step(ctx))
	assert.Len(t, rec.commands(), 2)
	assert.NoError(t, p.Err())
	assert.Equal(t, 2, p.Status().Emitted)
}

func TestPlayer_BadRecordSkipped(t *testing.T) {
	p, rec, _ := newTestPlayer(WaitRelative)
	src := canned.NewRawSource(
		isis.MustSerialize(isis.FillD(isis.AddressAllCall, isis.Once, 0)),
		[]byte{0x80, 0xFF, 0xFF, 0, 0, 0, 0, 0},
		isis.MustSerialize(isis.ResetClock(isis.AddressAllCall)),
	)
	require.NoError(t, p.Start(src))
	assert.Equal(t, StateDone, p.Step(context.Background()))

	assert.Equal(t, []isis.Command{isis.CmdFillD, isis.CmdResetClock}, rec.commands())
	require.Len(t, rec.console, 1)
	assert.Contains(t, rec.console[0], "0x80")
	st := p.Status()
	assert.Equal(t, 1, st.BadRecords)
	assert.Equal(t, 2, st.Emitted)
	assert.Equal(t, 3, st.Records)
}

func TestPlayer_EmptySequence(t *testing.T) {
	p, rec, _ := newTestPlayer(WaitRelative)
	var states []State
	p.SetMetricsCallbacks(nil, nil, func(s State) { states = append(states, s) })

	require.NoError(t, p.Start(canned.NewRawSource()))
	assert.Equal(t, StateDone, p.Step(context.Background()))
	assert.Equal(t, []State{StateRunning, StateDone}, states)
	assert.Empty(t, rec.frames)
}

func TestPlayer_ConsoleAndBadMeta(t *testing.T) {
	p, rec, _ := newTestPlayer(WaitRelative)
	src := canned.NewRawSource(
		console("42"),
		[]byte{0xFF, 0x07},
		[]byte{0xFF, byte(canned.MetaWait)},
		ends,
	)
	require.NoError(t, p.Start(src))
	assert.Equal(t, StateDone, p.Step(context.Background()))
	require.Len(t, rec.console, 3)
	assert.Equal(t, "42", rec.console[0])
	assert.Contains(t, rec.console[1], "unknown meta command 0x07")
	assert.Contains(t, rec.console[2], "skipped record")
	assert.Equal(t, 2, p.Status().BadRecords)
}

func TestPlayer_CorruptSourceTerminates(t *testing.T) {
	p, rec, _ := newTestPlayer(WaitRelative)
	data := append(slip.Encode(isis.MustSerialize(isis.ResetClock(1))), 0x01, 0x02)
	require.NoError(t, p.Start(canned.NewBytesReader(data)))
	assert.Equal(t, StateDone, p.Step(context.Background()))
	assert.Len(t, rec.frames, 1)
	assert.ErrorIs(t, p.Err(), ErrSourceExhausted)
	require.NotEmpty(t, rec.console)
	assert.Contains(t, rec.console[len(rec.console)-1], "playback aborted")
}

type errSource struct{}

func (errSource) Next() (canned.Record, error) { return nil, errors.New("usb unplugged") }

func TestPlayer_ForeignSourceErrorIsWrapped(t *testing.T) {
	p, _, _ := newTestPlayer(WaitRelative)
	require.NoError(t, p.Start(errSource{}))
	p.Step(context.Background())
	assert.ErrorIs(t, p.Err(), ErrSourceExhausted)
	assert.Contains(t, p.Err().Error(), "usb unplugged")
}

func TestPlayer_SendFailureContinues(t *testing.T) {
	p, rec, _ := newTestPlayer(WaitRelative)
	rec.failOn = isis.CmdRotate
	src := canned.NewRawSource(
		isis.MustSerialize(isis.Rotate(1, isis.Once, 1, 0)),
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 1, 1, 1)),
	)
	require.NoError(t, p.Start(src))
	assert.Equal(t, StateDone, p.Step(context.Background()))
	assert.Equal(t, []isis.Command{isis.CmdFillRGB}, rec.commands())
	assert.Equal(t, 1, p.Status().SendErrors)
}

func TestPlayer_StopIsCooperative(t *testing.T) {
	p, rec, clk := newTestPlayer(WaitRelative)
	src := canned.NewRawSource(
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 1, 1, 1)),
		wait(1000),
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 2, 2, 2)),
	)
	require.NoError(t, p.Start(src))
	assert.Equal(t, StateWaiting, p.Step(context.Background()))

	p.Stop()
	assert.Equal(t, StateWaiting, p.State())
	clk.Advance(2 * time.Second)
	assert.Equal(t, StateDone, p.Step(context.Background()))
	assert.Len(t, rec.frames, 1)
	assert.ErrorIs(t, p.Err(), ErrStopped)
}

func TestPlayer_StartWhileBusy(t *testing.T) {
	p, _, _ := newTestPlayer(WaitRelative)
	require.NoError(t, p.Start(canned.NewRawSource(wait(10))))
	p.Step(context.Background())
	assert.ErrorIs(t, p.Start(canned.NewRawSource()), ErrBusy)
	assert.Error(t, p.Start(nil))
}

func TestPlayer_RestartWithFreshCursor(t *testing.T) {
	p, rec, _ := newTestPlayer(WaitRelative)
	seq := [][]byte{isis.MustSerialize(isis.ResetClock(isis.AddressAllCall)), ends}
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Start(canned.NewRawSource(seq...)))
		assert.Equal(t, StateDone, p.Step(context.Background()))
	}
	assert.Len(t, rec.frames, 3)
}

func TestPlayer_AbsoluteWaitUsesEpoch(t *testing.T) {
	p, rec, clk := newTestPlayer(WaitAbsolute)
	src := canned.NewRawSource(
		resetTime,
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 1, 1, 1)),
		wait(50),
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 2, 2, 2)),
		wait(80),
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 3, 3, 3)),
		wait(20), // 已过去的 tick，不再等待
		[]byte{0xFF, byte(canned.MetaEnds), 100, 0},
	)
	require.NoError(t, p.Start(src))
	ctx := context.Background()
	assert.Equal(t, StateWaiting, p.Step(ctx))

	clk.Advance(50 * time.Millisecond)
	assert.Equal(t, StateWaiting, p.Step(ctx))
	assert.Len(t, rec.frames, 2)

	// 绝对模式：第二次等待只需再过 30ms
	clk.Advance(30 * time.Millisecond)
	assert.Equal(t, StateDone, p.Step(ctx))
	assert.Len(t, rec.frames, 3)
	st := p.Status()
	require.NotNil(t, st.EndTick)
	assert.Equal(t, uint16(100), *st.EndTick)
}

func TestPlayer_RelativeWaitAfterLateTick(t *testing.T) {
	p, rec, clk := newTestPlayer(WaitRelative)
	src := canned.NewRawSource(
		isis.MustSerialize(isis.FillRGB(isis.AddressAllCall, isis.Once, 255, 0, 0)),
		wait(100),
		isis.MustSerialize(isis.Rotate(isis.EntitySides, isis.Once, 1, 0)),
		ends,
	)
	require.NoError(t, p.Start(src))
	ctx := context.Background()

	// 第一次调度晚到 200ms，WAIT 仍需完整暂停
	clk.Advance(200 * time.Millisecond)
	assert.Equal(t, StateWaiting, p.Step(ctx))
	assert.Equal(t, []isis.Command{isis.CmdFillRGB}, rec.commands())
	st := p.Status()
	require.NotNil(t, st.WakeAt)
	assert.Equal(t, clk.Now().Add(100*time.Millisecond), *st.WakeAt)

	clk.Advance(99 * time.Millisecond)
	assert.Equal(t, StateWaiting, p.Step(ctx))
	clk.Advance(time.Millisecond)
	assert.Equal(t, StateDone, p.Step(ctx))
	assert.Equal(t, []isis.Command{isis.CmdFillRGB, isis.CmdRotate}, rec.commands())
}

func TestPlayer_RelativeWaitAfterSlowSend(t *testing.T) {
	p, rec, clk := newTestPlayer(WaitRelative)
	rec.onSend = func() { clk.Advance(150 * time.Millisecond) }
	src := canned.NewRawSource(
		isis.MustSerialize(isis.FillRGB(isis.AddressAllCall, isis.Once, 255, 0, 0)),
		wait(100),
		isis.MustSerialize(isis.Rotate(isis.EntitySides, isis.Once, 1, 0)),
		wait(10),
		isis.MustSerialize(isis.ResetClock(1)),
	)
	require.NoError(t, p.Start(src))
	ctx := context.Background()

	assert.Equal(t, StateWaiting, p.Step(ctx))
	require.NotNil(t, p.Status().WakeAt)
	assert.Equal(t, clk.Now().Add(100*time.Millisecond), *p.Status().WakeAt)

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, StateWaiting, p.Step(ctx))
	assert.Equal(t, []isis.Command{isis.CmdFillRGB, isis.CmdRotate}, rec.commands())

	clk.Advance(10 * time.Millisecond)
	assert.Equal(t, StateDone, p.Step(ctx))
	assert.Len(t, rec.frames, 3)
}

func TestPlayer_CompiledProgramDefaultTempo(t *testing.T) {
	src, err := os.ReadFile("../../programs/rbow1.yaml")
	require.NoError(t, err)
	data, res, err := canned.CompileBytes(src)
	require.NoError(t, err)

	rec := &recorder{}
	clk := newFakeClock()
	opts := DefaultOptions()
	p := New(rec, rec, clk, opts, nil)
	require.NoError(t, p.Start(canned.NewBytesReader(data)))
	start := clk.Now()

	ctx := context.Background()
	for i := 0; p.Step(ctx) != StateDone; i++ {
		require.Less(t, i, 1000)
		st := p.Status()
		require.Equal(t, StateWaiting, st.State)
		clk.Advance(st.WakeAt.Sub(clk.Now()))
	}

	// 最后一个 wait_for_tick 为 4750，ENDS 记录结束 tick 5200
	assert.Equal(t, 4750*opts.Tick, clk.Now().Sub(start))
	st := p.Status()
	require.NotNil(t, st.EndTick)
	assert.Equal(t, res.EndTick, *st.EndTick)
	assert.Zero(t, st.BadRecords)
	assert.Equal(t, st.Emitted, len(rec.frames))
}

func TestPlayer_StepBudgetYields(t *testing.T) {
	rec := &recorder{}
	p := New(rec, rec, newFakeClock(), Options{Tick: time.Millisecond, MaxRecordsPerStep: 2}, nil)
	raws := make([][]byte, 5)
	for i := range raws {
		raws[i] = isis.MustSerialize(isis.ResetClock(uint16(i)))
	}
	require.NoError(t, p.Start(canned.NewRawSource(raws...)))
	ctx := context.Background()
	assert.Equal(t, StateRunning, p.Step(ctx))
	assert.Len(t, rec.frames, 2)
	assert.Equal(t, StateRunning, p.Step(ctx))
	assert.Equal(t, StateDone, p.Step(ctx))
	assert.Len(t, rec.frames, 5)
}

func TestPlayer_RunLoop(t *testing.T) {
	rec := &recorder{}
	p := New(rec, rec, nil, Options{Tick: time.Millisecond}, nil)
	var sent int
	p.SetMetricsCallbacks(func(isis.Command, int) { sent++ }, nil, nil)
	require.NoError(t, p.Start(canned.NewRawSource(
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 1, 1, 1)),
		wait(5),
		isis.MustSerialize(isis.FillRGB(1, isis.Once, 2, 2, 2)),
	)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return p.State() == StateDone }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
	assert.Len(t, rec.commands(), 2)
	assert.Equal(t, 2, sent)
}

func TestParseWaitMode(t *testing.T) {
	m, err := ParseWaitMode("relative")
	require.NoError(t, err)
	assert.Equal(t, WaitRelative, m)
	m, err = ParseWaitMode("")
	require.NoError(t, err)
	assert.Equal(t, WaitAbsolute, m)
	assert.Equal(t, WaitAbsolute, DefaultOptions().WaitMode)
	_, err = ParseWaitMode("sideways")
	assert.Error(t, err)
}
