// Package player 实现预置包序列播放器：协作式状态机，由周期 tick 驱动
package player

import (
	"context"
	"errors"
	"time"

	"github.com/taoyao-code/isis-master/internal/canned"
)

// State 播放状态
type State int32

const (
	StateIdle    State = iota // 未开始
	StateRunning              // 正在读取/发送记录
	StateWaiting              // WAIT 定时挂起
	StateDone                 // 终态（ENDS、输入耗尽、停止或输入损坏）
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalText 以名称形式序列化（用于 JSON 状态查询）
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// WaitMode WAIT 数据解释方式
type WaitMode int

const (
	// WaitAbsolute WAIT 数据为自 tick 纪元（开始或 RESET_TIME）起的绝对 tick；程序编译器按此模式输出，为默认值
	WaitAbsolute WaitMode = iota
	// WaitRelative WAIT 数据为自读到该 WAIT 起需暂停的 tick 数
	WaitRelative
)

// ParseWaitMode 解析配置中的 wait 模式
func ParseWaitMode(s string) (WaitMode, error) {
	switch s {
	case "", "absolute":
		return WaitAbsolute, nil
	case "relative":
		return WaitRelative, nil
	default:
		return WaitAbsolute, errors.New("wait mode must be relative or absolute")
	}
}

var (
	ErrBadRecord       = canned.ErrBadRecord
	ErrSourceExhausted = canned.ErrSourceExhausted
	ErrBusy            = errors.New("player is busy")
	ErrStopped         = errors.New("playback stopped")
)

// Source 记录来源；结束时返回 io.EOF
type Source interface {
	Next() (canned.Record, error)
}

// Transport 成帧字节的发送通道（外部协作者）
type Transport interface {
	Send(ctx context.Context, framed []byte) error
}

// Console 操作台输出（外部协作者）
type Console interface {
	Write(text string)
}

// Clock 时间来源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 系统时钟
var SystemClock Clock = systemClock{}

// TransportFunc 函数适配为 Transport
type TransportFunc func(ctx context.Context, framed []byte) error

func (f TransportFunc) Send(ctx context.Context, framed []byte) error { return f(ctx, framed) }

// ConsoleFunc 函数适配为 Console
type ConsoleFunc func(text string)

func (f ConsoleFunc) Write(text string) { f(text) }

// Status 诊断快照
type Status struct {
	State      State      `json:"state"`
	Emitted    int        `json:"emitted"`
	BadRecords int        `json:"bad_records"`
	SendErrors int        `json:"send_errors"`
	Records    int        `json:"records"`
	WakeAt     *time.Time `json:"wake_at,omitempty"`
	EndTick    *uint16    `json:"end_tick,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Epoch      *time.Time `json:"epoch,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}
