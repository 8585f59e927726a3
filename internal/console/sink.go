package console

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Sink 操作台输出
type Sink interface {
	Write(text string)
}

// Logger 将操作台文本写入日志与 Context；纯数字文本同时显示在数码管上
type Logger struct {
	ctx    *Context
	logger *zap.Logger
}

// NewLogger 创建日志型操作台；ctx 可为 nil
func NewLogger(ctx *Context, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{ctx: ctx, logger: logger}
}

func (l *Logger) Write(text string) {
	l.logger.Info("console", zap.String("text", text))
	if l.ctx == nil {
		return
	}
	l.ctx.Append(text)
	if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
		l.ctx.DisplayNumber(n)
	}
}

// Tee 将输出复制到多个 Sink
type Tee []Sink

func (t Tee) Write(text string) {
	for _, s := range t {
		if s != nil {
			s.Write(text)
		}
	}
}

// Func 函数适配器
type Func func(text string)

func (f Func) Write(text string) { f(text) }
