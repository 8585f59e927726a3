// Package transport 主控到串行总线的出站链路
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// Transport 发送一个已成帧的字节缓冲；调用同步完成
type Transport interface {
	Send(ctx context.Context, framed []byte) error
}

// Func 函数适配器
type Func func(ctx context.Context, framed []byte) error

func (f Func) Send(ctx context.Context, framed []byte) error { return f(ctx, framed) }

// Receiver 接收入站字节（isis.Adapter 实现了它）
type Receiver interface {
	ProcessBytes(p []byte) error
}

var ErrClosed = errors.New("transport closed")

// Writer 将帧写入任意 io.Writer（标准输出、文件、预置包录制）
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (t *Writer) Send(ctx context.Context, framed []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeFull(t.w, framed)
}

func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Multi 将每一帧发送到全部下游；全部尝试后合并错误
type Multi []Transport

func (m Multi) Send(ctx context.Context, framed []byte) error {
	var errs []error
	for i, t := range m {
		if t == nil {
			continue
		}
		if err := t.Send(ctx, framed); err != nil {
			errs = append(errs, fmt.Errorf("transport %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Paced 按字节速率限速，模拟/保护低速总线
type Paced struct {
	next    Transport
	limiter *rate.Limiter
}

// NewPaced bytesPerSecond<=0 时不限速；burst 至少容纳一个最大帧
func NewPaced(next Transport, bytesPerSecond, burst int) *Paced {
	if bytesPerSecond <= 0 {
		return &Paced{next: next}
	}
	if burst < 64 {
		burst = 64
	}
	return &Paced{next: next, limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

func (p *Paced) Send(ctx context.Context, framed []byte) error {
	if p.limiter != nil {
		n := len(framed)
		if b := p.limiter.Burst(); n > b {
			n = b
		}
		if err := p.limiter.WaitN(ctx, n); err != nil {
			return err
		}
	}
	return p.next.Send(ctx, framed)
}
