package tcpserver

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/taoyao-code/isis-master/internal/transport"
)

var errConnClosed = errors.New("bridge connection closed")

// ConnContext 单个桥接连接：异步写队列 + 读循环
type ConnContext struct {
	s      *Server
	c      net.Conn
	id     uint64
	writeC chan []byte
	doneC  chan struct{}
	once   sync.Once
	recv   transport.Receiver
}

func newConnContext(s *Server, c net.Conn, id uint64) *ConnContext {
	cc := &ConnContext{
		s:      s,
		c:      c,
		id:     id,
		writeC: make(chan []byte, 64),
		doneC:  make(chan struct{}),
	}
	if s.newReceiver != nil {
		cc.recv = s.newReceiver()
	}
	return cc
}

// ID 连接ID（单进程唯一递增）
func (cc *ConnContext) ID() uint64 { return cc.id }

// RemoteAddr 远端地址
func (cc *ConnContext) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// Write 入队一帧；写队列满时最多等待 WriteTimeout
func (cc *ConnContext) Write(b []byte) error {
	dup := make([]byte, len(b))
	copy(dup, b)
	to := cc.s.cfg.WriteTimeout
	if to <= 0 {
		to = 2 * time.Second
	}
	timer := time.NewTimer(to)
	defer timer.Stop()
	select {
	case <-cc.doneC:
		return errConnClosed
	case cc.writeC <- dup:
		return nil
	case <-timer.C:
		return errors.New("bridge write queue timeout")
	}
}

// Close 关闭连接
func (cc *ConnContext) Close() error {
	var err error
	cc.once.Do(func() {
		close(cc.doneC)
		err = cc.c.Close()
	})
	return err
}

// Done 连接关闭通知
func (cc *ConnContext) Done() <-chan struct{} { return cc.doneC }

// run 启动读/写循环，阻塞直至连接结束
func (cc *ConnContext) run() {
	defer cc.Close()

	doneW := make(chan struct{})
	go func() {
		defer close(doneW)
		for {
			select {
			case <-cc.doneC:
				return
			case msg := <-cc.writeC:
				if cc.s.cfg.WriteTimeout > 0 {
					_ = cc.c.SetWriteDeadline(time.Now().Add(cc.s.cfg.WriteTimeout))
				}
				if _, err := cc.c.Write(msg); err != nil {
					cc.s.logger.Debug("bridge write failed", cc.s.connFields(cc, err)...)
					_ = cc.Close()
					return
				}
			}
		}
	}()

	buf := make([]byte, 1024)
	for {
		if cc.s.cfg.ReadTimeout > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(cc.s.cfg.ReadTimeout))
		}
		n, err := cc.c.Read(buf)
		if n > 0 {
			if cc.s.onRecvBytes != nil {
				cc.s.onRecvBytes(n)
			}
			if cc.recv != nil {
				if perr := cc.recv.ProcessBytes(buf[:n]); perr != nil {
					cc.s.logger.Debug("bridge inbound handler failed", cc.s.connFields(cc, perr)...)
				}
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// 桥接空闲属正常，继续等待
				continue
			}
			break
		}
	}
	_ = cc.Close()
	<-doneW
}
