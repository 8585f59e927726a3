// Package tcpserver RS-485/TCP 桥接监听：桥接设备主动接入，主控向全部连接广播帧
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/isis-master/internal/config"
	"github.com/taoyao-code/isis-master/internal/transport"
)

// Server 桥接服务，实现 transport.Transport
type Server struct {
	cfg       cfgpkg.BridgeConfig
	logger    *zap.Logger
	admission *Admission

	ln    net.Listener
	wg    sync.WaitGroup
	stopC chan struct{}
	once  sync.Once

	mu         sync.RWMutex
	conns      map[uint64]*ConnContext
	nextConnID atomic.Uint64

	newReceiver func() transport.Receiver

	// 可选指标回调
	onAccept    func()
	onRecvBytes func(n int)
	onConns     func(n int)
}

// New 创建桥接服务
func New(cfg cfgpkg.BridgeConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		admission: NewAdmission(cfg.MaxConnections, cfg.AcceptRate, cfg.AcceptBurst, 0),
		stopC:     make(chan struct{}),
		conns:     make(map[uint64]*ConnContext),
	}
}

// SetReceiverFactory 为每个连接创建入站处理器（流式解码器有状态，不能跨连接共享）
func (s *Server) SetReceiverFactory(f func() transport.Receiver) { s.newReceiver = f }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onRecvBytes func(int), onConns func(int)) {
	s.onAccept, s.onRecvBytes, s.onConns = onAccept, onRecvBytes, onConns
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("bridge listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.logger.Info("bridge listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			// 短暂错误等待后重试
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if err := s.admission.Acquire(context.Background()); err != nil {
			s.logger.Warn("bridge connection rejected", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			_ = conn.Close()
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn, s.nextConnID.Add(1))
		s.track(cc, true)
		s.logger.Info("bridge connected", zap.Uint64("conn_id", cc.ID()), zap.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.admission.Release()
			cc.run()
			s.track(cc, false)
			s.logger.Info("bridge disconnected", zap.Uint64("conn_id", cc.ID()))
		}()
	}
}

func (s *Server) track(cc *ConnContext, add bool) {
	s.mu.Lock()
	if add {
		s.conns[cc.ID()] = cc
	} else {
		delete(s.conns, cc.ID())
	}
	n := len(s.conns)
	s.mu.Unlock()
	if s.onConns != nil {
		s.onConns(n)
	}
}

// Conns 当前连接数
func (s *Server) Conns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Stats 准入统计
func (s *Server) Stats() AdmissionStats { return s.admission.Stats() }

// Send 向全部桥接连接广播一帧。无连接时帧被丢弃并返回 nil。
func (s *Server) Send(ctx context.Context, framed []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	targets := make([]*ConnContext, 0, len(s.conns))
	for _, cc := range s.conns {
		targets = append(targets, cc)
	}
	s.mu.RUnlock()

	var errs []error
	for _, cc := range targets {
		if err := cc.Write(framed); err != nil {
			errs = append(errs, fmt.Errorf("bridge conn %d: %w", cc.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown 关闭监听与全部连接，并等待 goroutine 退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		close(s.stopC)
		if s.ln != nil {
			_ = s.ln.Close()
		}
		s.mu.RLock()
		for _, cc := range s.conns {
			_ = cc.Close()
		}
		s.mu.RUnlock()
	})
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

func (s *Server) connFields(cc *ConnContext, err error) []zap.Field {
	return []zap.Field{zap.Uint64("conn_id", cc.ID()), zap.Error(err)}
}
