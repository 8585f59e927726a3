package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// Port 串口抽象，便于测试替换
type Port interface {
	io.ReadWriteCloser
}

// SerialConfig 串口参数
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration // 0 为阻塞读
}

// OpenPort 通过 tarm/serial 打开串口
func OpenPort(cfg SerialConfig) (Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial device is empty")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 9600
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return p, nil
}

const idleBackoff = 10 * time.Millisecond

// Serial 串口链路：写整帧，可选监听入站字节
type Serial struct {
	port   Port
	name   string
	logger *zap.Logger

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// NewSerial 包装已打开的端口
func NewSerial(port Port, name string, logger *zap.Logger) *Serial {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serial{port: port, name: name, logger: logger}
}

// DialSerial 打开串口并返回链路
func DialSerial(cfg SerialConfig, logger *zap.Logger) (*Serial, error) {
	p, err := OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return NewSerial(p, cfg.Device, logger), nil
}

func (s *Serial) Send(ctx context.Context, framed []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := writeFull(s.port, framed); err != nil {
		return fmt.Errorf("serial %s write: %w", s.name, err)
	}
	return nil
}

// Listen 读取入站字节交给 r，直到 ctx 结束或端口关闭。
// 读超时（0 字节或 io.EOF）视为空闲继续。
func (s *Serial) Listen(ctx context.Context, r Receiver) error {
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := s.port.Read(buf)
		if n > 0 {
			if perr := r.ProcessBytes(buf[:n]); perr != nil {
				s.logger.Debug("serial inbound frame dropped", zap.String("port", s.name), zap.Error(perr))
			}
		}
		if err != nil {
			if s.isClosed() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(idleBackoff):
				}
				continue
			}
			return fmt.Errorf("serial %s read: %w", s.name, err)
		}
	}
}

// Close 关闭端口；之后 Send 返回 ErrClosed
func (s *Serial) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()
	return s.port.Close()
}

func (s *Serial) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}
